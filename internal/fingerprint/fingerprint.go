// Package fingerprint turns per-book snapshots into market movement
// state: consensus line, delta against the previous observation, first
// mover, confirmation breadth, and direction stability. Fingerprints
// are the sole input to confidence scoring and alerting.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/linesentry/core/internal/domain"
	"github.com/linesentry/core/internal/registry"
)

const (
	// moveThreshold is the minimum line change that counts as a move,
	// both for a single book and for the market consensus.
	moveThreshold = 0.5
	// confirmBand is how close to consensus a book's line must sit to
	// confirm it.
	confirmBand = 0.5
)

// Service builds fingerprints. Book tiers are re-resolved against the
// registry on every build so stale tier data in cached snapshots never
// leaks into movement analysis.
type Service struct {
	registry *registry.Registry
}

// NewService builds a fingerprint service over the reference registry.
func NewService(reg *registry.Registry) *Service {
	return &Service{registry: reg}
}

// Create computes the fingerprint for one market observation. prev is
// the previously cached fingerprint for the same market, nil on first
// sight. For player-prop markets the snapshots must all belong to one
// player; the player slug is derived from them.
func (s *Service) Create(eventID string, market domain.MarketDefinition, snapshots []domain.BookSnapshot, prev *domain.MarketFingerprint) (domain.MarketFingerprint, error) {
	if eventID == "" {
		return domain.MarketFingerprint{}, fmt.Errorf("fingerprint: empty event id")
	}
	if market.Key == "" {
		return domain.MarketFingerprint{}, fmt.Errorf("fingerprint: empty market key")
	}

	now := time.Now().UTC()

	books := make([]domain.BookSnapshot, len(snapshots))
	copy(books, snapshots)
	for i := range books {
		books[i].BookmakerTier = s.registry.BookmakerTier(books[i].BookmakerKey)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].BookmakerKey < books[j].BookmakerKey })

	fp := domain.MarketFingerprint{
		EventID:   eventID,
		MarketKey: market.Key,
		Timestamp: now,
		Books:     books,
	}
	if len(books) > 0 && books[0].PlayerName != "" {
		fp.PlayerSlug = domain.PlayerSlug(books[0].PlayerName)
	}

	fp.ConsensusLine = lowerMedian(books)
	if prev != nil {
		fp.PreviousConsensusLine = prev.ConsensusLine
		fp.DeltaMagnitude = math.Abs(fp.ConsensusLine - prev.ConsensusLine)
	}

	if prev != nil && fp.DeltaMagnitude >= moveThreshold {
		if mover, ok := pickFirstMover(books, prev); ok {
			fp.FirstMoverBook = mover.BookmakerKey
			fp.FirstMoverTier = mover.BookmakerTier
			fp.FirstMoveTime = mover.Timestamp
		}
	}

	if prev != nil {
		if gap := now.Sub(prev.Timestamp); gap > 0 {
			fp.Velocity = fp.DeltaMagnitude / gap.Hours()
		}
	}

	fp.ConfirmingBooks = countConfirming(books, fp.ConsensusLine)

	if fp.FirstMoverBook != "" && fp.FirstMoverTier == domain.BookSharp {
		if retail, ok := earliestRetailConfirmer(books, fp.ConsensusLine); ok {
			fp.RetailLag = retail.Timestamp.Sub(fp.FirstMoveTime)
		}
	}

	fp.FirstSeenTime, fp.LastReversalTime = reversalState(fp, prev, now)
	anchor := fp.LastReversalTime
	if anchor.IsZero() {
		anchor = fp.FirstSeenTime
	}
	fp.StabilityWindow = now.Sub(anchor)

	fp.ContentHash = contentHash(fp)

	if err := validate(fp); err != nil {
		return domain.MarketFingerprint{}, err
	}
	return fp, nil
}

// pickFirstMover finds the book that set the new direction: among
// books whose line moved at least moveThreshold from their own
// previous snapshot, the earliest update wins, then the higher tier,
// then the lexically smaller key.
func pickFirstMover(books []domain.BookSnapshot, prev *domain.MarketFingerprint) (domain.BookSnapshot, bool) {
	prevLines := make(map[string]float64, len(prev.Books))
	for _, b := range prev.Books {
		prevLines[b.BookmakerKey] = b.Line
	}

	var best domain.BookSnapshot
	found := false
	for _, b := range books {
		before, ok := prevLines[b.BookmakerKey]
		if !ok {
			continue
		}
		if math.Abs(b.Line-before) < moveThreshold {
			continue
		}
		if !found || moverBeats(b, best) {
			best = b
			found = true
		}
	}
	return best, found
}

func moverBeats(a, b domain.BookSnapshot) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	if a.BookmakerTier != b.BookmakerTier {
		return a.BookmakerTier > b.BookmakerTier
	}
	return a.BookmakerKey < b.BookmakerKey
}

// reversalState carries the series birth and last direction change
// forward. LastReversalTime stays zero until a sign flip between the
// current and previous consensus deltas actually happens; stability is
// measured from the series birth until then.
func reversalState(fp domain.MarketFingerprint, prev *domain.MarketFingerprint, now time.Time) (firstSeen, lastReversal time.Time) {
	if prev == nil {
		return now, time.Time{}
	}
	firstSeen = prev.FirstSeenTime
	if firstSeen.IsZero() {
		firstSeen = prev.Timestamp
	}
	lastReversal = prev.LastReversalTime

	currDelta := fp.ConsensusLine - prev.ConsensusLine
	prevDelta := prev.ConsensusLine - prev.PreviousConsensusLine
	if currDelta != 0 && prevDelta != 0 && (currDelta > 0) != (prevDelta > 0) {
		lastReversal = now
	}
	return firstSeen, lastReversal
}

// HasMaterialChange reports whether curr differs enough from prev to
// re-enter scoring and alerting: consensus moved at least
// moveThreshold, the first mover changed, or the content hash changed.
// A missing prev is always material.
func HasMaterialChange(curr domain.MarketFingerprint, prev *domain.MarketFingerprint) bool {
	if prev == nil {
		return true
	}
	if curr.DeltaMagnitude >= moveThreshold {
		return true
	}
	if curr.FirstMoverBook != prev.FirstMoverBook {
		return true
	}
	return curr.ContentHash != prev.ContentHash
}

// contentHash digests the parts of a fingerprint that identify its
// market state: consensus, first mover, confirmation count, and the
// per-book lines sorted by book key. Sixteen hex chars keeps keys and
// logs short while staying collision-safe at this cardinality.
func contentHash(fp domain.MarketFingerprint) string {
	type bookLine struct {
		Name string  `json:"name"`
		Line float64 `json:"line"`
	}
	lines := make([]bookLine, 0, len(fp.Books))
	for _, b := range fp.Books {
		lines = append(lines, bookLine{Name: b.BookmakerKey, Line: b.Line})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Name < lines[j].Name })

	payload := struct {
		ConsensusLine   float64    `json:"consensus_line"`
		FirstMoverBook  string     `json:"first_mover_book"`
		ConfirmingBooks int        `json:"confirming_books"`
		Books           []bookLine `json:"books"`
	}{fp.ConsensusLine, fp.FirstMoverBook, fp.ConfirmingBooks, lines}

	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// validate is the self-check run on every fingerprint before it leaves
// the service. A violation means a bug upstream, so the caller must
// drop the observation rather than alert or persist from it.
func validate(fp domain.MarketFingerprint) error {
	if fp.DeltaMagnitude < 0 {
		return fmt.Errorf("fingerprint %s/%s: negative delta %f", fp.EventID, fp.FingerprintKey(), fp.DeltaMagnitude)
	}
	if fp.ConfirmingBooks < 0 || fp.ConfirmingBooks > len(fp.Books) {
		return fmt.Errorf("fingerprint %s/%s: confirming books %d outside [0,%d]", fp.EventID, fp.FingerprintKey(), fp.ConfirmingBooks, len(fp.Books))
	}
	if math.IsNaN(fp.ConsensusLine) || math.IsInf(fp.ConsensusLine, 0) {
		return fmt.Errorf("fingerprint %s/%s: consensus line is not finite", fp.EventID, fp.FingerprintKey())
	}
	if math.IsNaN(fp.Velocity) || math.IsInf(fp.Velocity, 0) || fp.Velocity < 0 {
		return fmt.Errorf("fingerprint %s/%s: velocity %f out of range", fp.EventID, fp.FingerprintKey(), fp.Velocity)
	}
	if fp.ContentHash == "" {
		return fmt.Errorf("fingerprint %s/%s: empty content hash", fp.EventID, fp.FingerprintKey())
	}
	return nil
}
