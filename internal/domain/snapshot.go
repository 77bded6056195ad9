package domain

import (
	"strings"
	"time"
)

// BookSnapshot is one bookmaker's view of one market at one instant.
// Line semantics depend on the market shape: points for spreads and
// totals, the home American price for moneylines. The normalizer is
// authoritative for that mapping.
type BookSnapshot struct {
	BookmakerKey  string    `json:"bookmaker_key"`
	BookmakerTier BookTier  `json:"bookmaker_tier"`
	Timestamp     time.Time `json:"timestamp"`
	Line          float64   `json:"line"`
	PrimaryOdds   int       `json:"primary_odds"`
	SecondaryOdds int       `json:"secondary_odds"`
	PlayerName    string    `json:"player_name,omitempty"`
}

// MarketFingerprint captures the movement state of one market at one
// instant. Identified by (EventID, MarketKey [+PlayerSlug], Timestamp).
type MarketFingerprint struct {
	EventID    string    `json:"event_id"`
	MarketKey  string    `json:"market_key"`
	PlayerSlug string    `json:"player_slug,omitempty"`
	Timestamp  time.Time `json:"timestamp"`

	ConsensusLine         float64 `json:"consensus_line"`
	PreviousConsensusLine float64 `json:"previous_consensus_line"`
	DeltaMagnitude        float64 `json:"delta_magnitude"`
	Velocity              float64 `json:"velocity"`

	FirstMoverBook string    `json:"first_mover_book,omitempty"`
	FirstMoverTier BookTier  `json:"first_mover_tier"`
	FirstMoveTime  time.Time `json:"first_move_time,omitempty"`

	ConfirmingBooks  int           `json:"confirming_books"`
	FirstSeenTime    time.Time     `json:"first_seen_time"`
	LastReversalTime time.Time     `json:"last_reversal_time,omitempty"`
	StabilityWindow  time.Duration `json:"stability_window"`
	RetailLag        time.Duration `json:"retail_lag"`

	ContentHash string         `json:"content_hash"`
	Books       []BookSnapshot `json:"books"`
}

// FingerprintKey is the cache-key suffix for this fingerprint's market,
// including the player slug for props.
func (f MarketFingerprint) FingerprintKey() string {
	if f.PlayerSlug == "" {
		return f.MarketKey
	}
	return f.MarketKey + ":" + f.PlayerSlug
}

// PlayerSlug normalizes a player display name for use in cache keys.
func PlayerSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_', r == '.', r == '\'':
			return '-'
		default:
			return -1
		}
	}, slug)
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	return strings.Trim(slug, "-")
}
