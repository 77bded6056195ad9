// Package confidence rates fingerprints. The score is a pure function
// of the fingerprint and the configured thresholds, so identical
// movement always rates identically and results are safe to cache by
// content hash.
package confidence

import (
	"fmt"
	"strings"
	"time"

	"github.com/linesentry/core/internal/config"
	"github.com/linesentry/core/internal/domain"
)

const (
	componentMax = 25.0
	componentMid = 12.0
)

// Scorer computes confidence scores from movement fingerprints.
type Scorer struct {
	cfg config.ConfidenceConfig
}

// NewScorer builds a scorer with the given thresholds.
func NewScorer(cfg config.ConfidenceConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score rates one fingerprint. Four components contribute up to 25
// points each: who moved first, how fast the consensus is moving, how
// many books confirm it, and how long the direction has held.
func (s *Scorer) Score(fp domain.MarketFingerprint) domain.ConfidenceScore {
	score := domain.ConfidenceScore{
		FirstMover:   s.firstMoverScore(fp),
		Velocity:     s.velocityScore(fp.Velocity),
		Confirmation: s.confirmationScore(fp.ConfirmingBooks),
		Stability:    s.stabilityScore(fp.StabilityWindow),
	}
	score.Total = score.FirstMover + score.Velocity + score.Confirmation + score.Stability
	score.Level = domain.LevelForScore(score.Total)
	score.Explanation = s.explain(fp, score)
	return score
}

func (s *Scorer) firstMoverScore(fp domain.MarketFingerprint) float64 {
	if fp.FirstMoverBook == "" {
		return 0
	}
	switch fp.FirstMoverTier {
	case domain.BookSharp:
		return s.cfg.SharpMoverScore
	case domain.BookMarket:
		return s.cfg.MarketMoverScore
	default:
		return s.cfg.RetailMoverScore
	}
}

// velocityScore interpolates points per hour onto the component scale:
// 0 up to the mid score below the medium threshold, mid to max between
// medium and high, capped at max above.
func (s *Scorer) velocityScore(velocity float64) float64 {
	medium := s.cfg.MediumVelocityThreshold
	high := s.cfg.HighVelocityThreshold
	switch {
	case velocity <= 0:
		return 0
	case velocity >= high:
		return componentMax
	case velocity >= medium:
		return componentMid + (velocity-medium)/(high-medium)*(componentMax-componentMid)
	default:
		return velocity / medium * componentMid
	}
}

// confirmationScore maps the confirming book count; a single book
// carries no weight on its own.
func (s *Scorer) confirmationScore(books int) float64 {
	medium := float64(s.cfg.MediumConfirmationThreshold)
	high := float64(s.cfg.HighConfirmationThreshold)
	n := float64(books)
	switch {
	case books <= 0:
		return 0
	case n >= high:
		return componentMax
	case n >= medium:
		return componentMid + (n-medium)/(high-medium)*(componentMax-componentMid)
	default:
		return (n - 1) / (medium - 1) * componentMid
	}
}

// stabilityScore rewards time since the last direction change.
func (s *Scorer) stabilityScore(window time.Duration) float64 {
	medium := float64(s.cfg.MediumStabilityThreshold)
	high := float64(s.cfg.HighStabilityThreshold)
	minutes := window.Minutes()
	switch {
	case minutes <= 0:
		return 0
	case minutes >= high:
		return componentMax
	case minutes >= medium:
		return componentMid + (minutes-medium)/(high-medium)*(componentMax-componentMid)
	default:
		return minutes / medium * componentMid
	}
}

// explain lists the components that contributed, in score order as
// they appear on the struct.
func (s *Scorer) explain(fp domain.MarketFingerprint, score domain.ConfidenceScore) string {
	var parts []string
	if score.FirstMover > 0 {
		parts = append(parts, fmt.Sprintf("%s book %s moved first (+%.0f)", fp.FirstMoverTier, fp.FirstMoverBook, score.FirstMover))
	}
	if score.Velocity > 0 {
		parts = append(parts, fmt.Sprintf("moving %.1f pts/h (+%.1f)", fp.Velocity, score.Velocity))
	}
	if score.Confirmation > 0 {
		parts = append(parts, fmt.Sprintf("%d books confirm (+%.1f)", fp.ConfirmingBooks, score.Confirmation))
	}
	if score.Stability > 0 {
		parts = append(parts, fmt.Sprintf("direction held %s (+%.1f)", fp.StabilityWindow.Round(time.Minute), score.Stability))
	}
	if len(parts) == 0 {
		return "no movement signals"
	}
	return strings.Join(parts, "; ")
}
