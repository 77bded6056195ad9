package fingerprint

import (
	"math"
	"sort"

	"github.com/linesentry/core/internal/domain"
)

// lowerMedian returns the lower median of the per-book lines, the
// consensus definition used throughout. Empty input yields 0.
func lowerMedian(books []domain.BookSnapshot) float64 {
	if len(books) == 0 {
		return 0
	}
	lines := make([]float64, len(books))
	for i, b := range books {
		lines[i] = b.Line
	}
	sort.Float64s(lines)
	return lines[(len(lines)-1)/2]
}

// countConfirming counts books whose line sits within confirmBand of
// the consensus.
func countConfirming(books []domain.BookSnapshot, consensus float64) int {
	count := 0
	for _, b := range books {
		if math.Abs(b.Line-consensus) <= confirmBand {
			count++
		}
	}
	return count
}

// earliestRetailConfirmer returns the earliest-updated retail book
// whose line confirms the consensus.
func earliestRetailConfirmer(books []domain.BookSnapshot, consensus float64) (domain.BookSnapshot, bool) {
	var best domain.BookSnapshot
	found := false
	for _, b := range books {
		if b.BookmakerTier != domain.BookRetail {
			continue
		}
		if math.Abs(b.Line-consensus) > confirmBand {
			continue
		}
		if !found || b.Timestamp.Before(best.Timestamp) {
			best = b
			found = true
		}
	}
	return best, found
}
