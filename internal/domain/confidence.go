package domain

// ConfidenceLevel buckets a confidence total for routing and display.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// AtLeast reports whether l is at or above other in the
// low < medium < high ordering.
func (l ConfidenceLevel) AtLeast(other ConfidenceLevel) bool {
	return l.rank() >= other.rank()
}

func (l ConfidenceLevel) rank() int {
	switch l {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// LevelForScore maps a 0-100 total to its level bucket.
func LevelForScore(total float64) ConfidenceLevel {
	switch {
	case total >= 80:
		return ConfidenceHigh
	case total >= 50:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ConfidenceScore is the deterministic credibility rating of one
// fingerprint. Each component lies in [0,25]; Total is their sum.
type ConfidenceScore struct {
	FirstMover   float64 `json:"first_mover"`
	Velocity     float64 `json:"velocity"`
	Confirmation float64 `json:"confirmation"`
	Stability    float64 `json:"stability"`

	Total       float64         `json:"total"`
	Level       ConfidenceLevel `json:"level"`
	Explanation string          `json:"explanation"`
}
