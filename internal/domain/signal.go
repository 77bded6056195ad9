package domain

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// SignalOutcome records how the market moved between a signal and the
// closing line.
type SignalOutcome string

const (
	OutcomeExtended SignalOutcome = "extended"
	OutcomeReverted SignalOutcome = "reverted"
	OutcomeStable   SignalOutcome = "stable"
)

// Value stores the outcome name in the database.
func (o SignalOutcome) Value() (driver.Value, error) {
	return string(o), nil
}

// Scan reads an outcome name back from the database.
func (o *SignalOutcome) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*o = SignalOutcome(v)
	case []byte:
		*o = SignalOutcome(v)
	case nil:
		*o = ""
	default:
		return fmt.Errorf("cannot scan signal outcome from %T", src)
	}
	return nil
}

// SignalSnapshot is the persisted record of one surfaced signal.
// Created by the alert path; ClosingLine and Outcome are written
// exactly once by the outcome grader.
type SignalSnapshot struct {
	ID              int64           `json:"id" db:"id"`
	EventID         string          `json:"event_id" db:"event_id"`
	MarketKey       string          `json:"market_key" db:"market_key"`
	SignalTime      time.Time       `json:"signal_time" db:"signal_time"`
	GameTime        time.Time       `json:"game_time" db:"game_time"`
	LineAtSignal    float64         `json:"line_at_signal" db:"line_at_signal"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level" db:"confidence_level"`
	ConfidenceScore float64         `json:"confidence_score" db:"confidence_score"`
	FirstMoverBook  string          `json:"first_mover_book" db:"first_mover_book"`
	FirstMoverTier  BookTier        `json:"first_mover_tier" db:"first_mover_tier"`
	ClosingLine     *float64        `json:"closing_line,omitempty" db:"closing_line"`
	Outcome         *SignalOutcome  `json:"outcome,omitempty" db:"outcome"`
}

// Graded reports whether the outcome grader has already resolved this
// signal.
func (s SignalSnapshot) Graded() bool {
	return s.Outcome != nil
}

// ClosingLineRecord is the consensus line captured just before kickoff,
// held in cache until the grader consumes it.
type ClosingLineRecord struct {
	EventID    string    `json:"event_id"`
	MarketKey  string    `json:"market_key"`
	Line       float64   `json:"line"`
	RecordedAt time.Time `json:"recorded_at"`
}
