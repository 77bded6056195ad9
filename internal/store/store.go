package store

import (
	"context"
	"time"

	"github.com/linesentry/core/internal/domain"
)

// SignalStore persists surfaced signals and their graded outcomes.
// Signals are written by the alert path when a movement goes out and
// resolved exactly once by the grader after the game ends.
type SignalStore interface {
	// SaveSignal inserts one signal record and returns its id. Replaying
	// the same signal (same event, market, and signal time) returns the
	// id of the existing row instead of erroring.
	SaveSignal(ctx context.Context, snap domain.SignalSnapshot) (int64, error)

	// UpdateSignal writes the closing line and graded outcome for a
	// signal. Repeating the call with the same values is harmless.
	UpdateSignal(ctx context.Context, id int64, closingLine float64, outcome domain.SignalOutcome) error

	// SignalsForEvent returns every signal recorded for one event
	// market, newest first.
	SignalsForEvent(ctx context.Context, eventID, marketKey string) ([]domain.SignalSnapshot, error)

	// SignalsInRange returns signals whose signal time falls in
	// [from, to), newest first.
	SignalsInRange(ctx context.Context, from, to time.Time) ([]domain.SignalSnapshot, error)

	// PendingOutcomes returns ungraded signals whose game started
	// before the cutoff, oldest game first.
	PendingOutcomes(ctx context.Context, before time.Time) ([]domain.SignalSnapshot, error)
}
