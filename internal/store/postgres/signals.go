package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/linesentry/core/internal/config"
	"github.com/linesentry/core/internal/domain"
	"github.com/linesentry/core/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Repo is the Postgres-backed signal store.
type Repo struct {
	db      *sqlx.DB
	timeout time.Duration
}

var _ store.SignalStore = (*Repo)(nil)

// Open connects to Postgres with the configured pool limits and
// verifies connectivity.
func Open(cfg config.StoreConfig) (*Repo, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	return NewRepo(db, cfg.QueryTimeout()), nil
}

// NewRepo wraps an existing connection, used directly by tests.
func NewRepo(db *sqlx.DB, timeout time.Duration) *Repo {
	return &Repo{db: db, timeout: timeout}
}

// EnsureSchema creates the signals table and indexes when missing.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply signals schema: %w", err)
	}
	return nil
}

// SaveSignal inserts one signal record and returns its id. A replay of
// the same signal key updates the score columns and returns the
// existing id, so a poller restart cannot double-record a movement.
func (r *Repo) SaveSignal(ctx context.Context, snap domain.SignalSnapshot) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO signals
		(event_id, market_key, signal_time, game_time, line_at_signal,
		 confidence_level, confidence_score, first_mover_book, first_mover_tier)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id, market_key, signal_time) DO UPDATE SET
			line_at_signal = EXCLUDED.line_at_signal,
			confidence_level = EXCLUDED.confidence_level,
			confidence_score = EXCLUDED.confidence_score,
			first_mover_book = EXCLUDED.first_mover_book,
			first_mover_tier = EXCLUDED.first_mover_tier
		RETURNING id`

	var id int64
	err := r.db.QueryRowxContext(ctx, query,
		snap.EventID, snap.MarketKey, snap.SignalTime, snap.GameTime,
		snap.LineAtSignal, snap.ConfidenceLevel, snap.ConfidenceScore,
		snap.FirstMoverBook, snap.FirstMoverTier).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert signal: %w", err)
	}
	return id, nil
}

// UpdateSignal writes the closing line and graded outcome for a signal.
func (r *Repo) UpdateSignal(ctx context.Context, id int64, closingLine float64, outcome domain.SignalOutcome) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE signals
		SET closing_line = $2, outcome = $3
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, closingLine, outcome)
	if err != nil {
		return fmt.Errorf("failed to update signal %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result for signal %d: %w", id, err)
	}
	if rows == 0 {
		return fmt.Errorf("signal %d not found", id)
	}
	return nil
}

// SignalsForEvent returns every signal recorded for one event market,
// newest first.
func (r *Repo) SignalsForEvent(ctx context.Context, eventID, marketKey string) ([]domain.SignalSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, event_id, market_key, signal_time, game_time, line_at_signal,
		       confidence_level, confidence_score, first_mover_book, first_mover_tier,
		       closing_line, outcome
		FROM signals
		WHERE event_id = $1 AND market_key = $2
		ORDER BY signal_time DESC`

	var signals []domain.SignalSnapshot
	if err := r.db.SelectContext(ctx, &signals, query, eventID, marketKey); err != nil {
		return nil, fmt.Errorf("failed to query signals for event %s: %w", eventID, err)
	}
	return signals, nil
}

// SignalsInRange returns signals whose signal time falls in [from, to),
// newest first.
func (r *Repo) SignalsInRange(ctx context.Context, from, to time.Time) ([]domain.SignalSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, event_id, market_key, signal_time, game_time, line_at_signal,
		       confidence_level, confidence_score, first_mover_book, first_mover_tier,
		       closing_line, outcome
		FROM signals
		WHERE signal_time >= $1 AND signal_time < $2
		ORDER BY signal_time DESC`

	var signals []domain.SignalSnapshot
	if err := r.db.SelectContext(ctx, &signals, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to query signals in range: %w", err)
	}
	return signals, nil
}

// PendingOutcomes returns ungraded signals whose game started before
// the cutoff, oldest game first, so the grader can walk them in order.
func (r *Repo) PendingOutcomes(ctx context.Context, before time.Time) ([]domain.SignalSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, event_id, market_key, signal_time, game_time, line_at_signal,
		       confidence_level, confidence_score, first_mover_book, first_mover_tier,
		       closing_line, outcome
		FROM signals
		WHERE outcome IS NULL AND game_time < $1
		ORDER BY game_time ASC`

	var signals []domain.SignalSnapshot
	if err := r.db.SelectContext(ctx, &signals, query, before); err != nil {
		return nil, fmt.Errorf("failed to query pending signals: %w", err)
	}
	return signals, nil
}

// Ping reports database reachability for readiness checks.
func (r *Repo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.db.PingContext(ctx)
}

// Close releases the connection pool.
func (r *Repo) Close() error {
	return r.db.Close()
}
