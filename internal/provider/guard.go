package provider

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/linesentry/core/internal/config"
)

// Error carries provider failure details with retry guidance.
type Error struct {
	Provider   string
	StatusCode int
	Message    string
	Retryable  bool
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider %s error (status %d): %s (retry after %v)",
			e.Provider, e.StatusCode, e.Message, e.RetryAfter)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s error: %s", e.Provider, e.Message)
}

// AsError unwraps err to a provider Error when possible.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsClientError reports whether err is a non-retryable 4xx provider
// response. Historical endpoints use this to treat absence as empty.
func IsClientError(err error) bool {
	pe, ok := AsError(err)
	return ok && pe.StatusCode >= 400 && pe.StatusCode < 500 && pe.StatusCode != 429
}

// GuardStatus is a point-in-time view of the guard for the status
// endpoint.
type GuardStatus struct {
	Provider            string `json:"provider"`
	CircuitState        string `json:"circuit_state"`
	Requests            uint32 `json:"requests"`
	TotalFailures       uint32 `json:"total_failures"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
	BudgetSpent         int    `json:"budget_spent"`
	BudgetRemaining     int    `json:"budget_remaining"`
}

// Guard serializes access to one upstream provider: a token bucket
// for sustained rate, a circuit breaker on consecutive failures, a
// daily request budget, and retries with exponential backoff. The
// guard does not know HTTP; callers translate transport failures into
// *Error so retryability survives the trip.
type Guard struct {
	name    string
	cfg     config.ProviderConfig
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker

	mu     sync.Mutex
	day    string
	spent  int
	warned bool
}

// NewGuard builds a guard around the configured limits.
func NewGuard(name string, cfg config.ProviderConfig) *Guard {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(cfg.Circuit.SuccessThreshold),
		Timeout:     cfg.CircuitOpenTimeout(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.Circuit.FailureThreshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("provider circuit state changed")
		},
	}

	return &Guard{
		name:    name,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
		day:     utcDay(time.Now()),
	}
}

// Do runs fn under the guard, retrying retryable failures up to the
// configured attempt count. Every attempt waits for a rate token and
// charges the daily budget.
func (g *Guard) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var lastErr error
	var retryAfter time.Duration

	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := g.backoff(attempt)
			if retryAfter > delay {
				delay = retryAfter
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := g.chargeBudget(operation); err != nil {
			return err
		}
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}

		_, err := g.breaker.Execute(func() (interface{}, error) {
			return nil, fn(ctx)
		})
		if err == nil {
			return nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &Error{Provider: g.name, Message: "circuit breaker open", Retryable: false}
		}

		lastErr = err
		pe, ok := AsError(err)
		if !ok || !pe.Retryable {
			return err
		}
		retryAfter = pe.RetryAfter
		log.Debug().
			Err(err).
			Str("provider", g.name).
			Str("operation", operation).
			Int("attempt", attempt+1).
			Msg("provider request failed, will retry")
	}
	return lastErr
}

// backoff returns base*2^(attempt-1) capped at the configured max,
// with optional jitter of up to a quarter either way.
func (g *Guard) backoff(attempt int) time.Duration {
	base := g.cfg.BaseBackoff()
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	backoff := base << uint(attempt-1)
	if max := g.cfg.MaxBackoff(); max > 0 && backoff > max {
		backoff = max
	}

	if g.cfg.BackoffMS.Jitter {
		jitter := int64(backoff) / 4
		if jitter > 0 {
			backoff += time.Duration(rand.Int63n(2*jitter) - jitter)
		}
	}
	return backoff
}

// chargeBudget counts one request against the UTC-day budget. It warns
// once past the warn threshold and rejects once exhausted.
func (g *Guard) chargeBudget(operation string) error {
	if g.cfg.DailyBudget <= 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	today := utcDay(time.Now())
	if today != g.day {
		g.day = today
		g.spent = 0
		g.warned = false
	}

	if g.spent >= g.cfg.DailyBudget {
		return &Error{
			Provider:  g.name,
			Message:   fmt.Sprintf("daily request budget %d exhausted", g.cfg.DailyBudget),
			Retryable: false,
		}
	}
	g.spent++

	if !g.warned && float64(g.spent) >= g.cfg.BudgetWarnThreshold*float64(g.cfg.DailyBudget) {
		g.warned = true
		log.Warn().
			Str("provider", g.name).
			Str("operation", operation).
			Int("spent", g.spent).
			Int("budget", g.cfg.DailyBudget).
			Msg("provider request budget running low")
	}
	return nil
}

// BudgetRemaining reports requests left in today's budget, or -1 when
// the budget is unlimited.
func (g *Guard) BudgetRemaining() int {
	if g.cfg.DailyBudget <= 0 {
		return -1
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if utcDay(time.Now()) != g.day {
		return g.cfg.DailyBudget
	}
	return g.cfg.DailyBudget - g.spent
}

// Status snapshots the guard for monitoring.
func (g *Guard) Status() GuardStatus {
	counts := g.breaker.Counts()
	g.mu.Lock()
	spent := g.spent
	g.mu.Unlock()

	remaining := -1
	if g.cfg.DailyBudget > 0 {
		remaining = g.cfg.DailyBudget - spent
	}
	return GuardStatus{
		Provider:            g.name,
		CircuitState:        g.breaker.State().String(),
		Requests:            counts.Requests,
		TotalFailures:       counts.TotalFailures,
		ConsecutiveFailures: counts.ConsecutiveFailures,
		BudgetSpent:         spent,
		BudgetRemaining:     remaining,
	}
}

func utcDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
