// Package grader closes the signal feedback loop. On a slow periodic
// tick it pulls recently completed games, joins them with the closing
// lines the poller captured, and writes an outcome onto every signal
// recorded for those markets.
package grader

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/linesentry/core/internal/cache"
	"github.com/linesentry/core/internal/config"
	"github.com/linesentry/core/internal/domain"
	"github.com/linesentry/core/internal/metrics"
	"github.com/linesentry/core/internal/provider/oddsapi"
	"github.com/linesentry/core/internal/registry"
	"github.com/linesentry/core/internal/store"
)

const loopName = "grader"

// Grader resolves recorded signals against final scores.
type Grader struct {
	cfg      config.GraderConfig
	registry *registry.Registry
	client   *oddsapi.Client
	cache    *cache.Service
	signals  store.SignalStore
	metrics  *metrics.Registry
}

// New builds a grader over the shared registry, provider client,
// cache, and signal store.
func New(cfg config.GraderConfig, reg *registry.Registry, client *oddsapi.Client, cacheSvc *cache.Service, signals store.SignalStore, m *metrics.Registry) *Grader {
	return &Grader{
		cfg:      cfg,
		registry: reg,
		client:   client,
		cache:    cacheSvc,
		signals:  signals,
		metrics:  m,
	}
}

// Run executes grading sweeps until the context is cancelled. The
// first sweep fires immediately so a restart never strands finished
// games until the next interval.
func (g *Grader) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.cfg.Interval())
	defer ticker.Stop()

	log.Info().
		Str("component", loopName).
		Dur("interval", g.cfg.Interval()).
		Int("lookback_days", g.cfg.ScoresLookbackDays).
		Msg("grader started")

	g.RunSweep(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("component", loopName).Msg("grader stopped")
			return ctx.Err()
		case <-ticker.C:
			g.RunSweep(ctx)
		}
	}
}

// RunSweep grades every active sport once. Sports run sequentially;
// the sweep is cheap next to the poller and has no ordering hazards
// beyond per-signal updates, which the store serializes.
func (g *Grader) RunSweep(ctx context.Context) int {
	timer := g.metrics.StartTick(loopName)

	graded := 0
	for _, sport := range g.registry.ActiveSports(ctx) {
		if ctx.Err() != nil {
			break
		}
		graded += g.gradeSport(ctx, sport)
	}

	result := "ok"
	if ctx.Err() != nil {
		result = "cancelled"
	}
	timer.Stop(result)

	if graded > 0 {
		log.Info().
			Str("component", loopName).
			Int("signals", graded).
			Msg("grading sweep complete")
	}
	return graded
}

func (g *Grader) gradeSport(ctx context.Context, sport domain.Sport) int {
	scores, err := g.client.Scores(ctx, sport.Key, g.cfg.ScoresLookbackDays)
	if err != nil {
		log.Error().Err(err).
			Str("component", loopName).
			Str("sport", sport.Key).
			Msg("scores fetch failed")
		return 0
	}

	trackable := trackableMarkets(g.registry.MarketsForSport(ctx, sport.Key))

	graded := 0
	for i := range scores {
		game := scores[i]
		if !game.Completed {
			continue
		}
		home, haveHome := game.HomeScore()
		away, haveAway := game.AwayScore()
		if !haveHome || !haveAway {
			g.metrics.GraderUngradeable.WithLabelValues(reasonMissingScores).Inc()
			log.Warn().
				Str("component", loopName).
				Str("event_id", game.ID).
				Msg("completed game has no usable scores")
			continue
		}

		for _, market := range trackable {
			graded += g.gradeMarket(ctx, sport, game, market, home, away)
		}
	}
	return graded
}

// gradeMarket joins one market's closing line with the final score and
// writes the outcome onto every ungraded signal. The closing-line
// record is removed only when every update landed; a failed write
// leaves it in place so the next sweep retries.
func (g *Grader) gradeMarket(ctx context.Context, sport domain.Sport, game oddsapi.ScoreEvent, market domain.MarketDefinition, home, away float64) int {
	rec, ok := g.cache.ClosingLine(ctx, game.ID, market.Key)
	if !ok {
		return 0
	}

	if market.IsPeriodSpecific() && !periodScoresAvailable(sport) {
		g.metrics.GraderUngradeable.WithLabelValues(reasonPeriodScores).Inc()
		log.Warn().
			Str("component", loopName).
			Str("event_id", game.ID).
			Str("market", market.Key).
			Msg("period market skipped, per-period scores unavailable")
		return 0
	}

	outcome, unresolved := outcomeFor(market, rec.Line, home, away)
	if unresolved != "" {
		g.metrics.GraderUngradeable.WithLabelValues(reasonUnsupportedMarket).Inc()
		log.Warn().
			Str("component", loopName).
			Str("market", market.Key).
			Msg("market semantics unresolved, grading stable")
	}

	sigs, err := g.signals.SignalsForEvent(ctx, game.ID, market.Key)
	if err != nil {
		log.Error().Err(err).
			Str("component", loopName).
			Str("event_id", game.ID).
			Str("market", market.Key).
			Msg("signal lookup failed")
		return 0
	}

	graded := 0
	failed := false
	for _, sig := range sigs {
		if sig.Graded() {
			continue
		}
		if err := g.signals.UpdateSignal(ctx, sig.ID, rec.Line, outcome); err != nil {
			failed = true
			log.Error().Err(err).
				Str("component", loopName).
				Int64("signal_id", sig.ID).
				Str("event_id", game.ID).
				Str("market", market.Key).
				Msg("signal update failed")
			continue
		}
		g.metrics.SignalsGraded.WithLabelValues(string(outcome)).Inc()
		graded++
	}

	if failed {
		return graded
	}

	g.cache.RemoveClosingLine(ctx, game.ID, market.Key)
	if graded > 0 {
		log.Info().
			Str("component", loopName).
			Str("event_id", game.ID).
			Str("market", market.Key).
			Str("outcome", string(outcome)).
			Float64("closing_line", rec.Line).
			Float64("home", home).
			Float64("away", away).
			Int("signals", graded).
			Msg("signals graded")
	}
	return graded
}

// trackableMarkets keeps the game markets the grader can resolve.
// Player-prop closing lines are keyed per player and cannot be
// enumerated from the market list; they age out of the cache through
// their TTL instead. Alternate boards are never polled, so they never
// have a closing line to grade.
func trackableMarkets(markets []domain.MarketDefinition) []domain.MarketDefinition {
	var out []domain.MarketDefinition
	for _, m := range markets {
		if m.PlayerProp || m.Alternate {
			continue
		}
		out = append(out, m)
	}
	return out
}

// periodScoresAvailable reports whether per-period finals exist for
// the sport. The scores endpoint carries full-game finals only.
// TODO: wire a per-period score source and key this off sport.Periods.
func periodScoresAvailable(domain.Sport) bool {
	return false
}
