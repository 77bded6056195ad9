// Package scheduler drives the line-movement pipeline. A fixed-period
// tick fans out over the active sports, pulls fresh odds, and walks
// every market through fingerprinting, confidence scoring, signal
// persistence, and alerting. Player props ride every Nth tick through
// the per-event odds endpoint; closing lines are captured during the
// final minutes before kickoff.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/linesentry/core/internal/alert"
	"github.com/linesentry/core/internal/cache"
	"github.com/linesentry/core/internal/confidence"
	"github.com/linesentry/core/internal/config"
	"github.com/linesentry/core/internal/domain"
	"github.com/linesentry/core/internal/fingerprint"
	"github.com/linesentry/core/internal/metrics"
	"github.com/linesentry/core/internal/normalize"
	"github.com/linesentry/core/internal/provider/oddsapi"
	"github.com/linesentry/core/internal/registry"
	"github.com/linesentry/core/internal/store"
)

const (
	loopName = "poller"

	// eventWorkers partitions one sport's events by index stride, so a
	// given (event, market, player) key is only ever touched by one
	// goroutine within a tick.
	eventWorkers = 4

	// pastDueGrace is how late a tick may fire before it is counted as
	// past due.
	pastDueGrace = time.Second
)

// Deps are the pipeline stages the poller drives. All fields are
// required.
type Deps struct {
	Registry     *registry.Registry
	Client       *oddsapi.Client
	Normalizer   *normalize.Normalizer
	Fingerprints *fingerprint.Service
	Scorer       *confidence.Scorer
	Engine       *alert.Engine
	Dispatcher   *alert.Dispatcher
	Cache        *cache.Service
	Signals      store.SignalStore
	Metrics      *metrics.Registry
}

// Poller runs the periodic odds sweep.
type Poller struct {
	cfg     config.PollerConfig
	closing config.ClosingLineConfig

	registry   *registry.Registry
	client     *oddsapi.Client
	normalizer *normalize.Normalizer
	prints     *fingerprint.Service
	scorer     *confidence.Scorer
	engine     *alert.Engine
	dispatcher *alert.Dispatcher
	cache      *cache.Service
	signals    store.SignalStore
	metrics    *metrics.Registry
}

// New builds a poller from its configuration and pipeline stages.
func New(cfg config.PollerConfig, closing config.ClosingLineConfig, deps Deps) *Poller {
	return &Poller{
		cfg:        cfg,
		closing:    closing,
		registry:   deps.Registry,
		client:     deps.Client,
		normalizer: deps.Normalizer,
		prints:     deps.Fingerprints,
		scorer:     deps.Scorer,
		engine:     deps.Engine,
		dispatcher: deps.Dispatcher,
		cache:      deps.Cache,
		signals:    deps.Signals,
		metrics:    deps.Metrics,
	}
}

// Run executes ticks until the context is cancelled. The first tick
// fires immediately; later ticks hold the configured period. Ticks are
// serialized in-process, so an overrun delays rather than overlaps the
// next sweep, and the delay is surfaced through the past-due counter.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.cfg.BaseInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().
		Str("component", loopName).
		Dur("interval", interval).
		Int("sport_concurrency", p.cfg.SportConcurrency).
		Int("prop_every_nth_tick", p.cfg.PlayerPropEveryNthTick).
		Msg("poller started")

	tick := uint64(1)
	p.runTick(ctx, tick)

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("component", loopName).Msg("poller stopped")
			return ctx.Err()
		case fired := <-ticker.C:
			if delay := time.Since(fired); delay > pastDueGrace {
				p.metrics.TicksPastDue.WithLabelValues(loopName).Inc()
				log.Warn().
					Str("component", loopName).
					Dur("delay", delay).
					Msg("tick past due")
			}
			tick++
			p.runTick(ctx, tick)
		}
	}
}

// runTick sweeps every active sport once. Sports run in parallel up to
// the configured width, and the whole tick is bounded by the tick
// deadline so a slow provider cannot stack work onto the next period.
func (p *Poller) runTick(ctx context.Context, tick uint64) {
	timer := p.metrics.StartTick(loopName)

	tickCtx, cancel := context.WithTimeout(ctx, p.cfg.TickDeadline())
	defer cancel()

	includeProps := p.cfg.PlayerPropEveryNthTick > 0 && tick%uint64(p.cfg.PlayerPropEveryNthTick) == 0

	width := p.cfg.SportConcurrency
	if width < 1 {
		width = 1
	}
	sem := make(chan struct{}, width)

	var wg sync.WaitGroup
	for _, sport := range p.registry.ActiveSports(tickCtx) {
		wg.Add(1)
		sem <- struct{}{}
		go func(sport domain.Sport) {
			defer wg.Done()
			defer func() { <-sem }()
			p.pollSport(tickCtx, sport, includeProps)
		}(sport)
	}
	wg.Wait()

	result := "ok"
	if errors.Is(tickCtx.Err(), context.DeadlineExceeded) {
		result = "deadline"
		log.Warn().
			Str("component", loopName).
			Uint64("tick", tick).
			Msg("tick abandoned at deadline")
	}
	timer.Stop(result)
}

func (p *Poller) pollSport(ctx context.Context, sport domain.Sport, includeProps bool) {
	markets := p.registry.MarketsForSport(ctx, sport.Key)

	if game := gameMarkets(markets); len(game) > 0 {
		p.pollGameMarkets(ctx, sport, game)
	}
	if !includeProps {
		return
	}
	if props := propMarkets(markets); len(props) > 0 {
		p.pollPlayerProps(ctx, sport, props)
	}
}

// pollGameMarkets pulls the sport's whole board in one request and
// advances every (event, market) pair on it.
func (p *Poller) pollGameMarkets(ctx context.Context, sport domain.Sport, markets []domain.MarketDefinition) {
	books := bookKeys(p.registry.AccessibleBookmakers(ctx, domain.TierSharp))
	events, err := p.client.Odds(ctx, sport.Key, marketKeys(markets), books)
	if err != nil {
		log.Error().Err(err).
			Str("component", loopName).
			Str("sport", sport.Key).
			Msg("odds fetch failed")
		return
	}
	p.processEvents(ctx, sport, events, markets)
}

// processEvents partitions events across a fixed worker set by index
// stride. Each event belongs to exactly one worker, so the cached
// state behind a market key is never advanced concurrently.
func (p *Poller) processEvents(ctx context.Context, sport domain.Sport, events []oddsapi.OddsEvent, markets []domain.MarketDefinition) {
	if len(events) == 0 {
		return
	}
	workers := eventWorkers
	if len(events) < workers {
		workers = len(events)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for i := offset; i < len(events); i += workers {
				p.processEvent(ctx, sport, &events[i], markets)
			}
		}(w)
	}
	wg.Wait()
}

// processEvent walks one event through every market. A failing market
// is logged and skipped; the rest of the event still runs.
func (p *Poller) processEvent(ctx context.Context, sport domain.Sport, event *oddsapi.OddsEvent, markets []domain.MarketDefinition) {
	for _, market := range markets {
		if ctx.Err() != nil {
			return
		}
		if err := p.processMarket(ctx, sport, event, market); err != nil {
			log.Error().Err(err).
				Str("component", loopName).
				Str("event_id", event.ID).
				Str("market", market.Key).
				Msg("market processing failed")
		}
	}
}

// processMarket normalizes one market's odds and advances its state.
// Player-prop snapshots cover many players at once, so they are split
// per player and each player's series advances independently.
func (p *Poller) processMarket(ctx context.Context, sport domain.Sport, event *oddsapi.OddsEvent, market domain.MarketDefinition) error {
	snapshots := p.normalizer.Normalize(event, market)
	if len(snapshots) == 0 {
		return nil
	}

	if !market.PlayerProp {
		return p.advance(ctx, sport, event, market, market.Key, snapshots)
	}

	for slug, group := range groupByPlayer(snapshots) {
		if err := p.advance(ctx, sport, event, market, market.Key+":"+slug, group); err != nil {
			log.Error().Err(err).
				Str("component", loopName).
				Str("event_id", event.ID).
				Str("market", market.Key).
				Str("player", slug).
				Msg("prop processing failed")
		}
	}
	return nil
}

// advance runs one (event, market, player) unit through the pipeline:
// fingerprint it, capture the closing line when inside the window, and
// if the movement is material, score it, persist the signal, and
// evaluate alert rules.
func (p *Poller) advance(ctx context.Context, sport domain.Sport, event *oddsapi.OddsEvent, market domain.MarketDefinition, fpKey string, snapshots []domain.BookSnapshot) error {
	prev, _ := p.cache.Fingerprint(ctx, event.ID, fpKey)

	fp, err := p.prints.Create(event.ID, market, snapshots, prev)
	if err != nil {
		return fmt.Errorf("fingerprint: %w", err)
	}
	p.cache.SetFingerprint(ctx, fp)
	p.metrics.FingerprintsComputed.WithLabelValues(sport.Key).Inc()

	// Closing lines are captured on every pass through the window, not
	// only on material change: the last pre-kickoff consensus matters
	// even when the market sat still.
	p.captureClosingLine(ctx, event, fp)

	if !fingerprint.HasMaterialChange(fp, prev) {
		return nil
	}
	p.metrics.MaterialChanges.WithLabelValues(sport.Key).Inc()

	score := p.scorer.Score(fp)
	p.cache.SetConfidence(ctx, event.ID, fp.FingerprintKey(), score)

	if err := p.recordSignal(ctx, event, fp, score); err != nil {
		return fmt.Errorf("record signal: %w", err)
	}

	return p.alertOn(ctx, event, market, fp, score)
}

func (p *Poller) recordSignal(ctx context.Context, event *oddsapi.OddsEvent, fp domain.MarketFingerprint, score domain.ConfidenceScore) error {
	snap := domain.SignalSnapshot{
		EventID:         fp.EventID,
		MarketKey:       fp.FingerprintKey(),
		SignalTime:      fp.Timestamp,
		GameTime:        event.CommenceTime,
		LineAtSignal:    fp.ConsensusLine,
		ConfidenceLevel: score.Level,
		ConfidenceScore: score.Total,
		FirstMoverBook:  fp.FirstMoverBook,
		FirstMoverTier:  fp.FirstMoverTier,
	}
	if _, err := p.signals.SaveSignal(ctx, snap); err != nil {
		return err
	}
	p.metrics.SignalsRecorded.Inc()
	return nil
}

// alertOn classifies the movement and, when a rule matches, commits
// the dedupe entry before dispatching. Losing the commit race means
// another worker owns this alert. A dispatch failure after the commit
// is logged and dropped; re-evaluating a committed alert would send
// duplicates.
func (p *Poller) alertOn(ctx context.Context, event *oddsapi.OddsEvent, market domain.MarketDefinition, fp domain.MarketFingerprint, score domain.ConfidenceScore) error {
	a, err := p.engine.Evaluate(ctx, fp, score)
	if err != nil {
		return fmt.Errorf("evaluate alert: %w", err)
	}
	if a == nil {
		return nil
	}

	a.SportKey = event.SportKey
	a.HomeTeam = event.HomeTeam
	a.AwayTeam = event.AwayTeam
	a.CommenceTime = event.CommenceTime
	a.MarketName = market.Name

	if !p.engine.ShouldSend(ctx, a) {
		return nil
	}
	if !p.engine.MarkSent(ctx, a) {
		return nil
	}
	if err := p.dispatcher.Dispatch(ctx, a); err != nil {
		log.Error().Err(err).
			Str("component", loopName).
			Str("alert_id", a.ID).
			Str("event_id", fp.EventID).
			Str("market", fp.FingerprintKey()).
			Msg("alert dispatch failed after dedupe commit")
	}
	return nil
}

// captureClosingLine stores the consensus once per market inside the
// closing window. The set-if-absent write keeps the first capture;
// later ticks and concurrent workers are no-ops.
func (p *Poller) captureClosingLine(ctx context.Context, event *oddsapi.OddsEvent, fp domain.MarketFingerprint) {
	until := time.Until(event.CommenceTime)
	if until <= 0 || until > p.closing.Window() {
		return
	}

	rec := domain.ClosingLineRecord{
		EventID:    fp.EventID,
		MarketKey:  fp.FingerprintKey(),
		Line:       fp.ConsensusLine,
		RecordedAt: time.Now().UTC(),
	}
	if !p.cache.SetClosingLineNX(ctx, rec, p.closing.TTL()) {
		return
	}
	p.metrics.ClosingLinesCaptured.Inc()
	log.Info().
		Str("component", loopName).
		Str("event_id", fp.EventID).
		Str("market", fp.FingerprintKey()).
		Float64("line", fp.ConsensusLine).
		Msg("closing line captured")
}

// pollPlayerProps fetches per-event odds for fixtures starting within
// the lookahead window. Prop boards are too wide to pull sport-wide,
// and props on games days away move too rarely to spend requests on.
func (p *Poller) pollPlayerProps(ctx context.Context, sport domain.Sport, markets []domain.MarketDefinition) {
	events, err := p.client.Events(ctx, sport.Key)
	if err != nil {
		log.Error().Err(err).
			Str("component", loopName).
			Str("sport", sport.Key).
			Msg("events fetch failed")
		return
	}

	keys := marketKeys(markets)
	now := time.Now()
	horizon := now.Add(p.cfg.PropLookahead())
	for i := range events {
		if ctx.Err() != nil {
			return
		}
		event := events[i]
		if !event.CommenceTime.After(now) || event.CommenceTime.After(horizon) {
			continue
		}

		odds, err := p.client.EventOdds(ctx, sport.Key, event.ID, keys)
		if err != nil {
			log.Error().Err(err).
				Str("component", loopName).
				Str("sport", sport.Key).
				Str("event_id", event.ID).
				Msg("event odds fetch failed")
			continue
		}
		for _, market := range markets {
			if err := p.processMarket(ctx, sport, odds, market); err != nil {
				log.Error().Err(err).
					Str("component", loopName).
					Str("event_id", event.ID).
					Str("market", market.Key).
					Msg("market processing failed")
			}
		}
	}
}

// gameMarkets keeps the markets polled on every tick: no player props
// and no alternate boards. Alternate boards list many lines per side
// and do not reduce to a single consensus series.
func gameMarkets(markets []domain.MarketDefinition) []domain.MarketDefinition {
	var out []domain.MarketDefinition
	for _, m := range markets {
		if m.PlayerProp || m.Alternate {
			continue
		}
		out = append(out, m)
	}
	return out
}

func propMarkets(markets []domain.MarketDefinition) []domain.MarketDefinition {
	var out []domain.MarketDefinition
	for _, m := range markets {
		if m.PlayerProp && !m.Alternate {
			out = append(out, m)
		}
	}
	return out
}

func marketKeys(markets []domain.MarketDefinition) []string {
	keys := make([]string, len(markets))
	for i, m := range markets {
		keys[i] = m.Key
	}
	return keys
}

// bookKeys narrows the provider query to books the registry tracks.
// Collection always runs at full visibility; subscription tiers gate
// what users see, not what the poller ingests.
func bookKeys(books []domain.Bookmaker) []string {
	keys := make([]string, len(books))
	for i, b := range books {
		keys[i] = b.Key
	}
	return keys
}

func groupByPlayer(snapshots []domain.BookSnapshot) map[string][]domain.BookSnapshot {
	groups := make(map[string][]domain.BookSnapshot)
	for _, snap := range snapshots {
		slug := domain.PlayerSlug(snap.PlayerName)
		if slug == "" {
			continue
		}
		groups[slug] = append(groups[slug], snap)
	}
	return groups
}
