package grader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesentry/core/internal/cache"
	"github.com/linesentry/core/internal/config"
	"github.com/linesentry/core/internal/domain"
	"github.com/linesentry/core/internal/metrics"
	"github.com/linesentry/core/internal/provider"
	"github.com/linesentry/core/internal/provider/oddsapi"
	"github.com/linesentry/core/internal/registry"
	"github.com/linesentry/core/internal/store"
)

func TestOutcomeFor(t *testing.T) {
	overUnder := domain.MarketDefinition{Key: "totals", Shape: domain.ShapeOverUnder}
	spread := domain.MarketDefinition{Key: "spreads", Shape: domain.ShapeTeamBased}
	moneyline := domain.MarketDefinition{Key: "h2h", Shape: domain.ShapeTeamBased}
	dnb := domain.MarketDefinition{Key: "draw_no_bet", Shape: domain.ShapeTeamBased}
	btts := domain.MarketDefinition{Key: "btts", Shape: domain.ShapeYesNo}
	threeWay := domain.MarketDefinition{Key: "h2h", Shape: domain.ShapeNamed}
	teamTotal := domain.MarketDefinition{Key: "team_totals", Shape: domain.ShapeOverUnder}

	cases := []struct {
		name    string
		market  domain.MarketDefinition
		line    float64
		home    float64
		away    float64
		want    domain.SignalOutcome
		flagged bool
	}{
		{"total over hits", overUnder, 47.5, 24, 28, domain.OutcomeExtended, false},
		{"total under hits", overUnder, 47.5, 20, 24, domain.OutcomeReverted, false},
		{"total push", overUnder, 47, 23, 24, domain.OutcomeStable, false},
		{"spread covered", spread, -3.5, 27, 20, domain.OutcomeExtended, false},
		{"spread missed", spread, -3.5, 23, 20, domain.OutcomeReverted, false},
		{"spread push", spread, -3, 23, 20, domain.OutcomeStable, false},
		{"home favorite won", moneyline, -150, 110, 100, domain.OutcomeStable, false},
		{"home favorite lost", moneyline, -150, 100, 110, domain.OutcomeReverted, false},
		{"away favorite lost", moneyline, 130, 110, 100, domain.OutcomeReverted, false},
		{"away favorite won", moneyline, 130, 100, 110, domain.OutcomeStable, false},
		{"no favorite encoded", moneyline, 0, 110, 100, domain.OutcomeStable, false},
		{"moneyline tie", moneyline, -150, 3, 3, domain.OutcomeStable, false},
		{"dnb draw refunds", dnb, -150, 2, 2, domain.OutcomeStable, false},
		{"dnb favorite lost", dnb, -150, 0, 1, domain.OutcomeReverted, false},
		{"three way draw busts", threeWay, -150, 1, 1, domain.OutcomeReverted, false},
		{"three way favorite held", threeWay, -150, 2, 0, domain.OutcomeStable, false},
		{"btts yes landed", btts, 1, 2, 1, domain.OutcomeStable, false},
		{"btts yes missed", btts, 1, 2, 0, domain.OutcomeReverted, false},
		{"btts no landed", btts, -1, 2, 0, domain.OutcomeStable, false},
		{"team total flagged", teamTotal, 110.5, 110, 100, domain.OutcomeStable, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, reason := outcomeFor(tc.market, tc.line, tc.home, tc.away)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.flagged, reason != "")
		})
	}
}

// fakeStore is an in-memory SignalStore with an injectable update
// failure.
type fakeStore struct {
	mu        sync.Mutex
	rows      map[int64]domain.SignalSnapshot
	nextID    int64
	updateErr error
}

var _ store.SignalStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[int64]domain.SignalSnapshot)}
}

func (f *fakeStore) add(snap domain.SignalSnapshot) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	snap.ID = f.nextID
	f.rows[snap.ID] = snap
	return snap.ID
}

func (f *fakeStore) failUpdates(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateErr = err
}

func (f *fakeStore) get(id int64) domain.SignalSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

func (f *fakeStore) SaveSignal(_ context.Context, snap domain.SignalSnapshot) (int64, error) {
	return f.add(snap), nil
}

func (f *fakeStore) UpdateSignal(_ context.Context, id int64, closingLine float64, outcome domain.SignalOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	row, ok := f.rows[id]
	if !ok {
		return fmt.Errorf("signal %d not found", id)
	}
	row.ClosingLine = &closingLine
	row.Outcome = &outcome
	f.rows[id] = row
	return nil
}

func (f *fakeStore) SignalsForEvent(_ context.Context, eventID, marketKey string) ([]domain.SignalSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.SignalSnapshot
	for _, row := range f.rows {
		if row.EventID == eventID && row.MarketKey == marketKey {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) SignalsInRange(context.Context, time.Time, time.Time) ([]domain.SignalSnapshot, error) {
	return nil, nil
}

func (f *fakeStore) PendingOutcomes(context.Context, time.Time) ([]domain.SignalSnapshot, error) {
	return nil, nil
}

type graderHarness struct {
	grader  *Grader
	cache   *cache.Service
	store   *fakeStore
	metrics *metrics.Registry
}

// newGraderHarness serves the given scores for the one sport left
// active and wires a grader over an in-memory cache and store.
func newGraderHarness(t *testing.T, sportKey string, scores []oddsapi.ScoreEvent) *graderHarness {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/scores") && strings.Contains(r.URL.Path, sportKey) {
			json.NewEncoder(w).Encode(scores)
			return
		}
		fmt.Fprint(w, "[]")
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Provider.BaseURL = server.URL
	cfg.Provider.APIKey = "test-key"
	cfg.Provider.RPS = 1000
	cfg.Provider.Burst = 1000
	cfg.Provider.MaxRetries = 1
	cfg.Provider.BackoffMS = config.BackoffConfig{Base: 1, Max: 2, Jitter: false}

	m := metrics.NewRegistry()
	cacheSvc := cache.NewService(cache.NewMemoryStore(1024), cfg.Cache, m)
	reg := registry.New(cacheSvc, cfg.History)

	ctx := context.Background()
	for _, sport := range reg.Sports(ctx) {
		require.NoError(t, reg.SetSportActive(ctx, sport.Key, sport.Key == sportKey))
	}

	signals := newFakeStore()
	client := oddsapi.NewClient(cfg.Provider, provider.NewGuard("oddsapi", cfg.Provider), m)

	return &graderHarness{
		grader:  New(cfg.Grader, reg, client, cacheSvc, signals, m),
		cache:   cacheSvc,
		store:   signals,
		metrics: m,
	}
}

func completedNBAGame(id string, home, away int) oddsapi.ScoreEvent {
	return oddsapi.ScoreEvent{
		ID:           id,
		SportKey:     "basketball_nba",
		CommenceTime: time.Now().UTC().Add(-3 * time.Hour),
		Completed:    true,
		HomeTeam:     "Boston Celtics",
		AwayTeam:     "Miami Heat",
		Scores: []oddsapi.TeamScore{
			{Name: "Boston Celtics", Score: fmt.Sprintf("%d", home)},
			{Name: "Miami Heat", Score: fmt.Sprintf("%d", away)},
		},
	}
}

func TestGrader_SweepGradesPendingSignals(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	inProgress := completedNBAGame("ev2", 0, 0)
	inProgress.Completed = false
	inProgress.Scores = nil

	h := newGraderHarness(t, "basketball_nba", []oddsapi.ScoreEvent{
		completedNBAGame("ev1", 110, 100),
		inProgress,
	})

	h.cache.SetClosingLineNX(ctx, domain.ClosingLineRecord{
		EventID: "ev1", MarketKey: "totals", Line: 205.5, RecordedAt: now.Add(-4 * time.Hour),
	}, 8*time.Hour)
	h.cache.SetClosingLineNX(ctx, domain.ClosingLineRecord{
		EventID: "ev2", MarketKey: "totals", Line: 199.5, RecordedAt: now.Add(-time.Hour),
	}, 8*time.Hour)

	pendingID := h.store.add(domain.SignalSnapshot{
		EventID: "ev1", MarketKey: "totals",
		SignalTime: now.Add(-6 * time.Hour), GameTime: now.Add(-3 * time.Hour),
		LineAtSignal: 203.5, ConfidenceLevel: domain.ConfidenceMedium,
	})
	already := domain.OutcomeStable
	alreadyLine := 204.5
	gradedID := h.store.add(domain.SignalSnapshot{
		EventID: "ev1", MarketKey: "totals",
		SignalTime: now.Add(-8 * time.Hour), GameTime: now.Add(-3 * time.Hour),
		LineAtSignal: 204.0, ClosingLine: &alreadyLine, Outcome: &already,
	})
	otherID := h.store.add(domain.SignalSnapshot{
		EventID: "ev1", MarketKey: "spreads",
		SignalTime: now.Add(-6 * time.Hour), GameTime: now.Add(-3 * time.Hour),
		LineAtSignal: -4.5,
	})

	graded := h.grader.RunSweep(ctx)
	assert.Equal(t, 1, graded)

	// Total 210 beat the closing 205.5, so the move extended.
	row := h.store.get(pendingID)
	require.NotNil(t, row.Outcome)
	assert.Equal(t, domain.OutcomeExtended, *row.Outcome)
	require.NotNil(t, row.ClosingLine)
	assert.Equal(t, 205.5, *row.ClosingLine)

	// Graded rows are written exactly once.
	row = h.store.get(gradedID)
	assert.Equal(t, domain.OutcomeStable, *row.Outcome)
	assert.Equal(t, 204.5, *row.ClosingLine)

	// No closing line was captured for spreads, so it stays pending.
	row = h.store.get(otherID)
	assert.Nil(t, row.Outcome)

	_, ok := h.cache.ClosingLine(ctx, "ev1", "totals")
	assert.False(t, ok, "graded closing line must be removed")
	_, ok = h.cache.ClosingLine(ctx, "ev2", "totals")
	assert.True(t, ok, "unfinished game keeps its closing line")

	assert.Equal(t, 1.0, graderCounter(t, h.metrics, "linesentry_signals_graded_total", map[string]string{"outcome": "extended"}))
}

func TestGrader_RetainsClosingLineOnUpdateFailure(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	h := newGraderHarness(t, "basketball_nba", []oddsapi.ScoreEvent{
		completedNBAGame("ev1", 110, 100),
	})

	h.cache.SetClosingLineNX(ctx, domain.ClosingLineRecord{
		EventID: "ev1", MarketKey: "totals", Line: 205.5, RecordedAt: now.Add(-4 * time.Hour),
	}, 8*time.Hour)
	id := h.store.add(domain.SignalSnapshot{
		EventID: "ev1", MarketKey: "totals",
		SignalTime: now.Add(-6 * time.Hour), GameTime: now.Add(-3 * time.Hour),
		LineAtSignal: 203.5,
	})

	h.store.failUpdates(errors.New("store unavailable"))
	assert.Equal(t, 0, h.grader.RunSweep(ctx))

	_, ok := h.cache.ClosingLine(ctx, "ev1", "totals")
	assert.True(t, ok, "failed update must keep the closing line for retry")
	assert.Nil(t, h.store.get(id).Outcome)

	// The next sweep finds the same record and completes the grade.
	h.store.failUpdates(nil)
	assert.Equal(t, 1, h.grader.RunSweep(ctx))

	_, ok = h.cache.ClosingLine(ctx, "ev1", "totals")
	assert.False(t, ok)
	require.NotNil(t, h.store.get(id).Outcome)
	assert.Equal(t, domain.OutcomeExtended, *h.store.get(id).Outcome)
}

func TestGrader_SkipsPeriodMarketsWithoutPeriodScores(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	h := newGraderHarness(t, "basketball_nba", []oddsapi.ScoreEvent{
		completedNBAGame("ev1", 110, 100),
	})

	h.cache.SetClosingLineNX(ctx, domain.ClosingLineRecord{
		EventID: "ev1", MarketKey: "totals_h1", Line: 102.5, RecordedAt: now.Add(-4 * time.Hour),
	}, 8*time.Hour)
	id := h.store.add(domain.SignalSnapshot{
		EventID: "ev1", MarketKey: "totals_h1",
		SignalTime: now.Add(-6 * time.Hour), GameTime: now.Add(-3 * time.Hour),
		LineAtSignal: 101.5,
	})

	assert.Equal(t, 0, h.grader.RunSweep(ctx))

	assert.Nil(t, h.store.get(id).Outcome)
	_, ok := h.cache.ClosingLine(ctx, "ev1", "totals_h1")
	assert.True(t, ok, "period market closing line is kept, not consumed")
	assert.GreaterOrEqual(t, graderCounter(t, h.metrics, "linesentry_grader_ungradeable_total", map[string]string{"reason": "period_scores"}), 1.0)
}

func graderCounter(t *testing.T, m *metrics.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if graderLabelsMatch(metric.GetLabel(), labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func graderLabelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	got := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		got[pair.GetName()] = pair.GetValue()
	}
	for name, value := range want {
		if got[name] != value {
			return false
		}
	}
	return true
}
