package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesentry/core/internal/cache"
	"github.com/linesentry/core/internal/config"
	"github.com/linesentry/core/internal/domain"
	"github.com/linesentry/core/internal/metrics"
	"github.com/linesentry/core/internal/provider/oddsapi"
	"github.com/linesentry/core/internal/registry"
)

func newTestNormalizer(t *testing.T) (*Normalizer, *metrics.Registry) {
	t.Helper()
	store := cache.NewMemoryStore(256)
	t.Cleanup(func() { store.Close() })
	reg := registry.New(cache.NewService(store, config.Default().Cache, nil), config.Default().History)
	m := metrics.NewRegistry()
	return New(reg, m), m
}

func pt(v float64) *float64 { return &v }

func marketDef(t *testing.T, key string) domain.MarketDefinition {
	t.Helper()
	store := cache.NewMemoryStore(16)
	t.Cleanup(func() { store.Close() })
	reg := registry.New(cache.NewService(store, config.Default().Cache, nil), config.Default().History)
	def, ok := reg.MarketByKey(key)
	require.True(t, ok, "market %s not in catalog", key)
	return def
}

func testEvent(bookmakers ...oddsapi.Bookmaker) *oddsapi.OddsEvent {
	return &oddsapi.OddsEvent{
		Event: oddsapi.Event{
			ID:           "evt1",
			SportKey:     "basketball_nba",
			CommenceTime: time.Date(2026, 1, 10, 23, 10, 0, 0, time.UTC),
			HomeTeam:     "Boston Celtics",
			AwayTeam:     "Miami Heat",
		},
		Bookmakers: bookmakers,
	}
}

func book(key string, at time.Time, markets ...oddsapi.Market) oddsapi.Bookmaker {
	return oddsapi.Bookmaker{Key: key, LastUpdate: at, Markets: markets}
}

func skipCount(t *testing.T, m *metrics.Registry, reason string) float64 {
	t.Helper()
	families, err := m.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != "linesentry_normalize_skipped_total" {
			continue
		}
		for _, metric := range fam.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "reason" && label.GetValue() == reason {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestNormalize_Totals(t *testing.T) {
	n, _ := newTestNormalizer(t)
	at := time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC)

	event := testEvent(
		book("pinnacle", at, oddsapi.Market{Key: "totals", Outcomes: []oddsapi.Outcome{
			{Name: "Over", Price: -108, Point: pt(221.5)},
			{Name: "Under", Price: -112, Point: pt(221.5)},
		}}),
		book("draftkings", at.Add(time.Minute), oddsapi.Market{Key: "totals", Outcomes: []oddsapi.Outcome{
			{Name: "Over", Price: -110, Point: pt(222.5)},
			{Name: "Under", Price: -110, Point: pt(222.5)},
		}}),
		book("someunknownbook", at, oddsapi.Market{Key: "totals", Outcomes: []oddsapi.Outcome{
			{Name: "Over", Price: -105, Point: pt(221.0)},
			{Name: "Under", Price: -115, Point: pt(221.0)},
		}}),
	)

	snaps := n.Normalize(event, marketDef(t, "totals"))
	require.Len(t, snaps, 3)

	assert.Equal(t, "pinnacle", snaps[0].BookmakerKey)
	assert.Equal(t, domain.BookSharp, snaps[0].BookmakerTier)
	assert.Equal(t, 221.5, snaps[0].Line)
	assert.Equal(t, -108, snaps[0].PrimaryOdds)
	assert.Equal(t, -112, snaps[0].SecondaryOdds)
	assert.Equal(t, at, snaps[0].Timestamp)

	assert.Equal(t, domain.BookRetail, snaps[1].BookmakerTier)
	assert.Equal(t, 222.5, snaps[1].Line)

	assert.Equal(t, domain.BookRetail, snaps[2].BookmakerTier, "unknown books classify retail")
}

func TestNormalize_Spreads(t *testing.T) {
	n, _ := newTestNormalizer(t)
	at := time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC)

	event := testEvent(
		book("fanduel", at, oddsapi.Market{Key: "spreads", Outcomes: []oddsapi.Outcome{
			{Name: "Miami Heat", Price: -105, Point: pt(3.5)},
			{Name: "Boston Celtics", Price: -115, Point: pt(-3.5)},
		}}),
	)

	snaps := n.Normalize(event, marketDef(t, "spreads"))
	require.Len(t, snaps, 1)
	assert.Equal(t, -3.5, snaps[0].Line, "line is the home side's point")
	assert.Equal(t, -115, snaps[0].PrimaryOdds)
	assert.Equal(t, -105, snaps[0].SecondaryOdds)
}

func TestNormalize_Moneyline(t *testing.T) {
	n, _ := newTestNormalizer(t)
	at := time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC)

	event := testEvent(
		book("betmgm", at, oddsapi.Market{Key: "h2h", Outcomes: []oddsapi.Outcome{
			{Name: "Boston Celtics", Price: -160},
			{Name: "Miami Heat", Price: 140},
		}}),
	)

	snaps := n.Normalize(event, marketDef(t, "h2h"))
	require.Len(t, snaps, 1)
	assert.Zero(t, snaps[0].Line)
	assert.Equal(t, -160, snaps[0].PrimaryOdds)
	assert.Equal(t, 140, snaps[0].SecondaryOdds)
}

func TestNormalize_SkipRules(t *testing.T) {
	at := time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC)

	t.Run("book without the market", func(t *testing.T) {
		n, m := newTestNormalizer(t)
		event := testEvent(
			book("fanduel", at, oddsapi.Market{Key: "h2h", Outcomes: []oddsapi.Outcome{
				{Name: "Boston Celtics", Price: -160},
			}}),
		)
		assert.Empty(t, n.Normalize(event, marketDef(t, "totals")))
		assert.Zero(t, skipCount(t, m, skipMissingPoint))
	})

	t.Run("missing primary side is silent", func(t *testing.T) {
		n, m := newTestNormalizer(t)
		event := testEvent(
			book("fanduel", at, oddsapi.Market{Key: "totals", Outcomes: []oddsapi.Outcome{
				{Name: "Under", Price: -110, Point: pt(221.5)},
			}}),
		)
		assert.Empty(t, n.Normalize(event, marketDef(t, "totals")))
		assert.Zero(t, skipCount(t, m, skipMissingPoint))
		assert.Zero(t, skipCount(t, m, skipMissingPrice))
	})

	t.Run("total without a point is counted", func(t *testing.T) {
		n, m := newTestNormalizer(t)
		event := testEvent(
			book("fanduel", at, oddsapi.Market{Key: "totals", Outcomes: []oddsapi.Outcome{
				{Name: "Over", Price: -110},
				{Name: "Under", Price: -110},
			}}),
		)
		assert.Empty(t, n.Normalize(event, marketDef(t, "totals")))
		assert.Equal(t, 1.0, skipCount(t, m, skipMissingPoint))
	})

	t.Run("zero price is counted", func(t *testing.T) {
		n, m := newTestNormalizer(t)
		event := testEvent(
			book("fanduel", at, oddsapi.Market{Key: "totals", Outcomes: []oddsapi.Outcome{
				{Name: "Over", Point: pt(221.5)},
				{Name: "Under", Price: -110, Point: pt(221.5)},
			}}),
		)
		assert.Empty(t, n.Normalize(event, marketDef(t, "totals")))
		assert.Equal(t, 1.0, skipCount(t, m, skipMissingPrice))
	})

	t.Run("no usable timestamp is counted", func(t *testing.T) {
		n, m := newTestNormalizer(t)
		event := testEvent(
			book("fanduel", time.Time{}, oddsapi.Market{Key: "totals", Outcomes: []oddsapi.Outcome{
				{Name: "Over", Price: -110, Point: pt(221.5)},
				{Name: "Under", Price: -110, Point: pt(221.5)},
			}}),
		)
		assert.Empty(t, n.Normalize(event, marketDef(t, "totals")))
		assert.Equal(t, 1.0, skipCount(t, m, skipMissingTimestamp))
	})
}

func TestNormalize_TimestampPrecedence(t *testing.T) {
	n, _ := newTestNormalizer(t)
	bookAt := time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC)
	marketAt := bookAt.Add(5 * time.Minute)

	event := testEvent(
		book("fanduel", bookAt, oddsapi.Market{Key: "totals", LastUpdate: marketAt, Outcomes: []oddsapi.Outcome{
			{Name: "Over", Price: -110, Point: pt(221.5)},
			{Name: "Under", Price: -110, Point: pt(221.5)},
		}}),
		book("betmgm", bookAt, oddsapi.Market{Key: "totals", Outcomes: []oddsapi.Outcome{
			{Name: "Over", Price: -110, Point: pt(222.0)},
			{Name: "Under", Price: -110, Point: pt(222.0)},
		}}),
	)

	snaps := n.Normalize(event, marketDef(t, "totals"))
	require.Len(t, snaps, 2)
	assert.Equal(t, marketAt, snaps[0].Timestamp, "market-level update wins when present")
	assert.Equal(t, bookAt, snaps[1].Timestamp, "falls back to the book-level update")
}

func TestPlayerProps(t *testing.T) {
	n, _ := newTestNormalizer(t)
	at := time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC)

	event := testEvent(
		book("draftkings", at, oddsapi.Market{Key: "player_points", Outcomes: []oddsapi.Outcome{
			{Name: "Over", Description: "Jayson Tatum", Price: -115, Point: pt(27.5)},
			{Name: "Under", Description: "Jayson Tatum", Price: -105, Point: pt(27.5)},
			{Name: "Over", Description: "Jimmy Butler", Price: -110, Point: pt(22.5)},
			{Name: "Under", Description: "Jimmy Butler", Price: -110, Point: pt(22.5)},
			{Name: "Under", Description: "Bam Adebayo", Price: -120, Point: pt(18.5)},
		}}),
	)

	snaps := n.Normalize(event, marketDef(t, "player_points"))
	require.Len(t, snaps, 2, "player with only an Under side is skipped")

	assert.Equal(t, "Jayson Tatum", snaps[0].PlayerName)
	assert.Equal(t, 27.5, snaps[0].Line)
	assert.Equal(t, -115, snaps[0].PrimaryOdds)
	assert.Equal(t, -105, snaps[0].SecondaryOdds)

	assert.Equal(t, "Jimmy Butler", snaps[1].PlayerName)
	assert.Equal(t, 22.5, snaps[1].Line)
}

func TestPlayerProps_AcrossBooks(t *testing.T) {
	n, _ := newTestNormalizer(t)
	at := time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC)

	event := testEvent(
		book("pinnacle", at, oddsapi.Market{Key: "player_points", Outcomes: []oddsapi.Outcome{
			{Name: "Over", Description: "Jayson Tatum", Price: -112, Point: pt(27.5)},
			{Name: "Under", Description: "Jayson Tatum", Price: -108, Point: pt(27.5)},
		}}),
		book("fanduel", at, oddsapi.Market{Key: "player_points", Outcomes: []oddsapi.Outcome{
			{Name: "Over", Description: "Jayson Tatum", Price: -118, Point: pt(28.5)},
			{Name: "Under", Description: "Jayson Tatum", Price: -102, Point: pt(28.5)},
		}}),
	)

	snaps := n.Normalize(event, marketDef(t, "player_points"))
	require.Len(t, snaps, 2)
	for _, snap := range snaps {
		assert.Equal(t, "Jayson Tatum", snap.PlayerName)
	}
	assert.Equal(t, domain.BookSharp, snaps[0].BookmakerTier)
	assert.Equal(t, 27.5, snaps[0].Line)
	assert.Equal(t, 28.5, snaps[1].Line)
}

func TestNormalize_ThreeWayMoneyline(t *testing.T) {
	n, _ := newTestNormalizer(t)
	at := time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC)

	event := &oddsapi.OddsEvent{
		Event: oddsapi.Event{
			ID:       "evt2",
			SportKey: "soccer_epl",
			HomeTeam: "Arsenal",
			AwayTeam: "Chelsea",
		},
		Bookmakers: []oddsapi.Bookmaker{
			book("williamhill", at, oddsapi.Market{Key: "h2h", Outcomes: []oddsapi.Outcome{
				{Name: "Arsenal", Price: -120},
				{Name: "Chelsea", Price: 320},
				{Name: "Draw", Price: 260},
			}}),
		},
	}

	snaps := n.Normalize(event, marketDef(t, "h2h"))
	require.Len(t, snaps, 1)
	assert.Equal(t, -120, snaps[0].PrimaryOdds)
	assert.Equal(t, 320, snaps[0].SecondaryOdds)
}
