package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesentry/core/internal/cache"
	"github.com/linesentry/core/internal/config"
	"github.com/linesentry/core/internal/domain"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	store := cache.NewMemoryStore(256)
	t.Cleanup(func() { store.Close() })
	svc := cache.NewService(store, config.Default().Cache, nil)
	return New(svc, config.Default().History)
}

func marketKeys(defs []domain.MarketDefinition) []string {
	keys := make([]string, 0, len(defs))
	for _, d := range defs {
		keys = append(keys, d.Key)
	}
	return keys
}

func TestMarketsForSport(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	t.Run("nba gets game, period, and basketball markets", func(t *testing.T) {
		keys := marketKeys(reg.MarketsForSport(ctx, "basketball_nba"))

		assert.Contains(t, keys, "h2h")
		assert.Contains(t, keys, "spreads")
		assert.Contains(t, keys, "totals")
		assert.Contains(t, keys, "alternate_spreads")
		assert.Contains(t, keys, "team_totals")
		assert.Contains(t, keys, "spreads_h1", "quarters sports offer half markets")
		assert.Contains(t, keys, "totals_q1")
		assert.Contains(t, keys, "player_points")

		assert.NotContains(t, keys, "h2h_p1", "no period markets for quarter sports")
		assert.NotContains(t, keys, "player_pass_yds", "football props excluded")
		assert.NotContains(t, keys, "btts", "soccer markets excluded")
	})

	t.Run("nhl gets period markets only", func(t *testing.T) {
		keys := marketKeys(reg.MarketsForSport(ctx, "icehockey_nhl"))

		assert.Contains(t, keys, "h2h_p1")
		assert.Contains(t, keys, "player_shots_on_goal")
		assert.NotContains(t, keys, "spreads_q1")
		assert.NotContains(t, keys, "totals_h1")
	})

	t.Run("mlb gets no period markets", func(t *testing.T) {
		keys := marketKeys(reg.MarketsForSport(ctx, "baseball_mlb"))

		assert.Contains(t, keys, "batter_home_runs")
		assert.NotContains(t, keys, "spreads_h1")
		assert.NotContains(t, keys, "h2h_p1")
	})

	t.Run("ncaab gets half but not quarter markets", func(t *testing.T) {
		keys := marketKeys(reg.MarketsForSport(ctx, "basketball_ncaab"))

		assert.Contains(t, keys, "totals_h1")
		assert.NotContains(t, keys, "totals_q1")
	})

	t.Run("unknown sport gets nothing", func(t *testing.T) {
		assert.Empty(t, reg.MarketsForSport(ctx, "cricket_ipl"))
	})
}

func TestBookmakerTier(t *testing.T) {
	reg := newTestRegistry(t)

	assert.Equal(t, domain.BookSharp, reg.BookmakerTier("pinnacle"))
	assert.Equal(t, domain.BookSharp, reg.BookmakerTier("circasports"))
	assert.Equal(t, domain.BookMarket, reg.BookmakerTier("betonlineag"))
	assert.Equal(t, domain.BookRetail, reg.BookmakerTier("draftkings"))
	assert.Equal(t, domain.BookRetail, reg.BookmakerTier("mybookieag"), "unknown books classify retail")
}

func TestCanAccessMarket(t *testing.T) {
	reg := newTestRegistry(t)

	assert.True(t, reg.CanAccessMarket(domain.TierStarter, "h2h"))
	assert.True(t, reg.CanAccessMarket(domain.TierStarter, "spreads"))
	assert.False(t, reg.CanAccessMarket(domain.TierStarter, "player_points"))

	assert.True(t, reg.CanAccessMarket(domain.TierCore, "player_points"))
	assert.False(t, reg.CanAccessMarket(domain.TierCore, "player_points_alternate"))

	assert.True(t, reg.CanAccessMarket(domain.TierSharp, "player_points_alternate"))

	assert.False(t, reg.CanAccessMarket(domain.TierSharp, "no_such_market"))
}

func TestAccessibleBookmakers(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	starter := reg.AccessibleBookmakers(ctx, domain.TierStarter)
	core := reg.AccessibleBookmakers(ctx, domain.TierCore)
	sharp := reg.AccessibleBookmakers(ctx, domain.TierSharp)

	assert.Greater(t, len(core), len(starter))
	assert.Greater(t, len(sharp), len(core))

	for _, b := range starter {
		assert.NotEqual(t, domain.BookSharp, b.Tier, "starter must not see sharp books")
	}

	sharpKeys := make(map[string]bool)
	for _, b := range sharp {
		sharpKeys[b.Key] = true
	}
	assert.True(t, sharpKeys["pinnacle"])
	assert.True(t, sharpKeys["draftkings"])
}

func TestResolveSportByKeyword(t *testing.T) {
	reg := newTestRegistry(t)

	cases := []struct {
		input string
		want  string
		ok    bool
	}{
		{"nba games tonight", "basketball_nba", true},
		{"college football saturday", "americanfootball_ncaaf", true},
		{"NFL Week 1", "americanfootball_nfl", true},
		{"baseball_mlb", "baseball_mlb", true},
		{"premier league fixtures", "soccer_epl", true},
		{"curling", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		sport, ok := reg.ResolveSportByKeyword(tc.input)
		require.Equal(t, tc.ok, ok, "input %q", tc.input)
		if ok {
			assert.Equal(t, tc.want, sport.Key, "input %q", tc.input)
		}
	}
}

func TestResolveMarketByKeyword(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	t.Run("period beats full game on same input", func(t *testing.T) {
		m, ok := reg.ResolveMarketByKeyword(ctx, "first half total", "basketball_nba")
		require.True(t, ok)
		assert.Equal(t, "totals_h1", m.Key)
	})

	t.Run("prop beats game market", func(t *testing.T) {
		m, ok := reg.ResolveMarketByKeyword(ctx, "player points", "basketball_nba")
		require.True(t, ok)
		assert.Equal(t, "player_points", m.Key)
	})

	t.Run("alternate beats base among props", func(t *testing.T) {
		m, ok := reg.ResolveMarketByKeyword(ctx, "alt points", "basketball_nba")
		require.True(t, ok)
		assert.Equal(t, "player_points_alternate", m.Key)
	})

	t.Run("longest keyword wins on ties", func(t *testing.T) {
		// "team total movement" matches both totals ("total") and
		// team_totals ("team total"); same specificity class.
		m, ok := reg.ResolveMarketByKeyword(ctx, "team total movement", "americanfootball_nfl")
		require.True(t, ok)
		assert.Equal(t, "team_totals", m.Key)
	})

	t.Run("sport restriction filters candidates", func(t *testing.T) {
		_, ok := reg.ResolveMarketByKeyword(ctx, "anytime td", "basketball_nba")
		assert.False(t, ok)

		m, ok := reg.ResolveMarketByKeyword(ctx, "anytime td", "americanfootball_nfl")
		require.True(t, ok)
		assert.Equal(t, "player_anytime_td", m.Key)
	})

	t.Run("empty sport searches full catalog", func(t *testing.T) {
		m, ok := reg.ResolveMarketByKeyword(ctx, "dnb", "")
		require.True(t, ok)
		assert.Equal(t, "draw_no_bet", m.Key)
	})

	t.Run("no match", func(t *testing.T) {
		_, ok := reg.ResolveMarketByKeyword(ctx, "corner kicks", "soccer_epl")
		assert.False(t, ok)
	})
}

func TestSetSportActive(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	hasSport := func(sports []domain.Sport, key string) bool {
		for _, s := range sports {
			if s.Key == key {
				return true
			}
		}
		return false
	}

	require.True(t, hasSport(reg.ActiveSports(ctx), "basketball_nba"))

	require.NoError(t, reg.SetSportActive(ctx, "basketball_nba", false))
	assert.False(t, hasSport(reg.ActiveSports(ctx), "basketball_nba"), "cached list must be invalidated")

	require.NoError(t, reg.SetSportActive(ctx, "basketball_nba", true))
	assert.True(t, hasSport(reg.ActiveSports(ctx), "basketball_nba"))

	assert.Error(t, reg.SetSportActive(ctx, "cricket_ipl", true))
}

func TestHistoricalDays(t *testing.T) {
	reg := newTestRegistry(t)

	assert.Equal(t, 1, reg.HistoricalDays(domain.TierStarter))
	assert.Equal(t, 7, reg.HistoricalDays(domain.TierCore))
	assert.Equal(t, 30, reg.HistoricalDays(domain.TierSharp))
}
