package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/linesentry/core/internal/cache"
	"github.com/linesentry/core/internal/config"
	"github.com/linesentry/core/internal/domain"
	"github.com/linesentry/core/internal/metrics"
)

const (
	sportsTTL    = 30 * time.Minute
	referenceTTL = time.Hour
)

// Registry serves reference data: sports, market definitions, and
// bookmakers with their tiers. Lookups read an immutable in-process
// snapshot; list queries additionally publish through the cache so
// sibling processes see the same view. Mutations swap the snapshot
// whole and invalidate the published entries.
type Registry struct {
	mu   sync.RWMutex
	snap *snapshot

	cache   *cache.Service
	history config.HistoryConfig
}

type snapshot struct {
	sports  []domain.Sport
	markets []domain.MarketDefinition
	books   []domain.Bookmaker

	sportByKey  map[string]domain.Sport
	marketByKey map[string]domain.MarketDefinition
	bookByKey   map[string]domain.Bookmaker
}

func buildSnapshot(sports []domain.Sport, markets []domain.MarketDefinition, books []domain.Bookmaker) *snapshot {
	snap := &snapshot{
		sports:      sports,
		markets:     markets,
		books:       books,
		sportByKey:  make(map[string]domain.Sport, len(sports)),
		marketByKey: make(map[string]domain.MarketDefinition, len(markets)),
		bookByKey:   make(map[string]domain.Bookmaker, len(books)),
	}
	for _, s := range sports {
		snap.sportByKey[s.Key] = s
	}
	for _, m := range markets {
		snap.marketByKey[m.Key] = m
	}
	for _, b := range books {
		snap.bookByKey[b.Key] = b
	}
	return snap
}

// New builds a registry populated with the seed catalog.
func New(cacheSvc *cache.Service, history config.HistoryConfig) *Registry {
	return &Registry{
		snap:    buildSnapshot(seedSports(), seedMarkets(), seedBookmakers()),
		cache:   cacheSvc,
		history: history,
	}
}

func (r *Registry) current() *snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Sports returns every sport in the catalog.
func (r *Registry) Sports(ctx context.Context) []domain.Sport {
	if cached, found := cache.GetJSON[[]domain.Sport](ctx, r.cache, cache.SportsKey(false), metrics.CacheReference); found {
		return *cached
	}
	sports := append([]domain.Sport(nil), r.current().sports...)
	cache.SetJSON(ctx, r.cache, cache.SportsKey(false), metrics.CacheReference, sports, sportsTTL)
	return sports
}

// ActiveSports returns the sports currently switched on for polling.
func (r *Registry) ActiveSports(ctx context.Context) []domain.Sport {
	if cached, found := cache.GetJSON[[]domain.Sport](ctx, r.cache, cache.SportsKey(true), metrics.CacheReference); found {
		return *cached
	}
	var active []domain.Sport
	for _, s := range r.current().sports {
		if s.Active {
			active = append(active, s)
		}
	}
	cache.SetJSON(ctx, r.cache, cache.SportsKey(true), metrics.CacheReference, active, sportsTTL)
	return active
}

// SportByKey looks a sport up by its provider key.
func (r *Registry) SportByKey(key string) (domain.Sport, bool) {
	s, ok := r.current().sportByKey[key]
	return s, ok
}

// MarketsForSport returns the market definitions offered for a sport:
// game-wide markets, period markets the sport's structure supports,
// and the sport family's own markets and props. Unknown sports get
// nothing.
func (r *Registry) MarketsForSport(ctx context.Context, sportKey string) []domain.MarketDefinition {
	if cached, found := cache.GetJSON[[]domain.MarketDefinition](ctx, r.cache, cache.MarketsForSportKey(sportKey), metrics.CacheReference); found {
		return *cached
	}

	snap := r.current()
	sport, ok := snap.sportByKey[sportKey]
	if !ok {
		return nil
	}

	var defs []domain.MarketDefinition
	for _, m := range snap.markets {
		if !marketAppliesTo(m, sport) {
			continue
		}
		defs = append(defs, m)
	}
	cache.SetJSON(ctx, r.cache, cache.MarketsForSportKey(sportKey), metrics.CacheReference, defs, referenceTTL)
	return defs
}

func marketAppliesTo(m domain.MarketDefinition, sport domain.Sport) bool {
	switch m.Category {
	case "game":
		return true
	case "period":
		return periodSupported(sport.Periods, m.Period)
	default:
		return m.Category == sport.Category
	}
}

func periodSupported(structure domain.PeriodStructure, period string) bool {
	switch period {
	case "1h":
		return structure == domain.PeriodsHalves || structure == domain.PeriodsQuarters
	case "1q":
		return structure == domain.PeriodsQuarters
	case "1p":
		return structure == domain.PeriodsPeriods
	default:
		return false
	}
}

// MarketByKey looks a market definition up by key.
func (r *Registry) MarketByKey(key string) (domain.MarketDefinition, bool) {
	m, ok := r.current().marketByKey[key]
	return m, ok
}

// BookmakerByKey looks a bookmaker up by key.
func (r *Registry) BookmakerByKey(key string) (domain.Bookmaker, bool) {
	b, ok := r.current().bookByKey[key]
	return b, ok
}

// BookmakerTier classifies a book. Books outside the catalog count as
// retail.
func (r *Registry) BookmakerTier(key string) domain.BookTier {
	if b, ok := r.current().bookByKey[key]; ok {
		return b.Tier
	}
	return domain.BookRetail
}

// BookmakerTiers returns the full key to tier map, published for
// sibling processes.
func (r *Registry) BookmakerTiers(ctx context.Context) map[string]domain.BookTier {
	if cached, found := cache.GetJSON[map[string]domain.BookTier](ctx, r.cache, cache.BookmakerTiersKey(), metrics.CacheReference); found {
		return *cached
	}
	snap := r.current()
	tiers := make(map[string]domain.BookTier, len(snap.books))
	for _, b := range snap.books {
		tiers[b.Key] = b.Tier
	}
	cache.SetJSON(ctx, r.cache, cache.BookmakerTiersKey(), metrics.CacheReference, tiers, referenceTTL)
	return tiers
}

// AccessibleBookmakers returns the books a subscription tier may see.
func (r *Registry) AccessibleBookmakers(ctx context.Context, tier domain.SubscriptionTier) []domain.Bookmaker {
	key := cache.AccessibleBookmakersKey(tier.String())
	if cached, found := cache.GetJSON[[]domain.Bookmaker](ctx, r.cache, key, metrics.CacheReference); found {
		return *cached
	}
	var books []domain.Bookmaker
	for _, b := range r.current().books {
		if tier.Covers(b.RequiredTier) {
			books = append(books, b)
		}
	}
	cache.SetJSON(ctx, r.cache, key, metrics.CacheReference, books, referenceTTL)
	return books
}

// CanAccessMarket reports whether a subscription tier may see a
// market. Unknown markets are inaccessible.
func (r *Registry) CanAccessMarket(tier domain.SubscriptionTier, marketKey string) bool {
	m, ok := r.current().marketByKey[marketKey]
	if !ok {
		return false
	}
	return tier.Covers(m.RequiredTier)
}

// HistoricalDays returns how many days of line history a tier may
// request.
func (r *Registry) HistoricalDays(tier domain.SubscriptionTier) int {
	return r.history.HistoricalDays(tier.String())
}

// ResolveSportByKeyword maps free-form input ("nba games tonight") to
// a sport. Exact key match wins; otherwise the sport owning the
// longest keyword contained in the input.
func (r *Registry) ResolveSportByKeyword(input string) (domain.Sport, bool) {
	needle := strings.ToLower(strings.TrimSpace(input))
	if needle == "" {
		return domain.Sport{}, false
	}

	snap := r.current()
	if s, ok := snap.sportByKey[needle]; ok {
		return s, true
	}

	var best domain.Sport
	bestLen := 0
	for _, s := range snap.sports {
		for _, kw := range s.Keywords {
			if strings.Contains(needle, kw) && len(kw) > bestLen {
				best = s
				bestLen = len(kw)
			}
		}
	}
	return best, bestLen > 0
}

// ResolveMarketByKeyword maps free-form input to a market definition,
// restricted to markets offered for sportKey when given. Specificity
// order: player props, then period markets, then alternates, then the
// longest matching keyword.
func (r *Registry) ResolveMarketByKeyword(ctx context.Context, input, sportKey string) (domain.MarketDefinition, bool) {
	needle := strings.ToLower(strings.TrimSpace(input))
	if needle == "" {
		return domain.MarketDefinition{}, false
	}

	var candidates []domain.MarketDefinition
	if sportKey != "" {
		candidates = r.MarketsForSport(ctx, sportKey)
	} else {
		candidates = r.current().markets
	}

	var best domain.MarketDefinition
	bestRank := rank{}
	found := false
	for _, m := range candidates {
		matchLen := 0
		if m.Key == needle {
			matchLen = len(m.Key)
		}
		for _, kw := range m.Keywords {
			if strings.Contains(needle, kw) && len(kw) > matchLen {
				matchLen = len(kw)
			}
		}
		if matchLen == 0 {
			continue
		}
		candidate := rank{
			prop:       m.PlayerProp,
			period:     m.IsPeriodSpecific(),
			alternate:  m.Alternate,
			keywordLen: matchLen,
		}
		if !found || candidate.beats(bestRank) {
			best = m
			bestRank = candidate
			found = true
		}
	}
	return best, found
}

type rank struct {
	prop       bool
	period     bool
	alternate  bool
	keywordLen int
}

func (a rank) beats(b rank) bool {
	if a.prop != b.prop {
		return a.prop
	}
	if a.period != b.period {
		return a.period
	}
	if a.alternate != b.alternate {
		return a.alternate
	}
	return a.keywordLen > b.keywordLen
}

// SetSportActive flips a sport's polling switch and invalidates the
// published sport lists.
func (r *Registry) SetSportActive(ctx context.Context, key string, active bool) error {
	r.mu.Lock()
	old := r.snap
	if _, ok := old.sportByKey[key]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("unknown sport %q", key)
	}

	sports := make([]domain.Sport, len(old.sports))
	copy(sports, old.sports)
	for i := range sports {
		if sports[i].Key == key {
			sports[i].Active = active
		}
	}
	r.snap = buildSnapshot(sports, old.markets, old.books)
	r.mu.Unlock()

	r.cache.InvalidateReference(ctx, nil, nil)
	log.Info().Str("sport", key).Bool("active", active).Msg("sport polling switched")
	return nil
}
