// Package normalize converts provider odds payloads into uniform
// per-book snapshots. It is the only place that knows how each market
// shape maps onto the provider's outcome lists; everything downstream
// works on BookSnapshot values.
package normalize

import (
	"github.com/rs/zerolog/log"

	"github.com/linesentry/core/internal/domain"
	"github.com/linesentry/core/internal/metrics"
	"github.com/linesentry/core/internal/provider/oddsapi"
	"github.com/linesentry/core/internal/registry"
)

// Skip reasons reported through the normalize_skipped counter.
const (
	skipMissingBook      = "missing_book"
	skipMissingPoint     = "missing_point"
	skipMissingPrice     = "missing_price"
	skipMissingTimestamp = "missing_timestamp"
)

// Normalizer flattens one event's odds into per-book snapshots for a
// single market.
type Normalizer struct {
	registry *registry.Registry
	metrics  *metrics.Registry
}

// New builds a normalizer over the reference registry.
func New(reg *registry.Registry, m *metrics.Registry) *Normalizer {
	return &Normalizer{registry: reg, metrics: m}
}

// Normalize yields one snapshot per book offering the market. Books
// that do not list the market, or list it without the primary side,
// are skipped silently; structurally broken records are skipped and
// counted. Player-prop markets route through PlayerProps.
func (n *Normalizer) Normalize(event *oddsapi.OddsEvent, market domain.MarketDefinition) []domain.BookSnapshot {
	if event == nil {
		return nil
	}
	if market.PlayerProp {
		return n.PlayerProps(event, market)
	}

	primaryName, secondaryName := outcomeNames(market.Shape, event)
	var snaps []domain.BookSnapshot
	for _, book := range event.Bookmakers {
		wire, ok := findMarket(book, market.Key)
		if !ok {
			continue
		}
		primary, ok := findOutcome(wire.Outcomes, primaryName, "")
		if !ok {
			continue
		}
		secondary, _ := findOutcome(wire.Outcomes, secondaryName, "")

		snap, ok := n.build(event, market, book, wire, primary, secondary, "")
		if !ok {
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps
}

// PlayerProps yields one snapshot per (book, player) pair. Outcomes
// are grouped by the player name the provider sends in description;
// the Over/Under (or Yes/No) sides of one player line are matched by
// identical descriptions.
func (n *Normalizer) PlayerProps(event *oddsapi.OddsEvent, market domain.MarketDefinition) []domain.BookSnapshot {
	if event == nil {
		return nil
	}

	primaryName, secondaryName := outcomeNames(market.Shape, event)
	var snaps []domain.BookSnapshot
	for _, book := range event.Bookmakers {
		wire, ok := findMarket(book, market.Key)
		if !ok {
			continue
		}
		for _, player := range playersIn(wire.Outcomes) {
			primary, ok := findOutcome(wire.Outcomes, primaryName, player)
			if !ok {
				continue
			}
			secondary, _ := findOutcome(wire.Outcomes, secondaryName, player)

			snap, ok := n.build(event, market, book, wire, primary, secondary, player)
			if !ok {
				continue
			}
			snaps = append(snaps, snap)
		}
	}
	return snaps
}

// build validates one (book, primary, secondary) triple and assembles
// the snapshot. A false return means the record was counted and
// dropped.
func (n *Normalizer) build(event *oddsapi.OddsEvent, market domain.MarketDefinition, book oddsapi.Bookmaker, wire oddsapi.Market, primary, secondary oddsapi.Outcome, player string) (domain.BookSnapshot, bool) {
	if book.Key == "" {
		n.skip(event, market, skipMissingBook, "")
		return domain.BookSnapshot{}, false
	}
	if primary.Price == 0 {
		n.skip(event, market, skipMissingPrice, book.Key)
		return domain.BookSnapshot{}, false
	}
	if market.Shape == domain.ShapeOverUnder && primary.Point == nil {
		n.skip(event, market, skipMissingPoint, book.Key)
		return domain.BookSnapshot{}, false
	}

	ts := wire.LastUpdate
	if ts.IsZero() {
		ts = book.LastUpdate
	}
	if ts.IsZero() {
		n.skip(event, market, skipMissingTimestamp, book.Key)
		return domain.BookSnapshot{}, false
	}

	return domain.BookSnapshot{
		BookmakerKey:  book.Key,
		BookmakerTier: n.registry.BookmakerTier(book.Key),
		Timestamp:     ts,
		Line:          lineFor(primary),
		PrimaryOdds:   primary.Price,
		SecondaryOdds: secondary.Price,
		PlayerName:    player,
	}, true
}

func (n *Normalizer) skip(event *oddsapi.OddsEvent, market domain.MarketDefinition, reason, bookKey string) {
	if n.metrics != nil {
		n.metrics.NormalizeSkipped.WithLabelValues(reason).Inc()
	}
	log.Debug().
		Str("event", event.ID).
		Str("market", market.Key).
		Str("book", bookKey).
		Str("reason", reason).
		Msg("skipped odds record")
}

// outcomeNames returns the primary and secondary outcome names for a
// market shape. Team-based and named markets both resolve against the
// event's home and away names.
func outcomeNames(shape domain.OutcomeShape, event *oddsapi.OddsEvent) (string, string) {
	switch shape {
	case domain.ShapeOverUnder:
		return "Over", "Under"
	case domain.ShapeYesNo:
		return "Yes", "No"
	default:
		return event.HomeTeam, event.AwayTeam
	}
}

// lineFor maps an outcome onto the snapshot line. Markets without a
// point (moneylines, yes/no) normalize to 0 so their consensus stays
// flat.
// TODO: derive a price-based line for no-point markets so moneyline
// movement becomes visible to the fingerprint layer.
func lineFor(primary oddsapi.Outcome) float64 {
	if primary.Point != nil {
		return *primary.Point
	}
	return 0
}

func findMarket(book oddsapi.Bookmaker, key string) (oddsapi.Market, bool) {
	for _, m := range book.Markets {
		if m.Key == key {
			return m, true
		}
	}
	return oddsapi.Market{}, false
}

func findOutcome(outcomes []oddsapi.Outcome, name, description string) (oddsapi.Outcome, bool) {
	for _, o := range outcomes {
		if o.Name == name && o.Description == description {
			return o, true
		}
	}
	return oddsapi.Outcome{}, false
}

// playersIn lists the distinct player names in first-appearance order
// so snapshot output is stable for a given payload.
func playersIn(outcomes []oddsapi.Outcome) []string {
	seen := make(map[string]bool)
	var players []string
	for _, o := range outcomes {
		if o.Description == "" || seen[o.Description] {
			continue
		}
		seen[o.Description] = true
		players = append(players, o.Description)
	}
	return players
}
