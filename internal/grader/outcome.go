package grader

import (
	"strings"

	"github.com/linesentry/core/internal/domain"
)

// Ungradeable reasons reported through the grader_ungradeable counter.
const (
	reasonMissingScores     = "missing_scores"
	reasonPeriodScores      = "period_scores"
	reasonUnsupportedMarket = "unsupported_market"
)

// outcomeFor maps a closing line and a final score onto the signal
// outcome for one market. The second return value names the market
// family when its semantics cannot be resolved from a full-game score;
// such markets grade Stable and are surfaced through metrics.
func outcomeFor(market domain.MarketDefinition, line, home, away float64) (domain.SignalOutcome, string) {
	// TODO: team totals need per-team attribution and odd/even needs a
	// settled parity rule before either can grade for real.
	if strings.HasPrefix(market.Key, "team_totals") || strings.HasPrefix(market.Key, "odd_even") {
		return domain.OutcomeStable, market.Key
	}

	switch market.Shape {
	case domain.ShapeOverUnder:
		return overUnderOutcome(line, home+away), ""
	case domain.ShapeYesNo:
		return yesNoOutcome(line, home, away), ""
	case domain.ShapeNamed:
		return namedOutcome(line, home, away), ""
	default:
		if strings.HasPrefix(market.Key, "spreads") {
			return spreadOutcome(line, home-away), ""
		}
		if strings.HasPrefix(market.Key, "draw_no_bet") {
			return drawNoBetOutcome(line, home, away), ""
		}
		return moneylineOutcome(line, home, away), ""
	}
}

func overUnderOutcome(line, total float64) domain.SignalOutcome {
	switch {
	case total > line:
		return domain.OutcomeExtended
	case total < line:
		return domain.OutcomeReverted
	default:
		return domain.OutcomeStable
	}
}

// spreadOutcome grades the home side of the spread: the line is the
// home handicap, so the cover margin is homeMargin + line.
func spreadOutcome(line, homeMargin float64) domain.SignalOutcome {
	adjusted := homeMargin + line
	switch {
	case adjusted > 0:
		return domain.OutcomeExtended
	case adjusted < 0:
		return domain.OutcomeReverted
	default:
		return domain.OutcomeStable
	}
}

// moneylineOutcome grades whether the favorite held. A negative line
// marks the home side as favorite. A zero line encodes no favorite at
// all, so there is nothing to hold or bust.
func moneylineOutcome(line, home, away float64) domain.SignalOutcome {
	if home == away {
		return domain.OutcomeStable
	}
	if line == 0 {
		return domain.OutcomeStable
	}
	homeWon := home > away
	if homeWon == (line < 0) {
		return domain.OutcomeStable
	}
	return domain.OutcomeReverted
}

// drawNoBetOutcome refunds on a draw, then grades as a moneyline.
func drawNoBetOutcome(line, home, away float64) domain.SignalOutcome {
	if home == away {
		return domain.OutcomeStable
	}
	return moneylineOutcome(line, home, away)
}

// namedOutcome grades a three-way result: the draw outcome busts both
// sides, anything else grades as a moneyline.
func namedOutcome(line, home, away float64) domain.SignalOutcome {
	if home == away {
		return domain.OutcomeReverted
	}
	return moneylineOutcome(line, home, away)
}

// yesNoOutcome grades both-teams-to-score style markets. A positive
// line marks the signal as backing the yes side.
func yesNoOutcome(line, home, away float64) domain.SignalOutcome {
	backedYes := line > 0
	bothScored := home > 0 && away > 0
	if backedYes == bothScored {
		return domain.OutcomeStable
	}
	return domain.OutcomeReverted
}
