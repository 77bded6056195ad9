package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/linesentry/core/internal/domain"
)

var typeLabels = map[domain.AlertType]string{
	domain.AlertSharpActivity:        "Sharp Activity",
	domain.AlertConfidenceEscalation: "Confidence Escalation",
	domain.AlertConsensusFormed:      "Consensus Formed",
	domain.AlertNewMovement:          "New Movement",
	domain.AlertReversal:             "Line Reversal",
}

func typeLabel(t domain.AlertType) string {
	if label, ok := typeLabels[t]; ok {
		return label
	}
	return string(t)
}

// alertHeadline is the one-line summary used as a title by every sink.
func alertHeadline(alert *domain.MarketAlert) string {
	return fmt.Sprintf("%s: %s", typeLabel(alert.Type), matchup(alert))
}

// matchup renders "Away @ Home", falling back to the event id when the
// poller could not enrich the alert with team names.
func matchup(alert *domain.MarketAlert) string {
	if alert.HomeTeam == "" || alert.AwayTeam == "" {
		return alert.Fingerprint.EventID
	}
	return fmt.Sprintf("%s @ %s", alert.AwayTeam, alert.HomeTeam)
}

// marketLabel renders the market, including the player for props.
func marketLabel(alert *domain.MarketAlert) string {
	name := alert.MarketName
	if name == "" {
		name = alert.Fingerprint.MarketKey
	}
	if alert.Fingerprint.PlayerSlug != "" {
		return fmt.Sprintf("%s (%s)", name, playerName(alert.Fingerprint.PlayerSlug))
	}
	return name
}

// playerName undoes the slug for display: "jayson-tatum" becomes
// "Jayson Tatum".
func playerName(slug string) string {
	parts := strings.Split(slug, "-")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}

// movementText renders the consensus move the alert is reporting.
func movementText(fp domain.MarketFingerprint) string {
	return fmt.Sprintf("%.1f -> %.1f (moved %.1f)", fp.PreviousConsensusLine, fp.ConsensusLine, fp.DeltaMagnitude)
}

// kickoffText renders time-to-kickoff for display.
func kickoffText(alert *domain.MarketAlert) string {
	if alert.CommenceTime.IsZero() {
		return "unknown"
	}
	ttk := alert.TimeToKickoff()
	if ttk <= 0 {
		return "in progress"
	}
	return ttk.Round(time.Minute).String()
}

// priorityMarker is the emoji prefix sinks put in front of titles.
func priorityMarker(priority domain.AlertPriority) string {
	switch priority {
	case domain.PriorityUrgent:
		return "🚨🚨"
	case domain.PriorityHigh:
		return "🚨"
	default:
		return "📈"
	}
}
