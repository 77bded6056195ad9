package domain

import (
	"fmt"
	"time"
)

// AlertType classifies what a market alert is reporting. Evaluation
// order matters: the first matching type wins.
type AlertType string

const (
	AlertSharpActivity        AlertType = "sharp_activity"
	AlertConfidenceEscalation AlertType = "confidence_escalation"
	AlertConsensusFormed      AlertType = "consensus_formed"
	AlertNewMovement          AlertType = "new_movement"
	AlertReversal             AlertType = "reversal"
)

// AlertPriority drives cooldown length and channel urgency.
type AlertPriority string

const (
	PriorityNormal AlertPriority = "normal"
	PriorityHigh   AlertPriority = "high"
	PriorityUrgent AlertPriority = "urgent"
)

// Alert channel names used for routing.
const (
	ChannelSharp = "sharp"
	ChannelCore  = "core"
)

// MarketAlert is the structured payload handed to alert sinks.
type MarketAlert struct {
	ID          string            `json:"id"`
	Type        AlertType         `json:"type"`
	Priority    AlertPriority     `json:"priority"`
	Fingerprint MarketFingerprint `json:"fingerprint"`
	Score       ConfidenceScore   `json:"score"`

	SportKey     string    `json:"sport_key"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
	CommenceTime time.Time `json:"commence_time"`
	MarketName   string    `json:"market_name"`

	Channels   []string  `json:"channels"`
	SendDirect bool      `json:"send_direct"`
	CreatedAt  time.Time `json:"created_at"`
}

// DedupeKey identifies the alert for dedupe and cooldown purposes:
// eventId:marketKey:type:level.
func (a MarketAlert) DedupeKey() string {
	return fmt.Sprintf("%s:%s:%s:%s",
		a.Fingerprint.EventID, a.Fingerprint.FingerprintKey(), a.Type, a.Score.Level)
}

// TimeToKickoff is how far in the future the game starts at the time
// the alert was created. Negative once the game is underway.
func (a MarketAlert) TimeToKickoff() time.Duration {
	return a.CommenceTime.Sub(a.CreatedAt)
}
