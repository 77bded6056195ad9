package alert

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/linesentry/core/internal/domain"
)

// LogSink writes every alert to the structured log. It is registered
// unconditionally so a deployment with no outbound sinks still keeps a
// record of what fired.
type LogSink struct{}

// NewLogSink builds the sink.
func NewLogSink() *LogSink {
	return &LogSink{}
}

// Name identifies the sink in logs and metrics.
func (s *LogSink) Name() string {
	return "log"
}

// Deliver writes the alert as one structured log line. It never fails.
func (s *LogSink) Deliver(_ context.Context, alert *domain.MarketAlert) error {
	fp := alert.Fingerprint
	evt := log.Info().
		Str("alert_id", alert.ID).
		Str("type", string(alert.Type)).
		Str("priority", string(alert.Priority)).
		Str("event_id", fp.EventID).
		Str("market", fp.FingerprintKey()).
		Str("movement", movementText(fp)).
		Float64("confidence", alert.Score.Total).
		Str("level", string(alert.Score.Level)).
		Str("kickoff", kickoffText(alert))
	if fp.FirstMoverBook != "" {
		evt = evt.Str("first_mover", fp.FirstMoverBook)
	}
	evt.Msg(alertHeadline(alert))
	return nil
}
