package alert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/linesentry/core/internal/config"
	"github.com/linesentry/core/internal/domain"
	"github.com/linesentry/core/internal/metrics"
)

// Sink delivers one alert to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, alert *domain.MarketAlert) error
}

// Dispatcher fans alerts out to the configured sinks. Delivery is
// best-effort: each sink gets one retry, a failing sink never blocks
// the others, and a failed alert is dropped rather than re-evaluated.
type Dispatcher struct {
	sinks      []Sink
	dryRun     bool
	retryDelay time.Duration
	metrics    *metrics.Registry
}

// NewDispatcher builds a dispatcher over the given sinks.
func NewDispatcher(cfg config.AlertConfig, m *metrics.Registry, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		sinks:      sinks,
		dryRun:     cfg.DryRun,
		retryDelay: 2 * time.Second,
		metrics:    m,
	}
}

// Dispatch sends the alert to every sink. In dry-run mode the alert is
// logged instead of delivered but still counts as sent. The returned
// error names every sink that failed.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *domain.MarketAlert) error {
	if d.dryRun {
		log.Info().
			Str("alert_id", alert.ID).
			Str("type", string(alert.Type)).
			Str("priority", string(alert.Priority)).
			Str("event_id", alert.Fingerprint.EventID).
			Str("market", alert.Fingerprint.FingerprintKey()).
			Str("headline", alertHeadline(alert)).
			Bool("dry_run", true).
			Msg("dry run, alert not delivered")
		d.countSent(alert)
		return nil
	}

	if len(d.sinks) == 0 {
		log.Warn().Str("alert_id", alert.ID).Msg("no alert sinks configured, dropping alert")
		return nil
	}

	var failures []string
	sent := false
	for _, sink := range d.sinks {
		if err := d.deliver(ctx, sink, alert); err != nil {
			d.countSinkFailure(sink.Name())
			log.Error().
				Err(err).
				Str("sink", sink.Name()).
				Str("alert_id", alert.ID).
				Msg("alert delivery failed")
			failures = append(failures, fmt.Sprintf("%s: %v", sink.Name(), err))
			continue
		}
		sent = true
		log.Info().
			Str("sink", sink.Name()).
			Str("alert_id", alert.ID).
			Str("type", string(alert.Type)).
			Msg("alert delivered")
	}

	if sent {
		d.countSent(alert)
	}
	if len(failures) > 0 {
		return fmt.Errorf("delivering alert %s: %s", alert.ID, strings.Join(failures, "; "))
	}
	return nil
}

// deliver attempts a sink once and retries once after a short pause.
func (d *Dispatcher) deliver(ctx context.Context, sink Sink, alert *domain.MarketAlert) error {
	err := sink.Deliver(ctx, alert)
	if err == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return err
	case <-time.After(d.retryDelay):
	}
	return sink.Deliver(ctx, alert)
}

func (d *Dispatcher) countSent(alert *domain.MarketAlert) {
	if d.metrics != nil {
		d.metrics.AlertsSent.WithLabelValues(string(alert.Type), string(alert.Priority)).Inc()
	}
}

func (d *Dispatcher) countSinkFailure(sink string) {
	if d.metrics != nil {
		d.metrics.SinkFailures.WithLabelValues(sink).Inc()
	}
}
