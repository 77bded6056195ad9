package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/linesentry/core/internal/cache"
	"github.com/linesentry/core/internal/config"
	"github.com/linesentry/core/internal/domain"
	"github.com/linesentry/core/internal/metrics"
)

// Engine turns scored fingerprints into alerts and gates what actually
// goes out. It keeps no state of its own: dedupe entries, cooldown
// stamps, and the last observed confidence level all live in the cache,
// so overlapping pollers converge on a single send per movement.
type Engine struct {
	cfg     config.AlertConfig
	cache   *cache.Service
	metrics *metrics.Registry
}

// NewEngine builds an alert engine over the shared cache.
func NewEngine(cfg config.AlertConfig, c *cache.Service, m *metrics.Registry) *Engine {
	return &Engine{cfg: cfg, cache: c, metrics: m}
}

// Evaluate classifies one scored fingerprint. Rules run in a fixed
// order and the first match wins. When nothing matches, the observed
// confidence level is still recorded so a later escalation has
// something to compare against, and a nil alert is returned.
func (e *Engine) Evaluate(ctx context.Context, fp domain.MarketFingerprint, score domain.ConfidenceScore) (*domain.MarketAlert, error) {
	if fp.EventID == "" || fp.MarketKey == "" {
		return nil, fmt.Errorf("alert: fingerprint missing identity (event %q, market %q)", fp.EventID, fp.MarketKey)
	}

	alertType, matched := e.classify(ctx, fp, score)
	if !matched {
		e.countEvaluated("none")
		e.cache.SetPrevConfidenceLevel(ctx, fp.EventID, fp.FingerprintKey(), score.Level)
		return nil, nil
	}
	e.countEvaluated(string(alertType))

	alert := &domain.MarketAlert{
		ID:          uuid.NewString(),
		Type:        alertType,
		Priority:    priorityFor(alertType, score.Level),
		Fingerprint: fp,
		Score:       score,
		Channels:    channelsFor(alertType, score.Level),
		SendDirect:  alertType == domain.AlertSharpActivity || score.Level == domain.ConfidenceHigh,
		CreatedAt:   time.Now().UTC(),
	}

	log.Debug().
		Str("event_id", fp.EventID).
		Str("market", fp.FingerprintKey()).
		Str("type", string(alert.Type)).
		Str("priority", string(alert.Priority)).
		Float64("total", score.Total).
		Msg("alert rule matched")

	return alert, nil
}

// classify applies the rules in precedence order: sharp activity,
// confidence escalation, consensus formed, new movement, reversal.
func (e *Engine) classify(ctx context.Context, fp domain.MarketFingerprint, score domain.ConfidenceScore) (domain.AlertType, bool) {
	if fp.FirstMoverBook != "" && fp.FirstMoverTier == domain.BookSharp && fp.DeltaMagnitude >= e.cfg.MinDeltaForSharpAlert {
		return domain.AlertSharpActivity, true
	}

	if score.Level == domain.ConfidenceHigh {
		// A missing stored level counts as not-high, so the first high
		// observation of a market escalates.
		prev, _ := e.cache.PrevConfidenceLevel(ctx, fp.EventID, fp.FingerprintKey())
		if prev != domain.ConfidenceHigh {
			return domain.AlertConfidenceEscalation, true
		}
	}

	if fp.ConfirmingBooks >= e.cfg.MinBooksForConsensus && score.Level.AtLeast(domain.ConfidenceMedium) {
		return domain.AlertConsensusFormed, true
	}

	if fp.DeltaMagnitude >= e.cfg.MinDeltaForMovementAlert {
		return domain.AlertNewMovement, true
	}

	if !fp.LastReversalTime.IsZero() && time.Since(fp.LastReversalTime) <= e.cfg.ReversalWindow() {
		return domain.AlertReversal, true
	}

	return "", false
}

// ShouldSend applies the dedupe and cooldown gates to a matched alert.
func (e *Engine) ShouldSend(ctx context.Context, alert *domain.MarketAlert) bool {
	key := alert.DedupeKey()

	if e.cache.DedupeExists(ctx, key) {
		e.countSuppressed("dedupe")
		log.Debug().Str("dedupe_key", key).Msg("alert suppressed, dedupe window still open")
		return false
	}

	if last, found := e.cache.LastSent(ctx, key); found {
		cooldown := e.cooldownFor(alert.Priority)
		if elapsed := time.Since(last); elapsed < cooldown {
			e.countSuppressed("cooldown")
			log.Debug().
				Str("dedupe_key", key).
				Dur("elapsed", elapsed).
				Dur("cooldown", cooldown).
				Msg("alert suppressed, cooldown has not elapsed")
			return false
		}
	}

	return true
}

// MarkSent claims the dedupe slot and records send bookkeeping. This is
// the commit point: callers may dispatch only when it returns true, so
// of two pollers racing on the same movement exactly one owns delivery.
func (e *Engine) MarkSent(ctx context.Context, alert *domain.MarketAlert) bool {
	key := alert.DedupeKey()
	if !e.cache.CommitDedupe(ctx, key, e.cfg.DedupeWindow()) {
		e.countSuppressed("dedupe")
		log.Debug().Str("dedupe_key", key).Msg("dedupe claim lost, another poller owns this alert")
		return false
	}

	e.cache.SetLastSent(ctx, key, time.Now().UTC())
	e.cache.SetPrevConfidenceLevel(ctx, alert.Fingerprint.EventID, alert.Fingerprint.FingerprintKey(), alert.Score.Level)
	return true
}

func (e *Engine) cooldownFor(priority domain.AlertPriority) time.Duration {
	switch priority {
	case domain.PriorityUrgent:
		return e.cfg.UrgentCooldown()
	case domain.PriorityHigh:
		return e.cfg.HighPriorityCooldown()
	default:
		return e.cfg.DefaultCooldown()
	}
}

// priorityFor maps a matched rule and its confidence level to a
// dispatch priority.
func priorityFor(alertType domain.AlertType, level domain.ConfidenceLevel) domain.AlertPriority {
	switch {
	case alertType == domain.AlertSharpActivity && level == domain.ConfidenceHigh:
		return domain.PriorityUrgent
	case alertType == domain.AlertSharpActivity,
		alertType == domain.AlertConfidenceEscalation,
		alertType == domain.AlertReversal:
		return domain.PriorityHigh
	case alertType == domain.AlertConsensusFormed && level == domain.ConfidenceHigh:
		return domain.PriorityHigh
	default:
		return domain.PriorityNormal
	}
}

// channelsFor routes an alert: the sharp channel carries sharp activity
// and anything rated high, the core channel carries medium and above.
func channelsFor(alertType domain.AlertType, level domain.ConfidenceLevel) []string {
	var channels []string
	if alertType == domain.AlertSharpActivity || level == domain.ConfidenceHigh {
		channels = append(channels, domain.ChannelSharp)
	}
	if level.AtLeast(domain.ConfidenceMedium) {
		channels = append(channels, domain.ChannelCore)
	}
	return channels
}

func (e *Engine) countEvaluated(result string) {
	if e.metrics != nil {
		e.metrics.AlertsEvaluated.WithLabelValues(result).Inc()
	}
}

func (e *Engine) countSuppressed(reason string) {
	if e.metrics != nil {
		e.metrics.AlertsSuppressed.WithLabelValues(reason).Inc()
	}
}
