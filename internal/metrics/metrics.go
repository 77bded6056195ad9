package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

// Cache type labels used by RecordCacheHit/Miss.
const (
	CacheFingerprint = "fingerprint"
	CacheConfidence  = "confidence"
	CacheClosingLine = "closingline"
	CacheAlert       = "alert"
	CacheReference   = "reference"
)

var cacheTypes = []string{CacheFingerprint, CacheConfidence, CacheClosingLine, CacheAlert, CacheReference}

// Registry holds all Prometheus instruments for the pipeline.
type Registry struct {
	reg *prometheus.Registry

	// Tick loop metrics
	TickDuration *prometheus.HistogramVec
	TicksTotal   *prometheus.CounterVec
	TicksPastDue *prometheus.CounterVec

	// Provider metrics
	ProviderRequests  *prometheus.CounterVec
	ProviderDuration  *prometheus.HistogramVec
	ProviderRemaining prometheus.Gauge
	ProviderUsed      prometheus.Gauge

	// Cache performance metrics
	CacheHitRatio prometheus.Gauge
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec

	// Pipeline metrics
	FingerprintsComputed *prometheus.CounterVec
	MaterialChanges      *prometheus.CounterVec
	NormalizeSkipped     *prometheus.CounterVec
	SignalsRecorded      prometheus.Counter
	ClosingLinesCaptured prometheus.Counter

	// Alert metrics
	AlertsEvaluated  *prometheus.CounterVec
	AlertsSent       *prometheus.CounterVec
	AlertsSuppressed *prometheus.CounterVec
	SinkFailures     *prometheus.CounterVec

	// Grading metrics
	SignalsGraded     *prometheus.CounterVec
	GraderUngradeable *prometheus.CounterVec

	// Monitor metrics
	StreamClients prometheus.Gauge
}

// NewRegistry creates a registry with every pipeline instrument
// registered on a private Prometheus registry.
func NewRegistry() *Registry {
	m := &Registry{
		reg: prometheus.NewRegistry(),

		TickDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "linesentry_tick_duration_seconds",
				Help:    "Duration of each scheduler tick in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
			},
			[]string{"loop", "result"},
		),
		TicksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linesentry_ticks_total",
				Help: "Total scheduler ticks executed by loop and result",
			},
			[]string{"loop", "result"},
		),
		TicksPastDue: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linesentry_ticks_past_due_total",
				Help: "Ticks that started after their scheduled time",
			},
			[]string{"loop"},
		),

		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linesentry_provider_requests_total",
				Help: "Odds provider requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		ProviderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "linesentry_provider_duration_seconds",
				Help:    "Odds provider request latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint"},
		),
		ProviderRemaining: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "linesentry_provider_requests_remaining",
				Help: "Provider quota remaining per its response headers",
			},
		),
		ProviderUsed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "linesentry_provider_requests_used",
				Help: "Provider quota used per its response headers",
			},
		),

		CacheHitRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "linesentry_cache_hit_ratio",
				Help: "Current cache hit ratio (0.0 to 1.0)",
			},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linesentry_cache_hits_total",
				Help: "Total cache hits by cache type",
			},
			[]string{"cache_type"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linesentry_cache_misses_total",
				Help: "Total cache misses by cache type",
			},
			[]string{"cache_type"},
		),

		FingerprintsComputed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linesentry_fingerprints_total",
				Help: "Fingerprints computed by sport",
			},
			[]string{"sport"},
		),
		MaterialChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linesentry_material_changes_total",
				Help: "Fingerprints that passed the material-change test",
			},
			[]string{"sport"},
		),
		NormalizeSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linesentry_normalize_skipped_total",
				Help: "Odds records skipped during normalization by reason",
			},
			[]string{"reason"},
		),
		SignalsRecorded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "linesentry_signals_recorded_total",
				Help: "Signal snapshots persisted to the historical store",
			},
		),
		ClosingLinesCaptured: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "linesentry_closing_lines_total",
				Help: "Closing-line records captured near kickoff",
			},
		),

		AlertsEvaluated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linesentry_alerts_evaluated_total",
				Help: "Alert evaluations by resulting type (none included)",
			},
			[]string{"type"},
		),
		AlertsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linesentry_alerts_sent_total",
				Help: "Alerts committed and dispatched by type and priority",
			},
			[]string{"type", "priority"},
		),
		AlertsSuppressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linesentry_alerts_suppressed_total",
				Help: "Alerts suppressed before dispatch by reason",
			},
			[]string{"reason"},
		),
		SinkFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linesentry_sink_failures_total",
				Help: "Alert sink delivery failures by sink",
			},
			[]string{"sink"},
		),

		SignalsGraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linesentry_signals_graded_total",
				Help: "Signals graded by outcome",
			},
			[]string{"outcome"},
		),
		GraderUngradeable: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linesentry_grader_ungradeable_total",
				Help: "Markets the grader could not resolve by reason",
			},
			[]string{"reason"},
		),

		StreamClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "linesentry_stream_clients",
				Help: "Connected alert stream WebSocket clients",
			},
		),
	}

	m.reg.MustRegister(
		m.TickDuration, m.TicksTotal, m.TicksPastDue,
		m.ProviderRequests, m.ProviderDuration, m.ProviderRemaining, m.ProviderUsed,
		m.CacheHitRatio, m.CacheHits, m.CacheMisses,
		m.FingerprintsComputed, m.MaterialChanges, m.NormalizeSkipped,
		m.SignalsRecorded, m.ClosingLinesCaptured,
		m.AlertsEvaluated, m.AlertsSent, m.AlertsSuppressed, m.SinkFailures,
		m.SignalsGraded, m.GraderUngradeable,
		m.StreamClients,
	)

	return m
}

// TickTimer tracks the execution time of one scheduler tick.
type TickTimer struct {
	metrics *Registry
	loop    string
	start   time.Time
}

// StartTick begins timing a tick for the named loop ("poller", "grader").
func (m *Registry) StartTick(loop string) *TickTimer {
	return &TickTimer{metrics: m, loop: loop, start: time.Now()}
}

// Stop completes the tick timing and records the result label.
func (t *TickTimer) Stop(result string) {
	duration := time.Since(t.start)
	t.metrics.TickDuration.WithLabelValues(t.loop, result).Observe(duration.Seconds())
	t.metrics.TicksTotal.WithLabelValues(t.loop, result).Inc()

	log.Debug().
		Str("loop", t.loop).
		Str("result", result).
		Dur("duration", duration).
		Msg("tick completed")
}

// RecordCacheHit records a cache hit for the given cache type.
func (m *Registry) RecordCacheHit(cacheType string) {
	m.CacheHits.WithLabelValues(cacheType).Inc()
	m.updateCacheHitRatio()
}

// RecordCacheMiss records a cache miss for the given cache type.
func (m *Registry) RecordCacheMiss(cacheType string) {
	m.CacheMisses.WithLabelValues(cacheType).Inc()
	m.updateCacheHitRatio()
}

// RecordProviderRequest records one provider call.
func (m *Registry) RecordProviderRequest(endpoint, status string, elapsed time.Duration) {
	m.ProviderRequests.WithLabelValues(endpoint, status).Inc()
	m.ProviderDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// SetProviderQuota records the remaining/used quota headers.
func (m *Registry) SetProviderQuota(remaining, used float64) {
	if remaining >= 0 {
		m.ProviderRemaining.Set(remaining)
	}
	if used >= 0 {
		m.ProviderUsed.Set(used)
	}
}

// updateCacheHitRatio recomputes the aggregate hit ratio from the
// per-type counters.
func (m *Registry) updateCacheHitRatio() {
	var metric dto.Metric
	totalHits, totalMisses := 0.0, 0.0

	for _, cacheType := range cacheTypes {
		if hit, err := m.CacheHits.GetMetricWithLabelValues(cacheType); err == nil {
			if err := hit.Write(&metric); err == nil {
				totalHits += metric.GetCounter().GetValue()
			}
		}
		if miss, err := m.CacheMisses.GetMetricWithLabelValues(cacheType); err == nil {
			if err := miss.Write(&metric); err == nil {
				totalMisses += metric.GetCounter().GetValue()
			}
		}
	}

	if total := totalHits + totalMisses; total > 0 {
		m.CacheHitRatio.Set(totalHits / total)
	}
}

// Handler returns the HTTP handler serving this registry.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Gather exposes the raw metric families, used by status endpoints and
// tests.
func (m *Registry) Gather() ([]*dto.MetricFamily, error) {
	return m.reg.Gather()
}
