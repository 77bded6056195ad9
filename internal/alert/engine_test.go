package alert

import (
	"context"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesentry/core/internal/cache"
	"github.com/linesentry/core/internal/config"
	"github.com/linesentry/core/internal/domain"
	"github.com/linesentry/core/internal/metrics"
)

func newTestEngine(t *testing.T) (*Engine, *cache.Service, *metrics.Registry) {
	t.Helper()
	cfg := config.Default()
	m := metrics.NewRegistry()
	svc := cache.NewService(cache.NewMemoryStore(256), cfg.Cache, m)
	return NewEngine(cfg.Alert, svc, m), svc, m
}

func counterValue(t *testing.T, m *metrics.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if labelsMatch(metric.GetLabel(), labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	got := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		got[pair.GetName()] = pair.GetValue()
	}
	for name, value := range want {
		if got[name] != value {
			return false
		}
	}
	return true
}

func sharpFingerprint(now time.Time) domain.MarketFingerprint {
	return domain.MarketFingerprint{
		EventID:               "evt1",
		MarketKey:             "spreads",
		Timestamp:             now,
		ConsensusLine:         -4.5,
		PreviousConsensusLine: -3.0,
		DeltaMagnitude:        1.5,
		Velocity:              1.5,
		FirstMoverBook:        "pinnacle",
		FirstMoverTier:        domain.BookSharp,
		FirstMoveTime:         now.Add(-time.Minute),
		ConfirmingBooks:       4,
		FirstSeenTime:         now.Add(-2 * time.Hour),
		StabilityWindow:       2 * time.Hour,
		ContentHash:           "c0ffee0123456789",
	}
}

func quietFingerprint(now time.Time) domain.MarketFingerprint {
	return domain.MarketFingerprint{
		EventID:               "evt1",
		MarketKey:             "totals",
		Timestamp:             now,
		ConsensusLine:         224.5,
		PreviousConsensusLine: 224.5,
		ConfirmingBooks:       3,
		FirstSeenTime:         now.Add(-90 * time.Minute),
		StabilityWindow:       90 * time.Minute,
		ContentHash:           "deadbeef00112233",
	}
}

func TestEvaluate_RulePrecedence(t *testing.T) {
	now := time.Now().UTC()

	cases := []struct {
		name  string
		shape func(fp *domain.MarketFingerprint)
		score domain.ConfidenceScore
		want  domain.AlertType
	}{
		{
			name: "sharp mover at threshold beats everything",
			shape: func(fp *domain.MarketFingerprint) {
				fp.FirstMoverBook = "pinnacle"
				fp.FirstMoverTier = domain.BookSharp
				fp.DeltaMagnitude = 0.5
				fp.ConfirmingBooks = 6
			},
			score: domain.ConfidenceScore{Total: 85, Level: domain.ConfidenceHigh},
			want:  domain.AlertSharpActivity,
		},
		{
			name: "fresh high level escalates before consensus",
			shape: func(fp *domain.MarketFingerprint) {
				fp.FirstMoverBook = "draftkings"
				fp.FirstMoverTier = domain.BookRetail
				fp.DeltaMagnitude = 1.2
				fp.ConfirmingBooks = 6
			},
			score: domain.ConfidenceScore{Total: 85, Level: domain.ConfidenceHigh},
			want:  domain.AlertConfidenceEscalation,
		},
		{
			name: "consensus formed at medium",
			shape: func(fp *domain.MarketFingerprint) {
				fp.ConfirmingBooks = 5
				fp.DeltaMagnitude = 0.4
			},
			score: domain.ConfidenceScore{Total: 60, Level: domain.ConfidenceMedium},
			want:  domain.AlertConsensusFormed,
		},
		{
			name: "large move without backing is plain movement",
			shape: func(fp *domain.MarketFingerprint) {
				fp.FirstMoverBook = "bovada"
				fp.FirstMoverTier = domain.BookRetail
				fp.DeltaMagnitude = 1.0
				fp.ConfirmingBooks = 2
			},
			score: domain.ConfidenceScore{Total: 20, Level: domain.ConfidenceLow},
			want:  domain.AlertNewMovement,
		},
		{
			name: "recent direction flip",
			shape: func(fp *domain.MarketFingerprint) {
				fp.DeltaMagnitude = 0.3
				fp.LastReversalTime = now.Add(-2 * time.Minute)
			},
			score: domain.ConfidenceScore{Total: 20, Level: domain.ConfidenceLow},
			want:  domain.AlertReversal,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine, _, _ := newTestEngine(t)
			fp := quietFingerprint(now)
			tc.shape(&fp)

			alert, err := engine.Evaluate(context.Background(), fp, tc.score)
			require.NoError(t, err)
			require.NotNil(t, alert)
			assert.Equal(t, tc.want, alert.Type)
			assert.NotEmpty(t, alert.ID)
			assert.Equal(t, fp.EventID, alert.Fingerprint.EventID)
		})
	}
}

func TestEvaluate_SharpMoverBelowThresholdFallsThrough(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	fp := quietFingerprint(time.Now().UTC())
	fp.FirstMoverBook = "pinnacle"
	fp.FirstMoverTier = domain.BookSharp
	fp.DeltaMagnitude = 0.4

	alert, err := engine.Evaluate(context.Background(), fp, domain.ConfidenceScore{Total: 20, Level: domain.ConfidenceLow})
	require.NoError(t, err)
	assert.Nil(t, alert)
}

func TestEvaluate_StaleReversalDoesNotFire(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	fp := quietFingerprint(time.Now().UTC())
	fp.LastReversalTime = time.Now().Add(-10 * time.Minute)

	alert, err := engine.Evaluate(context.Background(), fp, domain.ConfidenceScore{Total: 20, Level: domain.ConfidenceLow})
	require.NoError(t, err)
	assert.Nil(t, alert, "reversal window is five minutes")
}

func TestEvaluate_NoMatchRecordsLevel(t *testing.T) {
	engine, cacheSvc, m := newTestEngine(t)
	ctx := context.Background()

	fp := quietFingerprint(time.Now().UTC())
	alert, err := engine.Evaluate(ctx, fp, domain.ConfidenceScore{Total: 55, Level: domain.ConfidenceMedium})
	require.NoError(t, err)
	assert.Nil(t, alert)

	level, found := cacheSvc.PrevConfidenceLevel(ctx, "evt1", "totals")
	require.True(t, found)
	assert.Equal(t, domain.ConfidenceMedium, level)
	assert.Equal(t, 1.0, counterValue(t, m, "linesentry_alerts_evaluated_total", map[string]string{"type": "none"}))
}

func TestEvaluate_EscalationFiresOncePerLevel(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	fp := quietFingerprint(time.Now().UTC())
	fp.DeltaMagnitude = 0.3
	score := domain.ConfidenceScore{Total: 85, Level: domain.ConfidenceHigh}

	first, err := engine.Evaluate(ctx, fp, score)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, domain.AlertConfidenceEscalation, first.Type)
	assert.Equal(t, domain.PriorityHigh, first.Priority)
	require.True(t, engine.MarkSent(ctx, first))

	second, err := engine.Evaluate(ctx, fp, score)
	require.NoError(t, err)
	assert.Nil(t, second, "level already recorded as high")
}

func TestEvaluate_RequiresIdentity(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	_, err := engine.Evaluate(context.Background(), domain.MarketFingerprint{}, domain.ConfidenceScore{})
	assert.Error(t, err)
}

func TestShouldSend_DedupeSuppressesRepeat(t *testing.T) {
	engine, _, m := newTestEngine(t)
	ctx := context.Background()

	fp := sharpFingerprint(time.Now().UTC())
	score := domain.ConfidenceScore{Total: 60, Level: domain.ConfidenceMedium}

	first, err := engine.Evaluate(ctx, fp, score)
	require.NoError(t, err)
	require.NotNil(t, first)
	require.True(t, engine.ShouldSend(ctx, first))
	require.True(t, engine.MarkSent(ctx, first))

	// Next tick sees the same movement: same type, same level, new id.
	second, err := engine.Evaluate(ctx, fp, score)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.DedupeKey(), second.DedupeKey())
	assert.False(t, engine.ShouldSend(ctx, second))
	assert.Equal(t, 1.0, counterValue(t, m, "linesentry_alerts_suppressed_total", map[string]string{"reason": "dedupe"}))
}

func TestShouldSend_CooldownAfterDedupeExpiry(t *testing.T) {
	engine, cacheSvc, m := newTestEngine(t)
	ctx := context.Background()

	alert := &domain.MarketAlert{
		Type:        domain.AlertNewMovement,
		Priority:    domain.PriorityNormal,
		Fingerprint: domain.MarketFingerprint{EventID: "evt1", MarketKey: "totals"},
		Score:       domain.ConfidenceScore{Level: domain.ConfidenceLow},
	}

	cacheSvc.SetLastSent(ctx, alert.DedupeKey(), time.Now().Add(-time.Minute))
	assert.False(t, engine.ShouldSend(ctx, alert), "one minute into a fifteen minute cooldown")
	assert.Equal(t, 1.0, counterValue(t, m, "linesentry_alerts_suppressed_total", map[string]string{"reason": "cooldown"}))

	cacheSvc.SetLastSent(ctx, alert.DedupeKey(), time.Now().Add(-16*time.Minute))
	assert.True(t, engine.ShouldSend(ctx, alert))

	alert.Priority = domain.PriorityUrgent
	cacheSvc.SetLastSent(ctx, alert.DedupeKey(), time.Now().Add(-3*time.Minute))
	assert.True(t, engine.ShouldSend(ctx, alert), "urgent cooldown is two minutes")
}

func TestMarkSent_SingleOwner(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	alert := &domain.MarketAlert{
		Type:        domain.AlertSharpActivity,
		Priority:    domain.PriorityUrgent,
		Fingerprint: domain.MarketFingerprint{EventID: "evt1", MarketKey: "spreads"},
		Score:       domain.ConfidenceScore{Level: domain.ConfidenceHigh},
	}

	assert.True(t, engine.MarkSent(ctx, alert))
	assert.False(t, engine.MarkSent(ctx, alert), "second claim on the same movement loses")
}

func TestMarkSent_RecordsState(t *testing.T) {
	engine, cacheSvc, _ := newTestEngine(t)
	ctx := context.Background()

	alert := &domain.MarketAlert{
		Type:        domain.AlertConfidenceEscalation,
		Priority:    domain.PriorityHigh,
		Fingerprint: domain.MarketFingerprint{EventID: "evt1", MarketKey: "spreads"},
		Score:       domain.ConfidenceScore{Total: 85, Level: domain.ConfidenceHigh},
	}
	require.True(t, engine.MarkSent(ctx, alert))

	level, found := cacheSvc.PrevConfidenceLevel(ctx, "evt1", "spreads")
	require.True(t, found)
	assert.Equal(t, domain.ConfidenceHigh, level)

	last, found := cacheSvc.LastSent(ctx, alert.DedupeKey())
	require.True(t, found)
	assert.WithinDuration(t, time.Now(), last, time.Minute)
}

func TestPriorityFor(t *testing.T) {
	cases := []struct {
		alertType domain.AlertType
		level     domain.ConfidenceLevel
		want      domain.AlertPriority
	}{
		{domain.AlertSharpActivity, domain.ConfidenceHigh, domain.PriorityUrgent},
		{domain.AlertSharpActivity, domain.ConfidenceMedium, domain.PriorityHigh},
		{domain.AlertSharpActivity, domain.ConfidenceLow, domain.PriorityHigh},
		{domain.AlertConfidenceEscalation, domain.ConfidenceHigh, domain.PriorityHigh},
		{domain.AlertConsensusFormed, domain.ConfidenceHigh, domain.PriorityHigh},
		{domain.AlertConsensusFormed, domain.ConfidenceMedium, domain.PriorityNormal},
		{domain.AlertNewMovement, domain.ConfidenceMedium, domain.PriorityNormal},
		{domain.AlertNewMovement, domain.ConfidenceLow, domain.PriorityNormal},
		{domain.AlertReversal, domain.ConfidenceLow, domain.PriorityHigh},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, priorityFor(tc.alertType, tc.level), "%s at %s", tc.alertType, tc.level)
	}
}

func TestChannelsFor(t *testing.T) {
	assert.ElementsMatch(t, []string{domain.ChannelSharp}, channelsFor(domain.AlertSharpActivity, domain.ConfidenceLow))
	assert.ElementsMatch(t, []string{domain.ChannelSharp, domain.ChannelCore}, channelsFor(domain.AlertNewMovement, domain.ConfidenceHigh))
	assert.ElementsMatch(t, []string{domain.ChannelCore}, channelsFor(domain.AlertConsensusFormed, domain.ConfidenceMedium))
	assert.Empty(t, channelsFor(domain.AlertNewMovement, domain.ConfidenceLow))
}

func TestEvaluate_SendDirect(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	fp := sharpFingerprint(time.Now().UTC())
	alert, err := engine.Evaluate(ctx, fp, domain.ConfidenceScore{Total: 40, Level: domain.ConfidenceLow})
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.True(t, alert.SendDirect, "sharp activity always goes direct")

	quiet := quietFingerprint(time.Now().UTC())
	quiet.DeltaMagnitude = 1.0
	moved, err := engine.Evaluate(ctx, quiet, domain.ConfidenceScore{Total: 20, Level: domain.ConfidenceLow})
	require.NoError(t, err)
	require.NotNil(t, moved)
	assert.False(t, moved.SendDirect)
}
