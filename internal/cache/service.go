package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/linesentry/core/internal/config"
	"github.com/linesentry/core/internal/domain"
	"github.com/linesentry/core/internal/metrics"
)

// Service is the typed cache facade the pipeline talks to. The cache is
// advisory: every read error degrades to a miss and every write error
// to a no-op, logged but never propagated. Correctness must not depend
// on any specific entry existing.
type Service struct {
	store   Store
	cfg     config.CacheConfig
	metrics *metrics.Registry
}

// NewService wraps a Store with typed helpers and TTL policy.
func NewService(store Store, cfg config.CacheConfig, m *metrics.Registry) *Service {
	return &Service{store: store, cfg: cfg, metrics: m}
}

// Ping reports backend reachability, used by readiness checks.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// GetBytes reads a raw value; errors degrade to a miss.
func (s *Service) GetBytes(ctx context.Context, key, cacheType string) ([]byte, bool) {
	data, found, err := s.store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache get failed")
		s.recordMiss(cacheType)
		return nil, false
	}
	if !found {
		s.recordMiss(cacheType)
		return nil, false
	}
	s.recordHit(cacheType)
	return data, true
}

// SetBytes writes a raw value; errors degrade to a no-op.
func (s *Service) SetBytes(ctx context.Context, key, cacheType string, value []byte, ttl time.Duration) {
	if err := s.store.Set(ctx, key, value, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

// SetBytesNX writes only when absent and reports whether this call won.
// A backend error counts as not-won so racing callers fail closed.
func (s *Service) SetBytesNX(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	ok, err := s.store.SetNX(ctx, key, value, ttl)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache setnx failed")
		return false
	}
	return ok
}

// Remove deletes keys; errors degrade to a no-op.
func (s *Service) Remove(ctx context.Context, keys ...string) {
	if err := s.store.Remove(ctx, keys...); err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("cache remove failed")
	}
}

// GetJSON decodes the cached JSON value at key into T.
func GetJSON[T any](ctx context.Context, s *Service, key, cacheType string) (*T, bool) {
	data, found := s.GetBytes(ctx, key, cacheType)
	if !found {
		return nil, false
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache entry undecodable, dropping")
		s.Remove(ctx, key)
		return nil, false
	}
	return &value, true
}

// SetJSON stores value as JSON under key.
func SetJSON[T any](ctx context.Context, s *Service, key, cacheType string, value T, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache marshal failed")
		return
	}
	s.SetBytes(ctx, key, cacheType, data, ttl)
}

func (s *Service) recordHit(cacheType string) {
	if s.metrics != nil {
		s.metrics.RecordCacheHit(cacheType)
	}
}

func (s *Service) recordMiss(cacheType string) {
	if s.metrics != nil {
		s.metrics.RecordCacheMiss(cacheType)
	}
}

// Fingerprint returns the stored fingerprint for a market, keyed by the
// composite market key (marketKey[:playerSlug]).
func (s *Service) Fingerprint(ctx context.Context, eventID, marketKey string) (*domain.MarketFingerprint, bool) {
	return GetJSON[domain.MarketFingerprint](ctx, s, FingerprintKey(eventID, marketKey), metrics.CacheFingerprint)
}

// SetFingerprint stores a fingerprint under its own identity.
func (s *Service) SetFingerprint(ctx context.Context, fp domain.MarketFingerprint) {
	key := FingerprintKey(fp.EventID, fp.FingerprintKey())
	SetJSON(ctx, s, key, metrics.CacheFingerprint, fp, s.cfg.FingerprintTTL())
}

// Confidence returns the memoized score for an event market.
func (s *Service) Confidence(ctx context.Context, eventID, marketKey string) (*domain.ConfidenceScore, bool) {
	return GetJSON[domain.ConfidenceScore](ctx, s, ConfidenceKey(eventID, marketKey), metrics.CacheConfidence)
}

// SetConfidence memoizes a score for an event market.
func (s *Service) SetConfidence(ctx context.Context, eventID, marketKey string, score domain.ConfidenceScore) {
	SetJSON(ctx, s, ConfidenceKey(eventID, marketKey), metrics.CacheConfidence, score, s.cfg.ConfidenceTTL())
}

// ClosingLine returns the captured closing line for an event market.
func (s *Service) ClosingLine(ctx context.Context, eventID, marketKey string) (*domain.ClosingLineRecord, bool) {
	return GetJSON[domain.ClosingLineRecord](ctx, s, ClosingLineKey(eventID, marketKey), metrics.CacheClosingLine)
}

// SetClosingLineNX captures a closing line only if none exists yet, so
// the earliest capture inside the window wins. Reports whether this
// call recorded it.
func (s *Service) SetClosingLineNX(ctx context.Context, rec domain.ClosingLineRecord, ttl time.Duration) bool {
	data, err := json.Marshal(rec)
	if err != nil {
		log.Warn().Err(err).Str("event_id", rec.EventID).Msg("closing line marshal failed")
		return false
	}
	return s.SetBytesNX(ctx, ClosingLineKey(rec.EventID, rec.MarketKey), data, ttl)
}

// RemoveClosingLine deletes a consumed closing-line record.
func (s *Service) RemoveClosingLine(ctx context.Context, eventID, marketKey string) {
	s.Remove(ctx, ClosingLineKey(eventID, marketKey))
}

// DedupeExists reports whether a dedupe entry is live for the key.
func (s *Service) DedupeExists(ctx context.Context, dedupeKey string) bool {
	_, found := s.GetBytes(ctx, AlertDedupeKey(dedupeKey), metrics.CacheAlert)
	return found
}

// CommitDedupe atomically claims the dedupe slot for an alert. Only the
// first caller inside the window returns true; that caller owns the
// dispatch.
func (s *Service) CommitDedupe(ctx context.Context, dedupeKey string, ttl time.Duration) bool {
	stamp := []byte(time.Now().UTC().Format(time.RFC3339Nano))
	return s.SetBytesNX(ctx, AlertDedupeKey(dedupeKey), stamp, ttl)
}

// LastSent returns when an alert with this dedupe key last went out.
func (s *Service) LastSent(ctx context.Context, dedupeKey string) (time.Time, bool) {
	data, found := s.GetBytes(ctx, AlertLastTimeKey(dedupeKey), metrics.CacheAlert)
	if !found {
		return time.Time{}, false
	}
	nanos, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		log.Warn().Err(err).Str("dedupe_key", dedupeKey).Msg("last-sent entry undecodable")
		return time.Time{}, false
	}
	return time.Unix(0, nanos), true
}

// SetLastSent records the dispatch time for a dedupe key, retained for
// 24 hours.
func (s *Service) SetLastSent(ctx context.Context, dedupeKey string, at time.Time) {
	value := []byte(strconv.FormatInt(at.UnixNano(), 10))
	s.SetBytes(ctx, AlertLastTimeKey(dedupeKey), metrics.CacheAlert, value, 24*time.Hour)
}

// PrevConfidenceLevel returns the last stored level for an event market.
func (s *Service) PrevConfidenceLevel(ctx context.Context, eventID, marketKey string) (domain.ConfidenceLevel, bool) {
	data, found := s.GetBytes(ctx, AlertPrevConfidenceKey(eventID, marketKey), metrics.CacheAlert)
	if !found {
		return "", false
	}
	return domain.ConfidenceLevel(data), true
}

// SetPrevConfidenceLevel stores the observed level for escalation
// detection.
func (s *Service) SetPrevConfidenceLevel(ctx context.Context, eventID, marketKey string, level domain.ConfidenceLevel) {
	s.SetBytes(ctx, AlertPrevConfidenceKey(eventID, marketKey), metrics.CacheAlert, []byte(level), 24*time.Hour)
}

// RawOdds returns a cached raw provider payload.
func (s *Service) RawOdds(ctx context.Context, eventID, marketKey string) ([]byte, bool) {
	return s.GetBytes(ctx, RawOddsKey(eventID, marketKey), metrics.CacheReference)
}

// SetRawOdds caches a raw provider payload under the default TTL.
func (s *Service) SetRawOdds(ctx context.Context, eventID, marketKey string, payload []byte) {
	s.SetBytes(ctx, RawOddsKey(eventID, marketKey), metrics.CacheReference, payload, s.cfg.DefaultTTL())
}

// AIExplanation returns a cached generated explanation.
func (s *Service) AIExplanation(ctx context.Context, subject string) ([]byte, bool) {
	return s.GetBytes(ctx, AIExplanationKey(subject), metrics.CacheReference)
}

// SetAIExplanation caches a generated explanation.
func (s *Service) SetAIExplanation(ctx context.Context, subject string, text []byte) {
	s.SetBytes(ctx, AIExplanationKey(subject), metrics.CacheReference, text, s.cfg.AIExplanationTTL())
}

// Subscription returns cached per-user subscription data.
func (s *Service) Subscription(ctx context.Context, userID string) ([]byte, bool) {
	return s.GetBytes(ctx, SubscriptionKey(userID), metrics.CacheReference)
}

// SetSubscription caches per-user subscription data.
func (s *Service) SetSubscription(ctx context.Context, userID string, data []byte) {
	s.SetBytes(ctx, SubscriptionKey(userID), metrics.CacheReference, data, s.cfg.SubscriptionTTL())
}

// InvalidateMarket removes the fingerprint, confidence, and raw odds
// entries for one market.
func (s *Service) InvalidateMarket(ctx context.Context, eventID, marketKey string) {
	s.Remove(ctx,
		FingerprintKey(eventID, marketKey),
		ConfidenceKey(eventID, marketKey),
		RawOddsKey(eventID, marketKey),
	)
}

// InvalidateEvent fans InvalidateMarket out over all of an event's
// markets.
func (s *Service) InvalidateEvent(ctx context.Context, eventID string, marketKeys []string) {
	keys := make([]string, 0, len(marketKeys)*3)
	for _, marketKey := range marketKeys {
		keys = append(keys,
			FingerprintKey(eventID, marketKey),
			ConfidenceKey(eventID, marketKey),
			RawOddsKey(eventID, marketKey),
		)
	}
	s.Remove(ctx, keys...)
}

// InvalidateReference removes the registry caches after a reference
// mutation.
func (s *Service) InvalidateReference(ctx context.Context, sportKeys []string, tiers []string) {
	keys := []string{SportsKey(true), SportsKey(false), BookmakerTiersKey()}
	for _, sportKey := range sportKeys {
		keys = append(keys, MarketsForSportKey(sportKey))
	}
	for _, tier := range tiers {
		keys = append(keys, AccessibleBookmakersKey(tier))
	}
	s.Remove(ctx, keys...)
}
