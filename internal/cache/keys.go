package cache

import "fmt"

// Key builders. Names are part of the external contract: operators
// inspect and expire these by hand, so they stay stable.

// FingerprintKey addresses the current fingerprint for a market. For
// player props marketKey already carries the ":playerSlug" suffix.
func FingerprintKey(eventID, marketKey string) string {
	return fmt.Sprintf("fingerprint:%s:%s", eventID, marketKey)
}

// ConfidenceKey addresses the memoized confidence score for a market.
func ConfidenceKey(eventID, marketKey string) string {
	return fmt.Sprintf("confidence:%s:%s", eventID, marketKey)
}

// RawOddsKey addresses the raw provider payload for a market.
func RawOddsKey(eventID, marketKey string) string {
	return fmt.Sprintf("odds:raw:%s:%s", eventID, marketKey)
}

// ClosingLineKey addresses the pre-kickoff consensus line record.
func ClosingLineKey(eventID, marketKey string) string {
	return fmt.Sprintf("closingline:%s:%s", eventID, marketKey)
}

// AlertDedupeKey addresses the dedupe entry for an alert.
func AlertDedupeKey(dedupeKey string) string {
	return fmt.Sprintf("alert:dedupe:%s", dedupeKey)
}

// AlertLastTimeKey addresses the last-sent timestamp for an alert.
func AlertLastTimeKey(dedupeKey string) string {
	return fmt.Sprintf("alert:lasttime:%s", dedupeKey)
}

// AlertPrevConfidenceKey addresses the previously observed confidence
// level for a market.
func AlertPrevConfidenceKey(eventID, marketKey string) string {
	return fmt.Sprintf("alert:prevconfidence:%s:%s", eventID, marketKey)
}

// SportsKey addresses the cached sports list.
func SportsKey(activeOnly bool) string {
	if activeOnly {
		return "mktdata:sports:active"
	}
	return "mktdata:sports:all"
}

// MarketsForSportKey addresses the cached market list for a sport.
func MarketsForSportKey(sportKey string) string {
	return fmt.Sprintf("mktdata:markets:sport:%s", sportKey)
}

// BookmakerTiersKey addresses the cached bookmaker tier map.
func BookmakerTiersKey() string {
	return "mktdata:bookmakers:tiers"
}

// AccessibleBookmakersKey addresses the cached book list per
// subscription tier.
func AccessibleBookmakersKey(tier string) string {
	return fmt.Sprintf("mktdata:bookmakers:accessible:%s", tier)
}

// AIExplanationKey addresses a cached generated explanation.
func AIExplanationKey(subject string) string {
	return fmt.Sprintf("ai:explanation:%s", subject)
}

// SubscriptionKey addresses cached per-user subscription data.
func SubscriptionKey(userID string) string {
	return fmt.Sprintf("user:subscription:%s", userID)
}
