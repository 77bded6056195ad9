package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// SubscriptionTier gates market, bookmaker, and history access.
// Ordering matters: higher tiers see everything lower tiers see.
type SubscriptionTier int

const (
	TierStarter SubscriptionTier = iota
	TierCore
	TierSharp
)

// String returns the lowercase tier name used in cache keys and config.
func (t SubscriptionTier) String() string {
	switch t {
	case TierStarter:
		return "starter"
	case TierCore:
		return "core"
	case TierSharp:
		return "sharp"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// MarshalText renders the tier as its name so cached JSON stays readable.
func (t SubscriptionTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a tier name, case-insensitive.
func (t *SubscriptionTier) UnmarshalText(text []byte) error {
	parsed, err := ParseSubscriptionTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseSubscriptionTier maps a tier name to its ordered value.
func ParseSubscriptionTier(s string) (SubscriptionTier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "starter":
		return TierStarter, nil
	case "core":
		return TierCore, nil
	case "sharp":
		return TierSharp, nil
	default:
		return TierStarter, fmt.Errorf("unknown subscription tier %q", s)
	}
}

// Covers reports whether a subscriber at tier t may access content
// requiring tier required.
func (t SubscriptionTier) Covers(required SubscriptionTier) bool {
	return t >= required
}

// BookTier classifies how much a bookmaker leads or lags informed
// price discovery. Sharp books move first; retail books follow.
type BookTier int

const (
	BookRetail BookTier = iota
	BookMarket
	BookSharp
)

// String returns the lowercase tier name stored alongside signals.
func (t BookTier) String() string {
	switch t {
	case BookRetail:
		return "retail"
	case BookMarket:
		return "market"
	case BookSharp:
		return "sharp"
	default:
		return fmt.Sprintf("booktier(%d)", int(t))
	}
}

// MarshalText renders the tier name for JSON payloads.
func (t BookTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a book tier name, case-insensitive.
func (t *BookTier) UnmarshalText(text []byte) error {
	parsed, err := ParseBookTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseBookTier maps a tier name to its ordered value.
func ParseBookTier(s string) (BookTier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "retail":
		return BookRetail, nil
	case "market":
		return BookMarket, nil
	case "sharp":
		return BookSharp, nil
	default:
		return BookRetail, fmt.Errorf("unknown book tier %q", s)
	}
}

// Value stores the tier name in the database.
func (t BookTier) Value() (driver.Value, error) {
	return t.String(), nil
}

// Scan reads a tier name back from the database.
func (t *BookTier) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return t.UnmarshalText([]byte(v))
	case []byte:
		return t.UnmarshalText(v)
	case nil:
		*t = BookRetail
		return nil
	default:
		return fmt.Errorf("cannot scan book tier from %T", src)
	}
}
