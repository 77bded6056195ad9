package domain

// PeriodStructure describes how a sport divides game time.
type PeriodStructure string

const (
	PeriodsFull     PeriodStructure = "full"
	PeriodsHalves   PeriodStructure = "halves"
	PeriodsQuarters PeriodStructure = "quarters"
	PeriodsPeriods  PeriodStructure = "periods"
	PeriodsInnings  PeriodStructure = "innings"
)

// Sport is a reference entity seeded at startup. Only Active changes
// at runtime.
type Sport struct {
	Key      string          `json:"key"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Periods  PeriodStructure `json:"periods"`
	Active   bool            `json:"active"`
	Keywords []string        `json:"keywords"`
}

// OutcomeShape determines how the normalizer and grader interpret a
// market's outcomes.
type OutcomeShape string

const (
	ShapeTeamBased OutcomeShape = "team_based"
	ShapeOverUnder OutcomeShape = "over_under"
	ShapeYesNo     OutcomeShape = "yes_no"
	ShapeNamed     OutcomeShape = "named"
)

// MarketDefinition is a reference entity describing one market key.
type MarketDefinition struct {
	Key          string           `json:"key"`
	Name         string           `json:"name"`
	Category     string           `json:"category"`
	Shape        OutcomeShape     `json:"shape"`
	RequiredTier SubscriptionTier `json:"required_tier"`
	PlayerProp   bool             `json:"player_prop"`
	Alternate    bool             `json:"alternate"`
	Period       string           `json:"period,omitempty"`
	Keywords     []string         `json:"keywords"`
}

// IsPeriodSpecific reports whether the market covers less than the
// full game.
func (m MarketDefinition) IsPeriodSpecific() bool {
	return m.Period != ""
}

// Bookmaker is a reference entity describing one sportsbook.
type Bookmaker struct {
	Key          string           `json:"key"`
	Name         string           `json:"name"`
	Tier         BookTier         `json:"tier"`
	RequiredTier SubscriptionTier `json:"required_tier"`
	Region       string           `json:"region"`
	Keywords     []string         `json:"keywords"`
}
