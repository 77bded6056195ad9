package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration tree.
type Config struct {
	App         AppConfig         `yaml:"app"`
	Poller      PollerConfig      `yaml:"poller"`
	ClosingLine ClosingLineConfig `yaml:"closingLine"`
	Alert       AlertConfig       `yaml:"alert"`
	Confidence  ConfidenceConfig  `yaml:"confidence"`
	Cache       CacheConfig       `yaml:"cache"`
	History     HistoryConfig     `yaml:"history"`
	Grader      GraderConfig      `yaml:"grader"`
	Provider    ProviderConfig    `yaml:"provider"`
	Store       StoreConfig       `yaml:"store"`
	Monitor     MonitorConfig     `yaml:"monitor"`
}

// AppConfig holds process-level settings.
type AppConfig struct {
	LogLevel string `yaml:"logLevel"` // trace|debug|info|warn|error
}

// PollerConfig controls the odds polling loop.
type PollerConfig struct {
	BaseIntervalSeconds    int `yaml:"baseIntervalSeconds"`    // tick period
	PlayerPropEveryNthTick int `yaml:"playerPropEveryNthTick"` // prop markets run on every Nth tick
	TickDeadlineSeconds    int `yaml:"tickDeadlineSeconds"`    // per-tick budget, must be < interval
	SportConcurrency       int `yaml:"sportConcurrency"`       // parallel sport workers per tick
	PropLookaheadHours     int `yaml:"propLookaheadHours"`     // only fetch props for games this close
}

// ClosingLineConfig controls closing-line capture near kickoff.
type ClosingLineConfig struct {
	WindowMinutes int `yaml:"windowMinutes"` // capture when 0 < kickoff-now <= window
	TTLHours      int `yaml:"ttlHours"`      // cache retention until graded
}

// AlertConfig controls alert classification, dedupe, and delivery.
type AlertConfig struct {
	DefaultCooldownMinutes      int     `yaml:"defaultCooldownMinutes"`
	HighPriorityCooldownMinutes int     `yaml:"highPriorityCooldownMinutes"`
	UrgentCooldownMinutes       int     `yaml:"urgentCooldownMinutes"`
	DedupeWindowMinutes         int     `yaml:"dedupeWindowMinutes"`
	MinDeltaForSharpAlert       float64 `yaml:"minDeltaForSharpAlert"`
	MinDeltaForMovementAlert    float64 `yaml:"minDeltaForMovementAlert"`
	MinBooksForConsensus        int     `yaml:"minBooksForConsensus"`
	ReversalWindowMinutes       int     `yaml:"reversalWindowMinutes"`
	DryRun                      bool    `yaml:"dryRun"`

	Discord  DiscordSinkConfig  `yaml:"discord"`
	Telegram TelegramSinkConfig `yaml:"telegram"`
}

// DiscordSinkConfig configures the Discord webhook sink.
type DiscordSinkConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhookUrl"`
	Username   string `yaml:"username"`
}

// TelegramSinkConfig configures the Telegram bot sink.
type TelegramSinkConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// ConfidenceConfig holds scorer weights and thresholds.
type ConfidenceConfig struct {
	SharpMoverScore  float64 `yaml:"sharpMoverScore"`
	MarketMoverScore float64 `yaml:"marketMoverScore"`
	RetailMoverScore float64 `yaml:"retailMoverScore"`

	HighVelocityThreshold   float64 `yaml:"highVelocityThreshold"`   // points per hour
	MediumVelocityThreshold float64 `yaml:"mediumVelocityThreshold"` // points per hour

	HighConfirmationThreshold   int `yaml:"highConfirmationThreshold"`   // books
	MediumConfirmationThreshold int `yaml:"mediumConfirmationThreshold"` // books

	HighStabilityThreshold   int `yaml:"highStabilityThreshold"`   // minutes
	MediumStabilityThreshold int `yaml:"mediumStabilityThreshold"` // minutes
}

// CacheConfig configures the Redis cache and per-kind TTLs.
type CacheConfig struct {
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`

	DefaultTTLSeconds       int `yaml:"defaultTtlSeconds"`
	FingerprintTTLSeconds   int `yaml:"fingerprintTtlSeconds"`
	ConfidenceTTLSeconds    int `yaml:"confidenceTtlSeconds"`
	AIExplanationTTLSeconds int `yaml:"aiExplanationTtlSeconds"`
	SubscriptionTTLSeconds  int `yaml:"subscriptionTtlSeconds"`
}

// HistoryConfig maps subscription tiers to line-history depth.
type HistoryConfig struct {
	StarterHistoricalDays int `yaml:"starterHistoricalDays"`
	CoreHistoricalDays    int `yaml:"coreHistoricalDays"`
	SharpHistoricalDays   int `yaml:"sharpHistoricalDays"`
}

// GraderConfig controls the outcome grading loop.
type GraderConfig struct {
	IntervalMinutes    int `yaml:"intervalMinutes"`
	ScoresLookbackDays int `yaml:"scoresLookbackDays"`
}

// ProviderConfig configures the odds provider client and its guard.
type ProviderConfig struct {
	BaseURL                   string        `yaml:"baseUrl"`
	APIKey                    string        `yaml:"apiKey"`
	Regions                   string        `yaml:"regions"`
	RequestTimeoutSeconds     int           `yaml:"requestTimeoutSeconds"`
	RPS                       int           `yaml:"rps"`
	Burst                     int           `yaml:"burst"`
	DailyBudget               int           `yaml:"dailyBudget"`
	BudgetWarnThreshold       float64       `yaml:"budgetWarnThreshold"`
	MaxRetries                int           `yaml:"maxRetries"`
	BackoffMS                 BackoffConfig `yaml:"backoffMs"`
	Circuit                   CircuitConfig `yaml:"circuit"`
	HistoricalSampleDelayMS   int           `yaml:"historicalSampleDelayMs"`
	HistoricalIntervalsPerDay int           `yaml:"historicalIntervalsPerDay"`
}

// BackoffConfig represents exponential backoff bounds in milliseconds.
type BackoffConfig struct {
	Base   int  `yaml:"base"`
	Max    int  `yaml:"max"`
	Jitter bool `yaml:"jitter"`
}

// CircuitConfig represents circuit breaker tuning.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failureThreshold"` // consecutive failures to open
	SuccessThreshold int `yaml:"successThreshold"` // half-open successes to close
	OpenSeconds      int `yaml:"openSeconds"`      // time open before half-open probe
}

// StoreConfig configures the Postgres signal store.
type StoreConfig struct {
	DSN                 string `yaml:"dsn"`
	MaxOpenConns        int    `yaml:"maxOpenConns"`
	MaxIdleConns        int    `yaml:"maxIdleConns"`
	QueryTimeoutSeconds int    `yaml:"queryTimeoutSeconds"`
}

// MonitorConfig configures the HTTP monitor server.
type MonitorConfig struct {
	ListenAddr string `yaml:"listenAddr"`
}

// Default returns the configuration with every documented default set.
// Load unmarshals user YAML on top of it.
func Default() *Config {
	return &Config{
		App: AppConfig{LogLevel: "info"},
		Poller: PollerConfig{
			BaseIntervalSeconds:    60,
			PlayerPropEveryNthTick: 5,
			TickDeadlineSeconds:    45,
			SportConcurrency:       4,
			PropLookaheadHours:     24,
		},
		ClosingLine: ClosingLineConfig{
			WindowMinutes: 5,
			TTLHours:      8,
		},
		Alert: AlertConfig{
			DefaultCooldownMinutes:      15,
			HighPriorityCooldownMinutes: 5,
			UrgentCooldownMinutes:       2,
			DedupeWindowMinutes:         60,
			MinDeltaForSharpAlert:       0.5,
			MinDeltaForMovementAlert:    1.0,
			MinBooksForConsensus:        5,
			ReversalWindowMinutes:       5,
		},
		Confidence: ConfidenceConfig{
			SharpMoverScore:             25,
			MarketMoverScore:            15,
			RetailMoverScore:            5,
			HighVelocityThreshold:       2.0,
			MediumVelocityThreshold:     0.5,
			HighConfirmationThreshold:   5,
			MediumConfirmationThreshold: 3,
			HighStabilityThreshold:      60,
			MediumStabilityThreshold:    15,
		},
		Cache: CacheConfig{
			RedisAddr:               "localhost:6379",
			DefaultTTLSeconds:       300,
			FingerprintTTLSeconds:   1800,
			ConfidenceTTLSeconds:    300,
			AIExplanationTTLSeconds: 3600,
			SubscriptionTTLSeconds:  600,
		},
		History: HistoryConfig{
			StarterHistoricalDays: 1,
			CoreHistoricalDays:    7,
			SharpHistoricalDays:   30,
		},
		Grader: GraderConfig{
			IntervalMinutes:    15,
			ScoresLookbackDays: 3,
		},
		Provider: ProviderConfig{
			BaseURL:                   "https://api.the-odds-api.com",
			Regions:                   "us",
			RequestTimeoutSeconds:     10,
			RPS:                       5,
			Burst:                     10,
			DailyBudget:               10000,
			BudgetWarnThreshold:       0.8,
			MaxRetries:                3,
			BackoffMS:                 BackoffConfig{Base: 250, Max: 30000, Jitter: true},
			Circuit:                   CircuitConfig{FailureThreshold: 5, SuccessThreshold: 2, OpenSeconds: 30},
			HistoricalSampleDelayMS:   100,
			HistoricalIntervalsPerDay: 4,
		},
		Store: StoreConfig{
			MaxOpenConns:        10,
			MaxIdleConns:        5,
			QueryTimeoutSeconds: 5,
		},
		Monitor: MonitorConfig{ListenAddr: ":8090"},
	}
}

// Load reads a YAML config file, expands ${ENV} references, overlays it
// on the defaults, and validates the result. An empty path returns the
// validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		content := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate ensures the configuration is consistent.
func (c *Config) Validate() error {
	if err := c.Poller.Validate(); err != nil {
		return fmt.Errorf("poller: %w", err)
	}
	if err := c.ClosingLine.Validate(); err != nil {
		return fmt.Errorf("closingLine: %w", err)
	}
	if err := c.Alert.Validate(); err != nil {
		return fmt.Errorf("alert: %w", err)
	}
	if err := c.Confidence.Validate(); err != nil {
		return fmt.Errorf("confidence: %w", err)
	}
	if err := c.Provider.Validate(); err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	if err := c.Grader.Validate(); err != nil {
		return fmt.Errorf("grader: %w", err)
	}
	return nil
}

// Validate ensures the polling cadence is sane.
func (p *PollerConfig) Validate() error {
	if p.BaseIntervalSeconds <= 0 {
		return fmt.Errorf("baseIntervalSeconds must be positive, got %d", p.BaseIntervalSeconds)
	}
	if p.PlayerPropEveryNthTick <= 0 {
		return fmt.Errorf("playerPropEveryNthTick must be positive, got %d", p.PlayerPropEveryNthTick)
	}
	if p.TickDeadlineSeconds <= 0 || p.TickDeadlineSeconds >= p.BaseIntervalSeconds {
		return fmt.Errorf("tickDeadlineSeconds must be in (0, baseIntervalSeconds), got %d", p.TickDeadlineSeconds)
	}
	if p.SportConcurrency <= 0 {
		return fmt.Errorf("sportConcurrency must be positive, got %d", p.SportConcurrency)
	}
	return nil
}

// Validate ensures the capture window is usable.
func (c *ClosingLineConfig) Validate() error {
	if c.WindowMinutes <= 0 {
		return fmt.Errorf("windowMinutes must be positive, got %d", c.WindowMinutes)
	}
	if c.TTLHours <= 0 {
		return fmt.Errorf("ttlHours must be positive, got %d", c.TTLHours)
	}
	return nil
}

// Validate ensures alert thresholds and cooldowns are consistent.
func (a *AlertConfig) Validate() error {
	if a.DedupeWindowMinutes <= 0 {
		return fmt.Errorf("dedupeWindowMinutes must be positive, got %d", a.DedupeWindowMinutes)
	}
	for name, v := range map[string]int{
		"defaultCooldownMinutes":      a.DefaultCooldownMinutes,
		"highPriorityCooldownMinutes": a.HighPriorityCooldownMinutes,
		"urgentCooldownMinutes":       a.UrgentCooldownMinutes,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if a.MinDeltaForSharpAlert <= 0 {
		return fmt.Errorf("minDeltaForSharpAlert must be positive, got %f", a.MinDeltaForSharpAlert)
	}
	if a.MinDeltaForMovementAlert < a.MinDeltaForSharpAlert {
		return fmt.Errorf("minDeltaForMovementAlert (%f) must be >= minDeltaForSharpAlert (%f)",
			a.MinDeltaForMovementAlert, a.MinDeltaForSharpAlert)
	}
	if a.MinBooksForConsensus <= 0 {
		return fmt.Errorf("minBooksForConsensus must be positive, got %d", a.MinBooksForConsensus)
	}
	return nil
}

// Validate ensures scorer thresholds keep their low-to-high ordering.
func (c *ConfidenceConfig) Validate() error {
	if c.MediumVelocityThreshold <= 0 || c.HighVelocityThreshold <= c.MediumVelocityThreshold {
		return fmt.Errorf("velocity thresholds must satisfy 0 < medium < high")
	}
	if c.MediumConfirmationThreshold <= 0 || c.HighConfirmationThreshold <= c.MediumConfirmationThreshold {
		return fmt.Errorf("confirmation thresholds must satisfy 0 < medium < high")
	}
	if c.MediumStabilityThreshold <= 0 || c.HighStabilityThreshold <= c.MediumStabilityThreshold {
		return fmt.Errorf("stability thresholds must satisfy 0 < medium < high")
	}
	for name, v := range map[string]float64{
		"sharpMoverScore":  c.SharpMoverScore,
		"marketMoverScore": c.MarketMoverScore,
		"retailMoverScore": c.RetailMoverScore,
	} {
		if v < 0 || v > 25 {
			return fmt.Errorf("%s must be within [0,25], got %f", name, v)
		}
	}
	return nil
}

// Validate ensures the provider client can be constructed.
func (p *ProviderConfig) Validate() error {
	if p.BaseURL == "" {
		return fmt.Errorf("baseUrl cannot be empty")
	}
	if p.RPS <= 0 {
		return fmt.Errorf("rps must be positive, got %d", p.RPS)
	}
	if p.Burst < p.RPS {
		return fmt.Errorf("burst (%d) must be >= rps (%d)", p.Burst, p.RPS)
	}
	if p.DailyBudget <= 0 {
		return fmt.Errorf("dailyBudget must be positive, got %d", p.DailyBudget)
	}
	if p.BudgetWarnThreshold <= 0 || p.BudgetWarnThreshold > 1 {
		return fmt.Errorf("budgetWarnThreshold must be in (0,1], got %f", p.BudgetWarnThreshold)
	}
	if p.BackoffMS.Base <= 0 || p.BackoffMS.Max <= p.BackoffMS.Base {
		return fmt.Errorf("backoffMs must satisfy 0 < base < max")
	}
	if p.Circuit.FailureThreshold <= 0 || p.Circuit.SuccessThreshold <= 0 || p.Circuit.OpenSeconds <= 0 {
		return fmt.Errorf("circuit thresholds must be positive")
	}
	return nil
}

// Validate ensures the grading cadence is sane.
func (g *GraderConfig) Validate() error {
	if g.IntervalMinutes <= 0 {
		return fmt.Errorf("intervalMinutes must be positive, got %d", g.IntervalMinutes)
	}
	if g.ScoresLookbackDays <= 0 {
		return fmt.Errorf("scoresLookbackDays must be positive, got %d", g.ScoresLookbackDays)
	}
	return nil
}

// Duration helpers keep unit math out of call sites.

func (p PollerConfig) BaseInterval() time.Duration {
	return time.Duration(p.BaseIntervalSeconds) * time.Second
}

func (p PollerConfig) TickDeadline() time.Duration {
	return time.Duration(p.TickDeadlineSeconds) * time.Second
}

func (p PollerConfig) PropLookahead() time.Duration {
	return time.Duration(p.PropLookaheadHours) * time.Hour
}

func (c ClosingLineConfig) Window() time.Duration {
	return time.Duration(c.WindowMinutes) * time.Minute
}

func (c ClosingLineConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

func (a AlertConfig) DedupeWindow() time.Duration {
	return time.Duration(a.DedupeWindowMinutes) * time.Minute
}

func (a AlertConfig) DefaultCooldown() time.Duration {
	return time.Duration(a.DefaultCooldownMinutes) * time.Minute
}

func (a AlertConfig) HighPriorityCooldown() time.Duration {
	return time.Duration(a.HighPriorityCooldownMinutes) * time.Minute
}

func (a AlertConfig) UrgentCooldown() time.Duration {
	return time.Duration(a.UrgentCooldownMinutes) * time.Minute
}

func (a AlertConfig) ReversalWindow() time.Duration {
	return time.Duration(a.ReversalWindowMinutes) * time.Minute
}

func (c ConfidenceConfig) HighStability() time.Duration {
	return time.Duration(c.HighStabilityThreshold) * time.Minute
}

func (c ConfidenceConfig) MediumStability() time.Duration {
	return time.Duration(c.MediumStabilityThreshold) * time.Minute
}

func (c CacheConfig) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLSeconds) * time.Second
}

func (c CacheConfig) FingerprintTTL() time.Duration {
	return time.Duration(c.FingerprintTTLSeconds) * time.Second
}

func (c CacheConfig) ConfidenceTTL() time.Duration {
	return time.Duration(c.ConfidenceTTLSeconds) * time.Second
}

func (c CacheConfig) AIExplanationTTL() time.Duration {
	return time.Duration(c.AIExplanationTTLSeconds) * time.Second
}

func (c CacheConfig) SubscriptionTTL() time.Duration {
	return time.Duration(c.SubscriptionTTLSeconds) * time.Second
}

func (g GraderConfig) Interval() time.Duration {
	return time.Duration(g.IntervalMinutes) * time.Minute
}

func (p ProviderConfig) RequestTimeout() time.Duration {
	return time.Duration(p.RequestTimeoutSeconds) * time.Second
}

func (p ProviderConfig) BaseBackoff() time.Duration {
	return time.Duration(p.BackoffMS.Base) * time.Millisecond
}

func (p ProviderConfig) MaxBackoff() time.Duration {
	return time.Duration(p.BackoffMS.Max) * time.Millisecond
}

func (p ProviderConfig) CircuitOpenTimeout() time.Duration {
	return time.Duration(p.Circuit.OpenSeconds) * time.Second
}

func (p ProviderConfig) HistoricalSampleDelay() time.Duration {
	return time.Duration(p.HistoricalSampleDelayMS) * time.Millisecond
}

func (s StoreConfig) QueryTimeout() time.Duration {
	return time.Duration(s.QueryTimeoutSeconds) * time.Second
}

// HistoricalDays returns the line-history depth for a tier name as
// produced by domain.SubscriptionTier.String.
func (h HistoryConfig) HistoricalDays(tier string) int {
	switch tier {
	case "sharp":
		return h.SharpHistoricalDays
	case "core":
		return h.CoreHistoricalDays
	default:
		return h.StarterHistoricalDays
	}
}
