package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/quantfold/papertrade/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the engine configuration loaded from YAML at startup.
type Config struct {
	// DatabasePath is the DuckDB file path; ":memory:" for ephemeral runs.
	DatabasePath string `yaml:"database_path" validate:"required"`
	// AccountID names the simulated account this instance operates.
	AccountID string `yaml:"account_id" validate:"required"`
	// InitialCapital seeds the account when it does not exist yet.
	InitialCapital float64 `yaml:"initial_capital" validate:"gt=0"`

	HTTPPort int `yaml:"http_port" validate:"gt=0,lte=65535"`

	// Watchlist is the symbol basket scored and scanned by the auto-trader.
	Watchlist []string `yaml:"watchlist" validate:"min=1"`

	Session  SessionConfig  `yaml:"session" validate:"required"`
	Fees     FeeConfig      `yaml:"fees" validate:"required"`
	Orders   OrderConfig    `yaml:"orders" validate:"required"`
	Trader   TraderConfig   `yaml:"trader" validate:"required"`
	Advisor  AdvisorConfig  `yaml:"advisor"`
	Quotes   QuoteConfig    `yaml:"quotes"`
	Pressure PressureConfig `yaml:"pressure"`
	News     NewsConfig     `yaml:"news"`
}

// SessionConfig defines the daily trading window in one reference timezone,
// Monday through Friday.
type SessionConfig struct {
	Timezone  string `yaml:"timezone" validate:"required"`
	OpenHour  int    `yaml:"open_hour" validate:"gte=0,lte=23"`
	OpenMin   int    `yaml:"open_min" validate:"gte=0,lte=59"`
	CloseHour int    `yaml:"close_hour" validate:"gte=0,lte=23"`
	CloseMin  int    `yaml:"close_min" validate:"gte=0,lte=59"`
}

// FeeConfig holds the simulated execution cost model.
type FeeConfig struct {
	// FeeRate is applied to price*quantity on both sides.
	FeeRate float64 `yaml:"fee_rate" validate:"gte=0"`
	// SlippageRate models market impact on price*quantity.
	SlippageRate float64 `yaml:"slippage_rate" validate:"gte=0"`
}

// OrderConfig tunes the order engine.
type OrderConfig struct {
	// ExecutionDelay models real-world fill latency before each simulated
	// execution.
	ExecutionDelay time.Duration `yaml:"execution_delay"`
	// CheckInterval is the floor between trigger re-evaluations of an order.
	CheckInterval time.Duration `yaml:"check_interval"`
}

// TraderConfig tunes the auto-trader loop.
type TraderConfig struct {
	MaxOpenPositions int `yaml:"max_open_positions" validate:"gt=0"`
	// CapitalFraction sizes each new position as a fraction of total value.
	CapitalFraction float64 `yaml:"capital_fraction" validate:"gt=0,lte=1"`
	// MinHoldingTime must elapse before a momentum-fade exit may fire.
	MinHoldingTime time.Duration `yaml:"min_holding_time"`
	// ProfitTargetPct and StopLossPct are exit thresholds in percent.
	ProfitTargetPct float64 `yaml:"profit_target_pct" validate:"gt=0"`
	StopLossPct     float64 `yaml:"stop_loss_pct" validate:"gt=0"`
	// VolatilityExitPct force-closes a position on an extreme move.
	VolatilityExitPct float64 `yaml:"volatility_exit_pct" validate:"gt=0"`
	// CloseBuffer is how long before session close positions are flattened.
	CloseBuffer time.Duration `yaml:"close_buffer"`
	// WinRateFloor and WinRateCeiling drive end-of-day weight adaptation.
	WinRateFloor   float64 `yaml:"win_rate_floor" validate:"gte=0,lte=1"`
	WinRateCeiling float64 `yaml:"win_rate_ceiling" validate:"gte=0,lte=1"`
}

// AdvisorConfig configures the OpenAI-compatible advisor endpoint.
type AdvisorConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	// APIKeyEnv names the environment variable holding the key.
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
	// MinInterval is the floor between advisor calls (rate limiting toward
	// the upstream is mandatory).
	MinInterval time.Duration `yaml:"min_interval"`
}

// QuoteConfig configures quote providers.
type QuoteConfig struct {
	// PolygonAPIKeyEnv names the env var for the polygon.io key.
	PolygonAPIKeyEnv string        `yaml:"polygon_api_key_env"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	MinInterval      time.Duration `yaml:"min_interval"`
}

// NewsConfig configures the headline scraper feeding sentiment.
type NewsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Timeout bounds each page fetch.
	Timeout time.Duration `yaml:"timeout"`
	// MaxHeadlines caps the headlines collected per symbol and pass.
	MaxHeadlines int `yaml:"max_headlines" validate:"gt=0"`
	// CacheTTL is how long scraped headlines are reused before re-fetching.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// PressureConfig tunes the scoring cadence.
type PressureConfig struct {
	RecalcInterval time.Duration `yaml:"recalc_interval"`
	SignalInterval time.Duration `yaml:"signal_interval"`
}

// Load reads and validates a YAML config file.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to read config file", err)
	}

	return Parse(raw)
}

// Parse unmarshals and validates raw YAML config.
func Parse(raw []byte) (Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	return nil
}

// Default returns the configuration used when fields are omitted. The
// session window defaults to US regular trading hours.
func Default() Config {
	return Config{
		DatabasePath:   ":memory:",
		AccountID:      "default",
		InitialCapital: 100000,
		HTTPPort:       8080,
		Watchlist:      []string{"AAPL", "MSFT", "NVDA", "TSLA", "AMZN"},
		Session: SessionConfig{
			Timezone:  "America/New_York",
			OpenHour:  9,
			OpenMin:   30,
			CloseHour: 16,
			CloseMin:  0,
		},
		Fees: FeeConfig{
			FeeRate:      0.008,
			SlippageRate: 0.0005,
		},
		Orders: OrderConfig{
			ExecutionDelay: 500 * time.Millisecond,
			CheckInterval:  5 * time.Second,
		},
		Trader: TraderConfig{
			MaxOpenPositions:  5,
			CapitalFraction:   0.1,
			MinHoldingTime:    15 * time.Minute,
			ProfitTargetPct:   3.0,
			StopLossPct:       2.0,
			VolatilityExitPct: 5.0,
			CloseBuffer:       10 * time.Minute,
			WinRateFloor:      0.4,
			WinRateCeiling:    0.65,
		},
		Advisor: AdvisorConfig{
			Endpoint:    "",
			Model:       "",
			APIKeyEnv:   "ADVISOR_API_KEY",
			Timeout:     10 * time.Second,
			MinInterval: 2 * time.Second,
		},
		Quotes: QuoteConfig{
			PolygonAPIKeyEnv: "POLYGON_API_KEY",
			PollInterval:     10 * time.Second,
			MinInterval:      500 * time.Millisecond,
		},
		Pressure: PressureConfig{
			RecalcInterval: 10 * time.Second,
			SignalInterval: 15 * time.Second,
		},
		News: NewsConfig{
			Enabled:      true,
			Timeout:      10 * time.Second,
			MaxHeadlines: 10,
			CacheTTL:     5 * time.Minute,
		},
	}
}
