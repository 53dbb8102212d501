// Package common provides shared utilities for stockwatch
package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for stockwatch
type Config struct {
	Environment string           `toml:"environment"`
	Database    DatabaseConfig   `toml:"database"`
	Clients     ClientsConfig    `toml:"clients"`
	Collect     CollectConfig    `toml:"collect"`
	Indicators  IndicatorsConfig `toml:"indicators"`
	Report      ReportConfig     `toml:"report"`
	Logging     LoggingConfig    `toml:"logging"`
}

// DatabaseConfig holds the Postgres connection settings.
// The URL is mandatory for any run that touches storage.
type DatabaseConfig struct {
	URL string `toml:"url"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	JQuants     JQuantsConfig     `toml:"jquants"`
	Tiingo      TiingoConfig      `toml:"tiingo"`
	Frankfurter FrankfurterConfig `toml:"frankfurter"`
}

// JQuantsConfig holds the Tokyo equities provider configuration
type JQuantsConfig struct {
	BaseURL      string `toml:"base_url"`
	RefreshToken string `toml:"refresh_token"`
	RateLimit    int    `toml:"rate_limit" validate:"gte=0"`
	Timeout      string `toml:"timeout"`
	MaxPages     int    `toml:"max_pages" validate:"gte=1"`
}

// GetTimeout parses and returns the timeout duration
func (c *JQuantsConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// TiingoConfig holds the US equities provider configuration
type TiingoConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit" validate:"gte=0"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *TiingoConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// FrankfurterConfig holds the FX rate provider configuration
type FrankfurterConfig struct {
	BaseURL   string `toml:"base_url"`
	Pairs     []string `toml:"pairs" validate:"dive,len=7"`
	RateLimit int    `toml:"rate_limit" validate:"gte=0"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *FrankfurterConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// CollectConfig holds collection run parameters
type CollectConfig struct {
	LookbackDays int    `toml:"lookback_days" validate:"gte=1"`
	RetryAttempts int   `toml:"retry_attempts" validate:"gte=1"`
	InitialBackoff string `toml:"initial_backoff"`
	MaxBackoff     string `toml:"max_backoff"`
}

// GetInitialBackoff parses and returns the initial retry backoff
func (c *CollectConfig) GetInitialBackoff() time.Duration {
	d, err := time.ParseDuration(c.InitialBackoff)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// GetMaxBackoff parses and returns the retry backoff ceiling
func (c *CollectConfig) GetMaxBackoff() time.Duration {
	d, err := time.ParseDuration(c.MaxBackoff)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// IndicatorsConfig holds indicator engine parameters
type IndicatorsConfig struct {
	Benchmark string `toml:"benchmark"`
}

// ReportConfig holds summary document settings
type ReportConfig struct {
	OutputPath string `toml:"output_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Clients: ClientsConfig{
			JQuants: JQuantsConfig{
				BaseURL:   "https://api.jquants.com/v1",
				RateLimit: 5,
				Timeout:   "30s",
				MaxPages:  20,
			},
			Tiingo: TiingoConfig{
				BaseURL:   "https://api.tiingo.com",
				RateLimit: 2,
				Timeout:   "30s",
			},
			Frankfurter: FrankfurterConfig{
				BaseURL:   "https://api.frankfurter.app",
				Pairs:     []string{"USD/JPY"},
				RateLimit: 2,
				Timeout:   "30s",
			},
		},
		Collect: CollectConfig{
			LookbackDays:   450,
			RetryAttempts:  4,
			InitialBackoff: "500ms",
			MaxBackoff:     "30s",
		},
		Indicators: IndicatorsConfig{
			Benchmark: "SPY",
		},
		Report: ReportConfig{
			OutputPath: "reports/summary.md",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Later files override earlier ones; missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("STOCKWATCH_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("STOCKWATCH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if url := os.Getenv("STOCKWATCH_DATABASE_URL"); url != "" {
		config.Database.URL = url
	}
	if url := os.Getenv("DATABASE_URL"); url != "" && config.Database.URL == "" {
		config.Database.URL = url
	}

	if v := os.Getenv("STOCKWATCH_REPORT_PATH"); v != "" {
		config.Report.OutputPath = v
	}

	if v := os.Getenv("STOCKWATCH_BENCHMARK"); v != "" {
		config.Indicators.Benchmark = v
	}

	if v := os.Getenv("STOCKWATCH_LOOKBACK_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Collect.LookbackDays = n
		}
	}
}

// ResolveAPIKey resolves a credential from the environment, falling back to
// the config value. Returns an error when neither is set; callers decide
// whether a missing key is fatal or just disables one source.
func ResolveAPIKey(envNames []string, fallback string) (string, error) {
	for _, name := range envNames {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("credential not found in environment (%v) or config", envNames)
}
