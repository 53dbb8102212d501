package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "https://api.jquants.com/v1", cfg.Clients.JQuants.BaseURL)
	assert.Equal(t, 20, cfg.Clients.JQuants.MaxPages)
	assert.Equal(t, []string{"USD/JPY"}, cfg.Clients.Frankfurter.Pairs)
	assert.Equal(t, 450, cfg.Collect.LookbackDays)
	assert.Equal(t, "SPY", cfg.Indicators.Benchmark)
}

func TestLoadConfigMergesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment = "production"

[database]
url = "postgres://localhost/stockwatch"

[clients.tiingo]
rate_limit = 10
timeout = "5s"

[collect]
lookback_days = 100
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "postgres://localhost/stockwatch", cfg.Database.URL)
	assert.Equal(t, 10, cfg.Clients.Tiingo.RateLimit)
	assert.Equal(t, 100, cfg.Collect.LookbackDays)

	// Untouched sections keep their defaults.
	assert.Equal(t, "https://api.tiingo.com", cfg.Clients.Tiingo.BaseURL)
	assert.Equal(t, 4, cfg.Collect.RetryAttempts)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("STOCKWATCH_ENV", "staging")
	t.Setenv("STOCKWATCH_DATABASE_URL", "postgres://env/db")
	t.Setenv("STOCKWATCH_LOOKBACK_DAYS", "30")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, 30, cfg.Collect.LookbackDays)
}

func TestLoadConfigDatabaseURLFallback(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://fallback/db")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres://fallback/db", cfg.Database.URL)
}

func TestGetTimeoutParsing(t *testing.T) {
	c := TiingoConfig{Timeout: "5s"}
	assert.Equal(t, "5s", c.GetTimeout().String())

	c.Timeout = "garbage"
	assert.Equal(t, "30s", c.GetTimeout().String(), "unparseable timeout falls back to default")
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("STOCKWATCH_TEST_KEY", "from-env")

	key, err := ResolveAPIKey([]string{"STOCKWATCH_TEST_KEY"}, "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)

	key, err = ResolveAPIKey([]string{"STOCKWATCH_ABSENT_KEY"}, "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)

	_, err = ResolveAPIKey([]string{"STOCKWATCH_ABSENT_KEY"}, "")
	assert.Error(t, err)
}
