package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "yolo"
	cfg.Strategy.Pair = "BTCUSD"
	cfg.Strategy.Capital = "lots"
	cfg.Strategy.FillDeadline = duration{0}

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown mode")
	require.Contains(t, err.Error(), "capital")
	require.Contains(t, err.Error(), "fill_deadline")
}

func TestValidateTradeModeRequiresCredentials(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Bitfinex.ApiKey = "key"
	cfg.Bitfinex.ApiSecret = "secret"

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "bittrex")
	require.NotContains(t, err.Error(), "bitfinex:")
}

func TestValidateStaticFeesMustBeDecimal(t *testing.T) {
	cfg := Defaults()
	cfg.Fees["bitfinex"] = FeeConfig{Taker: "cheap", Withdrawal: map[string]string{"BTC": "0.0004"}}

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "taker")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
mode = "trade"

[strategy]
pair = "USDT-BTC"
capital = "2500"
auto_execute = true
fill_deadline = "750ms"

[bitfinex]
api_key = "bfx-key"
api_secret = "bfx-secret"

[bittrex]
api_key = "btrx-key"
api_secret = "btrx-secret"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "trade", cfg.Mode)
	require.Equal(t, "2500", cfg.Strategy.Capital)
	require.True(t, cfg.Strategy.AutoExecute)
	require.Equal(t, 750*time.Millisecond, cfg.Strategy.FillDeadline.Duration)

	// Untouched sections keep their defaults.
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, "0.0025", cfg.Fees["bittrex"].Taker)
}

func TestEnvOverridesWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`log_level = "warn"`), 0o600))

	t.Setenv("ARBBOT_LOG_LEVEL", "debug")
	t.Setenv("ARBBOT_BITFINEX_API_KEY", "env-key")
	t.Setenv("ARBBOT_STRATEGY_FILL_DEADLINE", "2s")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "env-key", cfg.Bitfinex.ApiKey)
	require.Equal(t, 2*time.Second, cfg.Strategy.FillDeadline.Duration)
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Bitfinex.ApiKey = "key"
	cfg.Bitfinex.ApiSecret = "secret"
	cfg.Postgres.Password = "pgpass"
	cfg.Redis.Password = "redispass"

	red := RedactedConfig(&cfg)

	require.Equal(t, redactedPlaceholder, red.Bitfinex.ApiKey)
	require.Equal(t, redactedPlaceholder, red.Bitfinex.ApiSecret)
	require.Equal(t, redactedPlaceholder, red.Postgres.Password)
	require.Equal(t, redactedPlaceholder, red.Redis.Password)

	// Originals are untouched.
	require.Equal(t, "secret", cfg.Bitfinex.ApiSecret)
}

func TestFeeSchedules(t *testing.T) {
	cfg := Defaults()
	schedules := cfg.FeeSchedules()

	require.Len(t, schedules, 2)
	require.Equal(t, "0.002", schedules["bitfinex"].Taker.String())
	require.Equal(t, "20", schedules["bitfinex"].Withdrawal["USDT"].String())
}
