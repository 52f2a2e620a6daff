package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Bitfinex.ApiKey, "ARBBOT_BITFINEX_API_KEY")
	setStr(&cfg.Bitfinex.ApiSecret, "ARBBOT_BITFINEX_API_SECRET")
	setStr(&cfg.Bitfinex.EncryptedCredsPath, "ARBBOT_BITFINEX_ENCRYPTED_CREDS_PATH")
	setStr(&cfg.Bitfinex.CredsPassword, "ARBBOT_BITFINEX_CREDS_PASSWORD")

	setStr(&cfg.Bittrex.ApiKey, "ARBBOT_BITTREX_API_KEY")
	setStr(&cfg.Bittrex.ApiSecret, "ARBBOT_BITTREX_API_SECRET")
	setStr(&cfg.Bittrex.EncryptedCredsPath, "ARBBOT_BITTREX_ENCRYPTED_CREDS_PATH")
	setStr(&cfg.Bittrex.CredsPassword, "ARBBOT_BITTREX_CREDS_PASSWORD")

	setStr(&cfg.Strategy.Pair, "ARBBOT_STRATEGY_PAIR")
	setStr(&cfg.Strategy.Capital, "ARBBOT_STRATEGY_CAPITAL")
	setBool(&cfg.Strategy.AutoExecute, "ARBBOT_STRATEGY_AUTO_EXECUTE")
	setDuration(&cfg.Strategy.FillDeadline, "ARBBOT_STRATEGY_FILL_DEADLINE")

	setBool(&cfg.Postgres.Enabled, "ARBBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "ARBBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ARBBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBBOT_POSTGRES_RUN_MIGRATIONS")

	setBool(&cfg.Redis.Enabled, "ARBBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ARBBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBBOT_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "ARBBOT_REDIS_TLS_ENABLED")

	setStr(&cfg.Mode, "ARBBOT_MODE")
	setStr(&cfg.LogLevel, "ARBBOT_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
