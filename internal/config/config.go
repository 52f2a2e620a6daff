// Package config defines the top-level configuration for the arbitrage bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/easyarb/arbbot/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ARBBOT_* environment
// variables.
type Config struct {
	Bitfinex VenueConfig          `toml:"bitfinex"`
	Bittrex  VenueConfig          `toml:"bittrex"`
	Strategy StrategyConfig       `toml:"strategy"`
	Fees     map[string]FeeConfig `toml:"fees"`
	Postgres PostgresConfig       `toml:"postgres"`
	Redis    RedisConfig          `toml:"redis"`
	Mode     string               `toml:"mode"`
	LogLevel string               `toml:"log_level"`
}

// VenueConfig holds one venue's API credentials and deposit addresses.
type VenueConfig struct {
	ApiKey    string `toml:"api_key"`
	ApiSecret string `toml:"api_secret"`

	// EncryptedCredsPath points at a credentials file produced by the
	// encryption helper; CredsPassword decrypts it. Used when the plaintext
	// key pair is not set.
	EncryptedCredsPath string `toml:"encrypted_creds_path"`
	CredsPassword      string `toml:"creds_password"`

	// Deposits maps asset symbol onto this venue's deposit address. The
	// counterparty venue withdraws settlement funds to these addresses.
	Deposits map[string]string `toml:"deposits"`
}

// StrategyConfig holds the trading parameters.
type StrategyConfig struct {
	// Pair is the market in canonical "BASE-COUNTER" form.
	Pair string `toml:"pair"`

	// Capital is the base-asset budget per cycle, as a decimal string.
	Capital string `toml:"capital"`

	// AutoExecute gates order placement. When false the bot only detects
	// and publishes opportunities.
	AutoExecute bool `toml:"auto_execute"`

	// FillDeadline bounds how long an execution waits for both legs to
	// fill before cancelling the remainder.
	FillDeadline duration `toml:"fill_deadline"`
}

// FeeConfig is one venue's static fee schedule, used when Postgres is not
// configured. Amounts are decimal strings; withdrawal fees are keyed by
// asset symbol.
type FeeConfig struct {
	Taker      string            `toml:"taker"`
	Withdrawal map[string]string `toml:"withdrawal"`
}

// PostgresConfig holds PostgreSQL connection parameters. Disabled means the
// static fee table from Fees is used instead.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Disabled means opportunity
// publication is off and the execution guard is in-process only.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// duration wraps time.Duration so the TOML decoder can parse strings like
// "1s" or "500ms".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Strategy: StrategyConfig{
			Pair:         "USDT-BTC",
			Capital:      "1000",
			AutoExecute:  false,
			FillDeadline: duration{time.Second},
		},
		Fees: map[string]FeeConfig{
			"bitfinex": {
				Taker:      "0.002",
				Withdrawal: map[string]string{"BTC": "0.0004", "USDT": "20"},
			},
			"bittrex": {
				Taker:      "0.0025",
				Withdrawal: map[string]string{"BTC": "0.0005", "USDT": "10"},
			},
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "arbbot",
			User:          "arbbot",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 20,
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if _, err := domain.ParsePair(c.Strategy.Pair); err != nil {
		errs = append(errs, fmt.Sprintf("strategy: %v", err))
	}
	if capital, err := decimal.NewFromString(c.Strategy.Capital); err != nil {
		errs = append(errs, fmt.Sprintf("strategy: capital %q is not a decimal", c.Strategy.Capital))
	} else if !capital.IsPositive() {
		errs = append(errs, "strategy: capital must be > 0")
	}
	if c.Strategy.FillDeadline.Duration <= 0 {
		errs = append(errs, "strategy: fill_deadline must be > 0")
	}

	// Credentials are only required when the bot actually trades.
	if strings.ToLower(c.Mode) == "trade" {
		for name, venue := range map[string]VenueConfig{"bitfinex": c.Bitfinex, "bittrex": c.Bittrex} {
			hasPlain := venue.ApiKey != "" && venue.ApiSecret != ""
			if !hasPlain && venue.EncryptedCredsPath == "" {
				errs = append(errs, fmt.Sprintf("%s: api_key/api_secret or encrypted_creds_path required for trade mode", name))
			}
			if venue.EncryptedCredsPath != "" && venue.CredsPassword == "" {
				errs = append(errs, fmt.Sprintf("%s: creds_password is required when encrypted_creds_path is set", name))
			}
		}
	}

	if !c.Postgres.Enabled {
		for venue, fees := range c.Fees {
			if _, err := decimal.NewFromString(fees.Taker); err != nil {
				errs = append(errs, fmt.Sprintf("fees: %s taker %q is not a decimal", venue, fees.Taker))
			}
			for asset, fee := range fees.Withdrawal {
				if _, err := decimal.NewFromString(fee); err != nil {
					errs = append(errs, fmt.Sprintf("fees: %s withdrawal %s %q is not a decimal", venue, asset, fee))
				}
			}
		}
	}

	if c.Postgres.Enabled && strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// FeeSchedules converts the static fee table to domain schedules. Call only
// after Validate.
func (c *Config) FeeSchedules() map[string]domain.FeeSchedule {
	out := make(map[string]domain.FeeSchedule, len(c.Fees))
	for venue, fees := range c.Fees {
		schedule := domain.FeeSchedule{
			Taker:      decimal.RequireFromString(fees.Taker),
			Withdrawal: make(map[domain.Asset]decimal.Decimal, len(fees.Withdrawal)),
		}
		for asset, fee := range fees.Withdrawal {
			schedule.Withdrawal[domain.Asset(asset)] = decimal.RequireFromString(fee)
		}
		out[venue] = schedule
	}
	return out
}
