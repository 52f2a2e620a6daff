package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/easyarb/arbbot/internal/book"
	"github.com/easyarb/arbbot/internal/cache/redis"
	"github.com/easyarb/arbbot/internal/config"
	"github.com/easyarb/arbbot/internal/crypto"
	"github.com/easyarb/arbbot/internal/domain"
	"github.com/easyarb/arbbot/internal/engine"
	"github.com/easyarb/arbbot/internal/executor"
	"github.com/easyarb/arbbot/internal/feed"
	"github.com/easyarb/arbbot/internal/nonce"
	"github.com/easyarb/arbbot/internal/platform/bitfinex"
	"github.com/easyarb/arbbot/internal/platform/bittrex"
	"github.com/easyarb/arbbot/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Sources stream book events from the venues; Feeders apply them to
	// the local books and trigger engine evaluations.
	Sources []feed.Source
	Feeders []*feed.Feeder

	Engine *engine.Engine

	// Fees resolves per-venue fee schedules; either the Postgres-backed
	// store or the static table from the configuration.
	Fees domain.FeeStore
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	pair, err := domain.ParsePair(cfg.Strategy.Pair)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: %w", err)
	}

	// --- Fee store: Postgres when configured, static table otherwise ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.Fees = postgres.NewFeeStore(pgClient.Pool())
	} else {
		deps.Fees = engine.StaticFees(cfg.FeeSchedules())
	}

	// --- Redis: execution guard and opportunity bus ---
	var (
		guard domain.LockManager
		bus   domain.SignalBus
	)
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		guard = redis.NewLockManager(redisClient)
		bus = redis.NewSignalBus(redisClient)
	} else {
		guard = engine.NewLocalGuard()
		bus = nil
	}

	// --- Order books and venue feeds ---
	bitfinexBook := book.New(bitfinex.VenueName, pair)
	bittrexBook := book.New(bittrex.VenueName, pair)

	bitfinexFeed := bitfinex.NewFeed(pair, logger)
	bittrexStream := bittrex.NewStream(pair, logger)
	deps.Sources = []feed.Source{bitfinexFeed, bittrexStream}

	// --- Venue drivers and execution orchestrators (trade mode only) ---
	tradeMode := strings.ToLower(cfg.Mode) == "trade"
	var buyOnBitfinex, buyOnBittrex engine.PlanRunner
	if tradeMode {
		bfxCreds, err := crypto.LoadCredentials(credentialConfig(cfg.Bitfinex))
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: bitfinex credentials: %w", err)
		}
		btrxCreds, err := crypto.LoadCredentials(credentialConfig(cfg.Bittrex))
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: bittrex credentials: %w", err)
		}

		// One nonce gate per venue; nonces must be monotonically
		// increasing per API key.
		bfxDriver := bitfinex.NewDriver(bitfinex.NewClient(bfxCreds.Key, bfxCreds.Secret, nonce.NewGate()), logger)
		btrxDriver := bittrex.NewDriver(bittrex.NewClient(btrxCreds.Key, btrxCreds.Secret, nonce.NewGate()), logger)

		fwd := executor.New(bfxDriver, btrxDriver, logger)
		fwd.SetFillDeadline(cfg.Strategy.FillDeadline.Duration)
		rev := executor.New(btrxDriver, bfxDriver, logger)
		rev.SetFillDeadline(cfg.Strategy.FillDeadline.Duration)
		buyOnBitfinex, buyOnBittrex = fwd, rev
	}

	directions := []engine.Direction{
		{BuyBook: bitfinexBook, SellBook: bittrexBook, Runner: buyOnBitfinex},
		{BuyBook: bittrexBook, SellBook: bitfinexBook, Runner: buyOnBittrex},
	}

	deps.Engine = engine.New(engine.Config{
		Pair:        pair,
		Capital:     decimal.RequireFromString(cfg.Strategy.Capital),
		AutoExecute: tradeMode && cfg.Strategy.AutoExecute,
		Deposits: map[string]map[domain.Asset]string{
			bitfinex.VenueName: depositMap(cfg.Bitfinex.Deposits),
			bittrex.VenueName:  depositMap(cfg.Bittrex.Deposits),
		},
	}, directions, deps.Fees, guard, bus, logger)

	deps.Feeders = []*feed.Feeder{
		feed.NewFeeder(bitfinexFeed, bitfinexBook, deps.Engine, logger),
		feed.NewFeeder(bittrexStream, bittrexBook, deps.Engine, logger),
	}

	return deps, cleanup, nil
}

func credentialConfig(vc config.VenueConfig) crypto.CredentialConfig {
	return crypto.CredentialConfig{
		Key:           vc.ApiKey,
		Secret:        vc.ApiSecret,
		EncryptedPath: vc.EncryptedCredsPath,
		Password:      vc.CredsPassword,
	}
}

func depositMap(in map[string]string) map[domain.Asset]string {
	out := make(map[domain.Asset]string, len(in))
	for asset, addr := range in {
		out[domain.Asset(asset)] = addr
	}
	return out
}
