package app

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// TradeMode runs the venue streams and feeders with execution armed. Whether
// detected opportunities are actually traded is governed by
// strategy.auto_execute; with it off the engine evaluates and publishes but
// places no orders.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode",
		slog.Bool("auto_execute", a.cfg.Strategy.AutoExecute),
	)
	return a.runFeeds(ctx, deps)
}

// MonitorMode runs the same stream and evaluation loops as trade mode but
// with execution permanently disabled. Useful for dry runs against real
// market data.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")
	return a.runFeeds(ctx, deps)
}

// runFeeds starts every venue stream and its feeder and blocks until the
// first hard failure or context cancellation.
func (a *App) runFeeds(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, src := range deps.Sources {
		src := src
		g.Go(func() error {
			return src.Run(ctx)
		})
	}
	for _, f := range deps.Feeders {
		f := f
		g.Go(func() error {
			return f.Run(ctx)
		})
	}

	return g.Wait()
}
