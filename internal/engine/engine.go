// Package engine runs the arbitrage evaluation loop: on every book update it
// snapshots both depth books, checks the fee-adjusted cross in both
// directions, and dispatches profitable opportunities to the execution
// orchestrator. A failed execution is never retried; the next book update
// recomputes from fresh state.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/easyarb/arbbot/internal/arb"
	"github.com/easyarb/arbbot/internal/book"
	"github.com/easyarb/arbbot/internal/domain"
	"github.com/easyarb/arbbot/internal/executor"
)

// minDepthLevels is the depth each side must exceed before an evaluation is
// attempted; thinner snapshots are treated as stale and skipped silently.
const minDepthLevels = 5

// guardTTL bounds how long a crashed holder can keep the per-pair execution
// guard when it is backed by an external lock manager.
const guardTTL = 90 * time.Second

// opportunitiesChannel is the bus channel detected opportunities are
// published to.
const opportunitiesChannel = "opportunities"

// PlanRunner executes one trade plan. Implemented by executor.Orchestrator.
type PlanRunner interface {
	Execute(ctx context.Context, plan executor.Plan) error
}

// Direction is one tradeable ordering of the two venues: buy the counter
// asset where it is cheap, sell it where it is dear.
type Direction struct {
	BuyBook  *book.Book
	SellBook *book.Book
	Runner   PlanRunner
}

// Config carries engine parameters resolved by the caller.
type Config struct {
	Pair    domain.Pair
	Capital decimal.Decimal

	// AutoExecute gates the orchestrator. When false (monitor mode) the
	// engine still evaluates and publishes opportunities but never trades.
	AutoExecute bool

	// Deposits maps venue name → asset → deposit wallet for the settlement
	// transfers.
	Deposits map[string]map[domain.Asset]string
}

// Engine evaluates both directions on demand. Evaluations may overlap in
// time; the guard ensures at most one execution per pair is in flight, and
// an evaluation that finds the guard held skips rather than queueing.
type Engine struct {
	cfg        Config
	directions []Direction
	fees       domain.FeeStore
	guard      domain.LockManager
	bus        domain.SignalBus // optional; nil disables publication
	logger     *slog.Logger
}

// New creates an Engine over the given directions.
func New(cfg Config, directions []Direction, fees domain.FeeStore, guard domain.LockManager, bus domain.SignalBus, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:        cfg,
		directions: directions,
		fees:       fees,
		guard:      guard,
		bus:        bus,
		logger:     logger.With(slog.String("component", "engine")),
	}
}

// Evaluate runs one evaluation cycle over every direction. It is called by
// the book feeders after each applied feed message.
func (e *Engine) Evaluate(ctx context.Context) {
	for i := range e.directions {
		e.evaluate(ctx, &e.directions[i])
	}
}

func (e *Engine) evaluate(ctx context.Context, dir *Direction) {
	buyDepth := dir.BuyBook.Snapshot(domain.SideAsk)
	sellDepth := dir.SellBook.Snapshot(domain.SideBid)

	// A thin book is a stale book; skip without error.
	if len(buyDepth) <= minDepthLevels || len(sellDepth) <= minDepthLevels {
		return
	}

	buyVenue := dir.BuyBook.Venue()
	sellVenue := dir.SellBook.Venue()

	buyFees, err := e.fees.GetFees(ctx, buyVenue)
	if err != nil {
		e.logger.Warn("fee lookup failed, skipping evaluation",
			slog.String("venue", buyVenue), slog.String("error", err.Error()))
		return
	}
	sellFees, err := e.fees.GetFees(ctx, sellVenue)
	if err != nil {
		e.logger.Warn("fee lookup failed, skipping evaluation",
			slog.String("venue", sellVenue), slog.String("error", err.Error()))
		return
	}

	opp := arb.Calculate(buyDepth, sellDepth, arb.Input{
		BuyTakerFee:       buyFees.Taker,
		SellTakerFee:      sellFees.Taker,
		BuyWithdrawalFee:  buyFees.WithdrawalFor(e.cfg.Pair.Counter),
		SellWithdrawalFee: sellFees.WithdrawalFor(e.cfg.Pair.Base),
		Capital:           e.cfg.Capital,
	})
	if !opp.Profitable() {
		return
	}

	log := e.logger.With(
		slog.String("buy_venue", buyVenue),
		slog.String("sell_venue", sellVenue),
		slog.String("volume", opp.Volume.String()),
		slog.String("buy_price", opp.BuyPrice.String()),
		slog.String("sell_price", opp.SellPrice.String()),
		slog.String("profit", opp.Profit.String()),
	)
	log.Info("opportunity detected")

	e.publish(ctx, buyVenue, sellVenue, opp)

	if !e.cfg.AutoExecute {
		return
	}

	// One in-flight execution per pair. A held guard means another cycle is
	// already trading this pair; skip, never queue.
	unlock, err := e.guard.Acquire(ctx, "exec:"+e.cfg.Pair.String(), guardTTL)
	if err != nil {
		if err == domain.ErrLockHeld {
			log.Debug("execution already in flight, skipping")
			return
		}
		log.Warn("execution guard unavailable", slog.String("error", err.Error()))
		return
	}
	defer unlock()

	plan := executor.Plan{
		Pair:          e.cfg.Pair,
		Volume:        opp.Volume,
		BuyPrice:      opp.BuyPrice,
		SellPrice:     opp.SellPrice,
		CounterWallet: e.deposit(sellVenue, e.cfg.Pair.Counter),
		BaseWallet:    e.deposit(buyVenue, e.cfg.Pair.Base),
	}
	if err := dir.Runner.Execute(ctx, plan); err != nil {
		// Reported, not retried: the next book update recomputes.
		log.Error("execution failed", slog.String("error", err.Error()))
		return
	}
	log.Info("execution succeeded")
}

// publish pushes the opportunity to the signal bus for telemetry consumers.
func (e *Engine) publish(ctx context.Context, buyVenue, sellVenue string, opp domain.Opportunity) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"pair":       e.cfg.Pair.String(),
		"buy_venue":  buyVenue,
		"sell_venue": sellVenue,
		"volume":     opp.Volume.String(),
		"buy_price":  opp.BuyPrice.String(),
		"sell_price": opp.SellPrice.String(),
		"profit":     opp.Profit.String(),
		"detected":   time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, opportunitiesChannel, payload); err != nil {
		e.logger.Debug("opportunity publish failed", slog.String("error", err.Error()))
	}
}

func (e *Engine) deposit(venue string, asset domain.Asset) string {
	if m, ok := e.cfg.Deposits[venue]; ok {
		return m[asset]
	}
	return ""
}
