// Package executor drives the multi-step, multi-venue execution sequence for
// a computed arbitrage opportunity. The sequence is a single linear state
// machine per attempt, run to completion or first hard failure; there is no
// two-phase commit underneath, so failures after the early steps leave
// residual state that is reported, not unwound.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/easyarb/arbbot/internal/domain"
)

// Step names the states of the execution sequence.
type Step string

const (
	StepOpenHedge       Step = "open_hedge"
	StepBuy             Step = "buy"
	StepSell            Step = "sell"
	StepAwaitFills      Step = "await_fills"
	StepCancelRemainder Step = "cancel_remainder"
	StepTransferAToB    Step = "transfer_a_to_b"
	StepTransferBToA    Step = "transfer_b_to_a"
	StepCloseHedge      Step = "close_hedge"
)

// defaultFillDeadline bounds AWAIT_FILLS. Venues may never report a fill
// through the polled channel, so the wait exits unconditionally.
const defaultFillDeadline = time.Second

// StepError reports which step failed and the raw venue payload. The caller
// must not retry; a new opportunity has to be recomputed from fresh book
// state before any further action.
type StepError struct {
	Step    Step
	Payload string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("execution failed at %s: %s", e.Step, e.Payload)
}

// Plan is an executable opportunity: the matched volume, the conservative
// quoted prices, and the settlement wallets for the two transfers.
type Plan struct {
	Pair      domain.Pair
	Volume    decimal.Decimal
	BuyPrice  decimal.Decimal
	SellPrice decimal.Decimal

	// CounterWallet is the sell venue's deposit address for the counter
	// asset; BaseWallet is the buy venue's deposit address for the base
	// asset proceeds coming back.
	CounterWallet string
	BaseWallet    string
}

// Orchestrator runs plans against a fixed (buy venue, sell venue) ordering.
// It imposes no mutual exclusion of its own; callers that need a single
// in-flight execution per pair guard at the call site.
type Orchestrator struct {
	buyVenue     domain.Venue
	sellVenue    domain.Venue
	fillDeadline time.Duration
	logger       *slog.Logger
}

// New creates an Orchestrator that buys on buyVenue and sells on sellVenue.
func New(buyVenue, sellVenue domain.Venue, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		buyVenue:     buyVenue,
		sellVenue:    sellVenue,
		fillDeadline: defaultFillDeadline,
		logger: logger.With(
			slog.String("component", "executor"),
			slog.String("buy_venue", buyVenue.Name()),
			slog.String("sell_venue", sellVenue.Name()),
		),
	}
}

// SetFillDeadline overrides the AWAIT_FILLS deadline. Must be called before
// Execute.
func (o *Orchestrator) SetFillDeadline(d time.Duration) {
	if d > 0 {
		o.fillDeadline = d
	}
}

// Execute runs the sequence
//
//	OPEN_HEDGE → BUY → SELL → AWAIT_FILLS → CANCEL_REMAINDER →
//	TRANSFER_A_TO_B → TRANSFER_B_TO_A → CLOSE_HEDGE
//
// and returns nil on completion or a *StepError naming the first step whose
// acknowledgment was negative. An acked response missing its identifier is
// treated as a rejection, never silently accepted. Failures after BUY or
// SELL do not unwind the earlier actions; the residual hedge or order is
// reported through the failure log.
func (o *Orchestrator) Execute(ctx context.Context, plan Plan) error {
	attemptID := uuid.New().String()
	log := o.logger.With(
		slog.String("attempt_id", attemptID),
		slog.String("pair", plan.Pair.String()),
		slog.String("volume", plan.Volume.String()),
		slog.String("buy_price", plan.BuyPrice.String()),
		slog.String("sell_price", plan.SellPrice.String()),
	)
	log.Info("execution started")

	// OPEN_HEDGE: short the counter asset on the buy venue for the planned
	// volume. Nothing has happened yet, so a rejection needs no compensation.
	pos := o.buyVenue.OpenShortPosition(ctx, plan.Pair.Counter, plan.Volume)
	if !pos.Ack || pos.Position.ID == "" {
		return o.fail(log, StepOpenHedge, pos.Receipt)
	}

	// BUY: limit buy at the calculator's conservative quote. On rejection the
	// open hedge is left unclosed; see the package comment.
	buyOrd := o.buyVenue.Buy(ctx, plan.Pair, plan.BuyPrice, plan.Volume)
	if !buyOrd.Ack || buyOrd.Order.ID == "" {
		log.Warn("hedge position left open after buy rejection",
			slog.String("position_id", pos.Position.ID))
		return o.fail(log, StepBuy, buyOrd.Receipt)
	}

	// SELL on the other venue.
	sellOrd := o.sellVenue.Sell(ctx, plan.Pair, plan.SellPrice, plan.Volume)
	if !sellOrd.Ack || sellOrd.Order.ID == "" {
		log.Warn("hedge and buy order left in place after sell rejection",
			slog.String("position_id", pos.Position.ID),
			slog.String("buy_order_id", buyOrd.Order.ID))
		return o.fail(log, StepSell, sellOrd.Receipt)
	}

	// AWAIT_FILLS: race both fill polls against the wall-clock deadline.
	// However the race settles, the sequence proceeds to cancellation.
	o.awaitFills(ctx, log, buyOrd.Order, sellOrd.Order)

	// CANCEL_REMAINDER: unconditional for both orders. A cancel against an
	// already-filled or already-cancelled order is a venue-side no-op and is
	// not a local error.
	if r := o.buyVenue.Cancel(ctx, buyOrd.Order); !r.Ack {
		log.Debug("buy cancel not acked", slog.String("payload", r.Payload))
	}
	if r := o.sellVenue.Cancel(ctx, sellOrd.Order); !r.Ack {
		log.Debug("sell cancel not acked", slog.String("payload", r.Payload))
	}

	// TRANSFER_A_TO_B: move the acquired counter asset to the sell venue.
	xfer := o.buyVenue.TransferFunds(ctx, o.sellVenue.Name(), plan.Pair.Counter, plan.Volume, plan.CounterWallet)
	if !xfer.Ack {
		return o.fail(log, StepTransferAToB, xfer)
	}

	// TRANSFER_B_TO_A: move the base asset proceeds back to settle the hedge.
	proceeds := plan.Volume.Mul(plan.SellPrice)
	back := o.sellVenue.TransferFunds(ctx, o.buyVenue.Name(), plan.Pair.Base, proceeds, plan.BaseWallet)
	if !back.Ack {
		return o.fail(log, StepTransferBToA, back)
	}

	// CLOSE_HEDGE.
	closed := o.buyVenue.ClosePosition(ctx, pos.Position)
	if !closed.Ack {
		return o.fail(log, StepCloseHedge, closed)
	}

	log.Info("execution completed")
	return nil
}

// awaitFills blocks until both orders report settled or the fill deadline
// elapses, whichever comes first. Cancelling waitCtx is the cooperative
// signal that stops the losing polls; the deadline elapsing is an expected
// outcome, not a failure.
func (o *Orchestrator) awaitFills(ctx context.Context, log *slog.Logger, buy, sell domain.OrderRef) {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	both := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			o.buyVenue.WaitForExec(waitCtx, buy)
		}()
		go func() {
			defer wg.Done()
			o.sellVenue.WaitForExec(waitCtx, sell)
		}()
		wg.Wait()
		close(both)
	}()

	select {
	case <-both:
		log.Debug("both fill polls settled before deadline")
	case <-time.After(o.fillDeadline):
		log.Debug("fill deadline elapsed, proceeding to cancellation")
	case <-ctx.Done():
		log.Debug("context cancelled during fill wait")
	}
}

func (o *Orchestrator) fail(log *slog.Logger, step Step, r domain.Receipt) error {
	log.Error("execution step failed",
		slog.String("step", string(step)),
		slog.String("payload", r.Payload),
	)
	return &StepError{Step: step, Payload: r.Payload}
}
