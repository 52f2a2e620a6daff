package executor

import (
	"io"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/easyarb/arbbot/internal/domain"
)

// fakeVenue records the capability calls made against it and answers with
// configurable receipts. The zero value acks everything.
type fakeVenue struct {
	name string

	mu    sync.Mutex
	calls []string

	rejectOpen     bool
	rejectBuy      bool
	rejectSell     bool
	rejectTransfer bool
	rejectClose    bool
	blankOrderID   bool // ack the order but omit its ID
	waitBlocks     bool // WaitForExec blocks until ctx is cancelled
}

func (f *fakeVenue) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeVenue) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeVenue) Name() string { return f.name }

func (f *fakeVenue) OpenShortPosition(_ context.Context, _ domain.Asset, _ decimal.Decimal) domain.PositionReceipt {
	f.record("open_short")
	if f.rejectOpen {
		return domain.PositionReceipt{Receipt: domain.Rejected("margin disabled")}
	}
	return domain.PositionReceipt{
		Receipt:  domain.Authorized("ok"),
		Position: domain.PositionRef{Venue: f.name, ID: "pos-1"},
	}
}

func (f *fakeVenue) order(call string, reject bool) domain.OrderReceipt {
	f.record(call)
	if reject {
		return domain.OrderReceipt{Receipt: domain.Rejected("insufficient funds")}
	}
	id := call + "-1"
	if f.blankOrderID {
		id = ""
	}
	return domain.OrderReceipt{
		Receipt: domain.Authorized("ok"),
		Order:   domain.OrderRef{Venue: f.name, Pair: domain.PairUSDTBTC, ID: id},
	}
}

func (f *fakeVenue) Buy(_ context.Context, _ domain.Pair, _, _ decimal.Decimal) domain.OrderReceipt {
	return f.order("buy", f.rejectBuy)
}

func (f *fakeVenue) Sell(_ context.Context, _ domain.Pair, _, _ decimal.Decimal) domain.OrderReceipt {
	return f.order("sell", f.rejectSell)
}

func (f *fakeVenue) Cancel(_ context.Context, _ domain.OrderRef) domain.Receipt {
	f.record("cancel")
	return domain.Authorized("ok")
}

func (f *fakeVenue) WaitForExec(ctx context.Context, _ domain.OrderRef) domain.Receipt {
	f.record("wait_for_exec")
	if f.waitBlocks {
		<-ctx.Done()
		return domain.Rejected(ctx.Err().Error())
	}
	return domain.Authorized("filled")
}

func (f *fakeVenue) TransferFunds(_ context.Context, _ string, _ domain.Asset, _ decimal.Decimal, _ string) domain.Receipt {
	f.record("transfer")
	if f.rejectTransfer {
		return domain.Rejected("withdrawal suspended")
	}
	return domain.Authorized("ok")
}

func (f *fakeVenue) ClosePosition(_ context.Context, _ domain.PositionRef) domain.Receipt {
	f.record("close_position")
	if f.rejectClose {
		return domain.Rejected("position not found")
	}
	return domain.Authorized("ok")
}

func (f *fakeVenue) Balance(_ context.Context, _ domain.Asset) domain.BalanceReceipt {
	f.record("balance")
	return domain.BalanceReceipt{Receipt: domain.Authorized("ok")}
}

var _ domain.Venue = (*fakeVenue)(nil)

func testPlan() Plan {
	return Plan{
		Pair:          domain.PairUSDTBTC,
		Volume:        decimal.RequireFromString("0.5"),
		BuyPrice:      decimal.RequireFromString("100"),
		SellPrice:     decimal.RequireFromString("103"),
		CounterWallet: "btc-wallet",
		BaseWallet:    "usdt-wallet",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExecuteHappyPath(t *testing.T) {
	buyV := &fakeVenue{name: "BITF"}
	sellV := &fakeVenue{name: "BTRX"}
	o := New(buyV, sellV, testLogger())

	err := o.Execute(context.Background(), testPlan())
	require.NoError(t, err)

	require.Equal(t,
		[]string{"open_short", "buy", "wait_for_exec", "cancel", "transfer", "close_position"},
		buyV.Calls())
	require.Equal(t,
		[]string{"sell", "wait_for_exec", "cancel", "transfer"},
		sellV.Calls())
}

func TestOpenHedgeRejectionStopsEverything(t *testing.T) {
	buyV := &fakeVenue{name: "BITF", rejectOpen: true}
	sellV := &fakeVenue{name: "BTRX"}
	o := New(buyV, sellV, testLogger())

	err := o.Execute(context.Background(), testPlan())

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	require.Equal(t, StepOpenHedge, stepErr.Step)
	require.Equal(t, []string{"open_short"}, buyV.Calls())
	require.Empty(t, sellV.Calls(), "no call may reach the sell venue")
}

func TestBuyRejectionMakesNoFurtherCalls(t *testing.T) {
	buyV := &fakeVenue{name: "BITF", rejectBuy: true}
	sellV := &fakeVenue{name: "BTRX"}
	o := New(buyV, sellV, testLogger())

	err := o.Execute(context.Background(), testPlan())

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	require.Equal(t, StepBuy, stepErr.Step)
	require.Equal(t, "insufficient funds", stepErr.Payload)
	require.Equal(t, []string{"open_short", "buy"}, buyV.Calls())
	require.Empty(t, sellV.Calls(), "no sell, transfer, or close after a buy rejection")
}

func TestSellRejectionStopsSequence(t *testing.T) {
	buyV := &fakeVenue{name: "BITF"}
	sellV := &fakeVenue{name: "BTRX", rejectSell: true}
	o := New(buyV, sellV, testLogger())

	err := o.Execute(context.Background(), testPlan())

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	require.Equal(t, StepSell, stepErr.Step)
	require.Equal(t, []string{"open_short", "buy"}, buyV.Calls())
	require.Equal(t, []string{"sell"}, sellV.Calls())
}

func TestAckedOrderWithoutIDIsARejection(t *testing.T) {
	buyV := &fakeVenue{name: "BITF"}
	sellV := &fakeVenue{name: "BTRX", blankOrderID: true}
	o := New(buyV, sellV, testLogger())

	err := o.Execute(context.Background(), testPlan())

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	require.Equal(t, StepSell, stepErr.Step)
}

func TestCancelsAlwaysIssuedAfterDeadline(t *testing.T) {
	// Both fill polls never settle; the deadline must unblock the sequence
	// and both cancels must still go out.
	buyV := &fakeVenue{name: "BITF", waitBlocks: true}
	sellV := &fakeVenue{name: "BTRX", waitBlocks: true}
	o := New(buyV, sellV, testLogger())
	o.SetFillDeadline(30 * time.Millisecond)

	start := time.Now()
	err := o.Execute(context.Background(), testPlan())
	require.NoError(t, err, "an elapsed fill deadline is not a failure")
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	require.Contains(t, buyV.Calls(), "cancel")
	require.Contains(t, sellV.Calls(), "cancel")
}

func TestTransferRejectionAfterCancels(t *testing.T) {
	buyV := &fakeVenue{name: "BITF", rejectTransfer: true}
	sellV := &fakeVenue{name: "BTRX"}
	o := New(buyV, sellV, testLogger())

	err := o.Execute(context.Background(), testPlan())

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	require.Equal(t, StepTransferAToB, stepErr.Step)

	// Cancels happened before the failing transfer.
	require.Contains(t, buyV.Calls(), "cancel")
	require.Contains(t, sellV.Calls(), "cancel")
	require.NotContains(t, sellV.Calls(), "transfer")
	require.NotContains(t, buyV.Calls(), "close_position")
}

func TestCloseHedgeRejectionReported(t *testing.T) {
	buyV := &fakeVenue{name: "BITF", rejectClose: true}
	sellV := &fakeVenue{name: "BTRX"}
	o := New(buyV, sellV, testLogger())

	err := o.Execute(context.Background(), testPlan())

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	require.Equal(t, StepCloseHedge, stepErr.Step)
}
