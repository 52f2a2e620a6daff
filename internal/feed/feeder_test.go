package feed

import (
	"io"
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/easyarb/arbbot/internal/book"
	"github.com/easyarb/arbbot/internal/domain"
)

type fakeSource struct {
	ch chan domain.BookEvent
}

func (f *fakeSource) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeSource) Events() <-chan domain.BookEvent { return f.ch }

type countingEval struct {
	n atomic.Int64
}

func (c *countingEval) Evaluate(context.Context) { c.n.Add(1) }

func lvl(price, size string) domain.PriceLevel {
	return domain.PriceLevel{
		Price: decimal.RequireFromString(price),
		Size:  decimal.RequireFromString(size),
	}
}

func TestFeederAppliesEventsAndEvaluates(t *testing.T) {
	src := &fakeSource{ch: make(chan domain.BookEvent, 4)}
	b := book.New("BITF", domain.PairUSDTBTC)
	eval := &countingEval{}
	f := NewFeeder(src, b, eval, slog.New(slog.NewTextHandler(io.Discard, nil)))

	src.ch <- domain.BookEvent{
		Venue: "BITF",
		Pair:  domain.PairUSDTBTC,
		Bids:  []domain.PriceLevel{lvl("99", "1")},
		Asks:  []domain.PriceLevel{lvl("100", "2"), lvl("101", "1")},
	}
	src.ch <- domain.BookEvent{
		Venue: "BITF",
		Pair:  domain.PairUSDTBTC,
		Asks:  []domain.PriceLevel{lvl("101", "0")}, // removal
	}
	close(src.ch)

	require.NoError(t, f.Run(context.Background()))

	require.Equal(t, int64(2), eval.n.Load())
	require.Equal(t, 1, b.Depth(domain.SideBid))
	require.Equal(t, 1, b.Depth(domain.SideAsk))
	require.True(t, b.Best(domain.SideAsk).Equal(decimal.RequireFromString("100")))
}

func TestFeederSnapshotResetsStaleLevels(t *testing.T) {
	src := &fakeSource{ch: make(chan domain.BookEvent, 2)}
	b := book.New("BITF", domain.PairUSDTBTC)
	eval := &countingEval{}
	f := NewFeeder(src, b, eval, slog.New(slog.NewTextHandler(io.Discard, nil)))

	src.ch <- domain.BookEvent{
		Venue: "BITF",
		Pair:  domain.PairUSDTBTC,
		Asks:  []domain.PriceLevel{lvl("100", "1"), lvl("101", "1")},
	}
	// Reconnect snapshot: only one ask survives.
	src.ch <- domain.BookEvent{
		Venue:    "BITF",
		Pair:     domain.PairUSDTBTC,
		Snapshot: true,
		Asks:     []domain.PriceLevel{lvl("105", "3")},
	}
	close(src.ch)

	require.NoError(t, f.Run(context.Background()))

	require.Equal(t, 1, b.Depth(domain.SideAsk))
	require.True(t, b.Best(domain.SideAsk).Equal(decimal.RequireFromString("105")))
}

func TestFeederDropsForeignPair(t *testing.T) {
	src := &fakeSource{ch: make(chan domain.BookEvent, 1)}
	b := book.New("BITF", domain.PairUSDTBTC)
	eval := &countingEval{}
	f := NewFeeder(src, b, eval, slog.New(slog.NewTextHandler(io.Discard, nil)))

	src.ch <- domain.BookEvent{
		Venue: "BITF",
		Pair:  domain.Pair{Base: "USD", Counter: "ETH"},
		Asks:  []domain.PriceLevel{lvl("100", "1")},
	}
	close(src.ch)

	require.NoError(t, f.Run(context.Background()))

	require.Zero(t, eval.n.Load())
	require.Zero(t, b.Depth(domain.SideAsk))
}

func TestFeederStopsOnContextCancel(t *testing.T) {
	src := &fakeSource{ch: make(chan domain.BookEvent)}
	b := book.New("BTRX", domain.PairUSDTBTC)
	f := NewFeeder(src, b, &countingEval{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, f.Run(ctx), context.DeadlineExceeded)
}
