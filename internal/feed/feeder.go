// Package feed moves market data from the venue streams into the depth
// books. Each venue gets one Feeder: it drains the stream's event channel,
// applies the deltas to that venue's book, and triggers an engine
// evaluation after every applied message.
package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/easyarb/arbbot/internal/book"
	"github.com/easyarb/arbbot/internal/domain"
)

// Evaluator is poked after each applied book event. Implemented by
// engine.Engine.
type Evaluator interface {
	Evaluate(ctx context.Context)
}

// Source is a venue market data stream. Run maintains the connection until
// ctx is cancelled; parsed events arrive on Events. The channel is closed
// when the source shuts down for good.
type Source interface {
	Run(ctx context.Context) error
	Events() <-chan domain.BookEvent
}

// Feeder applies one source's events to one book.
type Feeder struct {
	source Source
	book   *book.Book
	eval   Evaluator
	logger *slog.Logger
}

// NewFeeder creates a Feeder wiring source into b.
func NewFeeder(source Source, b *book.Book, eval Evaluator, logger *slog.Logger) *Feeder {
	return &Feeder{
		source: source,
		book:   b,
		eval:   eval,
		logger: logger.With(
			slog.String("component", "feeder"),
			slog.String("venue", b.Venue()),
		),
	}
}

// Run drains the source until ctx is cancelled or the event channel closes.
func (f *Feeder) Run(ctx context.Context) error {
	f.logger.Info("feeder started", slog.String("pair", f.book.Pair().String()))
	defer f.logger.Info("feeder stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-f.source.Events():
			if !ok {
				return nil
			}
			f.apply(ctx, ev)
		}
	}
}

func (f *Feeder) apply(ctx context.Context, ev domain.BookEvent) {
	if ev.Pair != f.book.Pair() {
		f.logger.Debug("dropping event for unexpected pair",
			slog.String("pair", ev.Pair.String()))
		return
	}
	if ev.Snapshot {
		f.book.Reset()
	}
	// Sources order each slice with updates before removals, so applying
	// bids then asks keeps the book consistent at every point.
	f.book.ApplyDeltas(domain.SideBid, ev.Bids)
	f.book.ApplyDeltas(domain.SideAsk, ev.Asks)

	if !ev.Received.IsZero() {
		f.logger.Debug("book event applied",
			slog.Int("bids", len(ev.Bids)),
			slog.Int("asks", len(ev.Asks)),
			slog.Duration("lag", time.Since(ev.Received)),
		)
	}

	f.eval.Evaluate(ctx)
}
