// Package book maintains a live per-venue depth book reconstructed from
// streaming level deltas. Each Book is owned by exactly one feed listener;
// readers take frozen snapshots, never a live view.
package book

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/easyarb/arbbot/internal/domain"
)

// Book is an aggregated price-level store for one (venue, pair). It keeps one
// unordered price→size mapping per side; every stored size is strictly
// positive, and a delta with size zero removes the price key entirely.
type Book struct {
	venue string
	pair  domain.Pair

	mu   sync.RWMutex
	bids map[string]domain.PriceLevel
	asks map[string]domain.PriceLevel
}

// New creates an empty Book for the given venue and pair.
func New(venue string, pair domain.Pair) *Book {
	return &Book{
		venue: venue,
		pair:  pair,
		bids:  make(map[string]domain.PriceLevel),
		asks:  make(map[string]domain.PriceLevel),
	}
}

// Venue returns the venue this book belongs to.
func (b *Book) Venue() string { return b.venue }

// Pair returns the pair this book tracks.
func (b *Book) Pair() domain.Pair { return b.pair }

// Reset drops all levels on both sides. Called on feed resubscription,
// immediately before the fresh snapshot is applied.
func (b *Book) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bids = make(map[string]domain.PriceLevel)
	b.asks = make(map[string]domain.PriceLevel)
}

// ApplyDeltas applies level deltas to one side in sequence order: a later
// delta for the same price in the same batch overrides the earlier one, and a
// zero size removes the price key (no-op when the key is absent). Updates are
// in-place and irreversible; there is no versioning.
func (b *Book) ApplyDeltas(side domain.Side, deltas []domain.PriceLevel) {
	if len(deltas) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	levels := b.side(side)
	for _, d := range deltas {
		key := d.Price.String()
		if d.Size.IsZero() {
			delete(levels, key)
			continue
		}
		levels[key] = d
	}
}

// Snapshot materializes one side as a defensive copy sorted best-first: asks
// ascending by price, bids descending. An empty side yields an empty slice.
// The returned slice reflects every delta applied before the call returns.
func (b *Book) Snapshot(side domain.Side) []domain.PriceLevel {
	b.mu.RLock()
	levels := b.side(side)
	out := make([]domain.PriceLevel, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, lvl)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		c := out[i].Price.Cmp(out[j].Price)
		if side == domain.SideAsk {
			return c < 0
		}
		return c > 0
	})
	return out
}

// Depth returns the number of resting levels on one side.
func (b *Book) Depth(side domain.Side) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.side(side))
}

// Best returns the best price on one side, or zero when the side is empty.
func (b *Book) Best(side domain.Side) decimal.Decimal {
	snap := b.Snapshot(side)
	if len(snap) == 0 {
		return decimal.Zero
	}
	return snap[0].Price
}

func (b *Book) side(side domain.Side) map[string]domain.PriceLevel {
	if side == domain.SideBid {
		return b.bids
	}
	return b.asks
}
