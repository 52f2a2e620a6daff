package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is a single price+size entry in an order book. A Size of zero is
// a tombstone: it means "remove this price from the book", never a resting
// zero-quantity order.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// BookEvent is one feed message worth of level deltas for a single pair on a
// single venue. Levels within a side are ordered for in-sequence application:
// adapters place non-zero updates before zero-size removals so that removals
// derived from the same message are never lost to a later re-add.
type BookEvent struct {
	Venue string
	Pair  Pair
	Bids  []PriceLevel
	Asks  []PriceLevel

	// Snapshot marks a full-book image, sent on (re)subscription. The
	// consumer resets its book before applying the levels so that stale
	// state from before a reconnect does not linger.
	Snapshot bool

	Received time.Time
}
