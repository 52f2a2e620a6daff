package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Receipt is the normalized acknowledgment every venue call resolves to.
// Drivers catch transport failures and malformed responses at their boundary
// and convert them into Ack == false with the raw payload preserved; no venue
// call surfaces a Go error across the orchestrator boundary.
type Receipt struct {
	Ack     bool
	Payload string // raw venue response or error text, for failure logs
}

// Authorized builds a positive receipt.
func Authorized(payload string) Receipt {
	return Receipt{Ack: true, Payload: payload}
}

// Rejected builds a negative receipt carrying the raw failure payload.
func Rejected(payload string) Receipt {
	return Receipt{Ack: false, Payload: payload}
}

// OrderRef is an opaque handle to an order resting on a venue. The
// orchestrator never inspects venue-specific fields beyond the ID.
type OrderRef struct {
	Venue string
	Pair  Pair
	ID    string
}

// PositionRef is an opaque handle to a margin position on a venue.
type PositionRef struct {
	Venue string
	ID    string
}

// OrderReceipt is the result of placing an order.
type OrderReceipt struct {
	Receipt
	Order OrderRef
}

// PositionReceipt is the result of opening a position.
type PositionReceipt struct {
	Receipt
	Position PositionRef
}

// BalanceReceipt is the result of a balance query.
type BalanceReceipt struct {
	Receipt
	Balance decimal.Decimal
}

// Venue is the capability set the orchestrator drives. New venues are added
// by implementing this interface, never by extending existing drivers.
//
// Every method is blocking from the caller's perspective and honours context
// cancellation. WaitForExec in particular must be racable against an external
// deadline: it returns when the order settles, when the venue rejects the
// status poll, or when ctx is cancelled, whichever comes first.
type Venue interface {
	Name() string

	OpenShortPosition(ctx context.Context, asset Asset, size decimal.Decimal) PositionReceipt
	Buy(ctx context.Context, pair Pair, price, size decimal.Decimal) OrderReceipt
	Sell(ctx context.Context, pair Pair, price, size decimal.Decimal) OrderReceipt
	Cancel(ctx context.Context, order OrderRef) Receipt
	WaitForExec(ctx context.Context, order OrderRef) Receipt
	TransferFunds(ctx context.Context, toVenue string, asset Asset, amount decimal.Decimal, wallet string) Receipt
	ClosePosition(ctx context.Context, pos PositionRef) Receipt
	Balance(ctx context.Context, asset Asset) BalanceReceipt
}
