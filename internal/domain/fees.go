package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// FeeSchedule is a venue's fee structure: a proportional taker rate (a
// fraction, e.g. 0.002) and a flat withdrawal fee per asset, denominated in
// the asset being withdrawn.
type FeeSchedule struct {
	Taker      decimal.Decimal
	Withdrawal map[Asset]decimal.Decimal
}

// WithdrawalFor returns the flat withdrawal fee for the given asset, or zero
// when the venue lists none.
func (f FeeSchedule) WithdrawalFor(asset Asset) decimal.Decimal {
	if f.Withdrawal == nil {
		return decimal.Zero
	}
	return f.Withdrawal[asset]
}

// FeeStore resolves a venue's fee schedule.
type FeeStore interface {
	GetFees(ctx context.Context, venueID string) (FeeSchedule, error)
}
