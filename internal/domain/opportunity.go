package domain

import "github.com/shopspring/decimal"

// Opportunity is the output of one arbitrage evaluation: the maximum matched
// volume tradeable across both venues and the conservative (worst-touched)
// prices at which to quote each leg. It is ephemeral; produced and consumed
// within a single evaluation cycle.
type Opportunity struct {
	Volume    decimal.Decimal
	BuyPrice  decimal.Decimal
	SellPrice decimal.Decimal
	Profit    decimal.Decimal
}

// Profitable reports whether the opportunity should trigger execution.
// Zero volume or non-positive profit means "no trade".
func (o Opportunity) Profitable() bool {
	return o.Volume.IsPositive() && o.Profit.IsPositive()
}
