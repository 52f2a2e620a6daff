// Package arb implements the cross-venue arbitrage calculation: a pure
// greedy walk over two depth snapshots that finds the maximum-profit matched
// volume under asymmetric fee structures. No side effects, no I/O.
package arb

import (
	"github.com/shopspring/decimal"

	"github.com/easyarb/arbbot/internal/domain"
)

// sizeScale is the truncation scale for volumes clamped to capital. Both
// venues accept 8 decimal places of size; truncating (never rounding up)
// guarantees the plan cannot overcommit capital or liquidity.
const sizeScale = 8

// Input carries the fee structure and capital for one evaluation direction.
//
// BuyWithdrawalFee is the flat fee the buy venue charges to move the acquired
// counter asset out; SellWithdrawalFee is the sell venue's fee to move the
// base-asset proceeds back. Both are subtracted from profit as flat amounts,
// the conservative sign convention for the asymmetric withdrawal semantics.
type Input struct {
	BuyTakerFee       decimal.Decimal // fraction, e.g. 0.002
	SellTakerFee      decimal.Decimal // fraction
	BuyWithdrawalFee  decimal.Decimal // flat, counter asset leaving the buy venue
	SellWithdrawalFee decimal.Decimal // flat, base asset leaving the sell venue
	Capital           decimal.Decimal // quote currency available to deploy
}

// Calculate walks buyDepth (asks of the buy venue, ascending) and sellDepth
// (bids of the sell venue, descending) level by level, matching volume while
// the marginal effective buy cost stays strictly below the marginal effective
// sell proceeds:
//
//	effective buy cost  = ask × (1 + BuyTakerFee)
//	effective sell gain = bid × (1 − SellTakerFee)
//
// The walk stops when the levels no longer cross, when either depth is
// exhausted, or when accumulated cost would exceed Capital. The returned
// plan is not the full walk: because the whole volume is priced at the
// worst-touched level per side, reaching into a deeper level reprices
// everything matched so far and can shrink the total. The walk therefore
// keeps the prefix whose gross is largest and returns that prefix's volume
// and worst-touched prices, with profit computed from those worst-case
// effective prices:
//
//	profit = v × (effSell − effBuy) − BuyWithdrawalFee − SellWithdrawalFee
//
// When two prefixes gross the same, the shorter one wins: equal profit for
// less capital and fewer fills. A volume of zero returns a zero opportunity.
func Calculate(buyDepth, sellDepth []domain.PriceLevel, in Input) domain.Opportunity {
	one := decimal.New(1, 0)
	buyMul := one.Add(in.BuyTakerFee)
	sellMul := one.Sub(in.SellTakerFee)

	var (
		volume  = decimal.Zero
		spent   = decimal.Zero
		i, j    int
		buyRem  decimal.Decimal
		sellRem decimal.Decimal

		bestVolume = decimal.Zero
		bestGross  = decimal.Zero
		bestBuy    decimal.Decimal
		bestSell   decimal.Decimal

		capitalFull bool
	)

	if len(buyDepth) > 0 {
		buyRem = buyDepth[0].Size
	}
	if len(sellDepth) > 0 {
		sellRem = sellDepth[0].Size
	}

	for i < len(buyDepth) && j < len(sellDepth) && !capitalFull {
		effBuy := buyDepth[i].Price.Mul(buyMul)
		effSell := sellDepth[j].Price.Mul(sellMul)
		if effBuy.GreaterThanOrEqual(effSell) {
			break
		}

		take := decimal.Min(buyRem, sellRem)

		// Clamp to remaining capital, truncating so the buy notional can
		// never exceed what is actually available.
		affordable := in.Capital.Sub(spent).Div(effBuy).Truncate(sizeScale)
		if take.GreaterThan(affordable) {
			take = affordable
			capitalFull = true
		}
		if !take.IsPositive() {
			break
		}

		volume = volume.Add(take)
		spent = spent.Add(take.Mul(effBuy))
		buyRem = buyRem.Sub(take)
		sellRem = sellRem.Sub(take)

		// Candidate prefix: everything matched so far, repriced at the
		// current worst-touched levels. Keep it only when strictly better.
		gross := volume.Mul(effSell.Sub(effBuy))
		if gross.GreaterThan(bestGross) {
			bestGross = gross
			bestVolume = volume
			bestBuy = buyDepth[i].Price
			bestSell = sellDepth[j].Price
		}

		if buyRem.IsZero() {
			i++
			if i < len(buyDepth) {
				buyRem = buyDepth[i].Size
			}
		}
		if sellRem.IsZero() {
			j++
			if j < len(sellDepth) {
				sellRem = sellDepth[j].Size
			}
		}
	}

	if bestVolume.IsZero() {
		return domain.Opportunity{
			Volume:    decimal.Zero,
			BuyPrice:  decimal.Zero,
			SellPrice: decimal.Zero,
			Profit:    decimal.Zero,
		}
	}

	profit := bestGross.
		Sub(in.BuyWithdrawalFee).
		Sub(in.SellWithdrawalFee)

	return domain.Opportunity{
		Volume:    bestVolume,
		BuyPrice:  bestBuy,
		SellPrice: bestSell,
		Profit:    profit,
	}
}
