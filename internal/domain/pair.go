// Package domain holds the canonical market vocabulary shared by every
// component: pairs, sides, price levels, opportunities, and the capability
// interfaces the venue drivers implement. Venue-specific naming never leaves
// the platform packages; everything above them speaks these types.
package domain

import (
	"fmt"
	"strings"
)

// Asset is a canonical asset symbol. Venue-specific spellings ("usd", "BTC",
// "XBT") are translated at the driver boundary.
type Asset string

const (
	AssetUSDT Asset = "USDT"
	AssetBTC  Asset = "BTC"
)

// Pair is a canonical trading pair. Base is the quote/settlement asset the
// capital is denominated in; Counter is the asset being traded. This follows
// the wire convention of the venues we trade (USDT-BTC quotes BTC in USDT).
type Pair struct {
	Base    Asset
	Counter Asset
}

// PairUSDTBTC is the single pair the bot currently trades.
var PairUSDTBTC = Pair{Base: AssetUSDT, Counter: AssetBTC}

// String returns the canonical "BASE-COUNTER" form.
func (p Pair) String() string {
	return string(p.Base) + "-" + string(p.Counter)
}

// ParsePair parses the canonical "BASE-COUNTER" form.
func ParsePair(s string) (Pair, error) {
	base, counter, ok := strings.Cut(s, "-")
	if !ok || base == "" || counter == "" {
		return Pair{}, fmt.Errorf("domain: invalid pair %q, want BASE-COUNTER", s)
	}
	return Pair{Base: Asset(base), Counter: Asset(counter)}, nil
}

// Side is an order book side.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)
