package bitfinex

import (
	"github.com/shopspring/decimal"

	"github.com/easyarb/arbbot/internal/domain"
)

// Vocabulary mapping between canonical identifiers and the venue's. USDT is
// settled as fiat USD here, so the canonical base maps onto "usd".

var pairSymbols = map[domain.Pair]string{
	domain.PairUSDTBTC: "BTCUSD",
}

var assetSymbols = map[domain.Asset]string{
	domain.AssetUSDT: "usd",
	domain.AssetBTC:  "btc",
}

var sideNames = map[domain.Side]string{
	domain.SideBid: "buy",
	domain.SideAsk: "sell",
}

// orderResponse is the v1 order shape returned by order/new, order/status
// and order/cancel.
type orderResponse struct {
	ID              int64           `json:"id"`
	Symbol          string          `json:"symbol"`
	Side            string          `json:"side"`
	Type            string          `json:"type"`
	Price           decimal.Decimal `json:"price"`
	AvgPrice        decimal.Decimal `json:"avg_execution_price"`
	OriginalAmount  decimal.Decimal `json:"original_amount"`
	ExecutedAmount  decimal.Decimal `json:"executed_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	IsLive          bool            `json:"is_live"`
	IsCancelled     bool            `json:"is_cancelled"`
}

// offerResponse is returned by offer/new for margin funding.
type offerResponse struct {
	ID        int64           `json:"id"`
	Currency  string          `json:"currency"`
	Rate      decimal.Decimal `json:"rate"`
	Period    int             `json:"period"`
	Direction string          `json:"direction"`
	IsLive    bool            `json:"is_live"`
}

// walletEntry is one entry of the balances response.
type walletEntry struct {
	Type      string          `json:"type"`
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	Available decimal.Decimal `json:"available"`
}

// withdrawResult is one entry of the withdraw response array.
type withdrawResult struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	WithdrawalID int64  `json:"withdrawal_id"`
}

// apiError is the v1 error envelope on non-2xx responses.
type apiError struct {
	Message string `json:"message"`
}

// withdrawMethods maps assets onto the withdraw endpoint's method names.
var withdrawMethods = map[domain.Asset]string{
	domain.AssetBTC:  "bitcoin",
	domain.AssetUSDT: "tetheruso",
}
