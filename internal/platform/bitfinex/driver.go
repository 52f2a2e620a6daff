package bitfinex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/easyarb/arbbot/internal/domain"
)

// VenueName is the canonical identifier for this venue.
const VenueName = "bitfinex"

// execPollInterval is how often WaitForExec re-checks an order's status.
const execPollInterval = 500 * time.Millisecond

// Driver adapts the REST client to the venue capability interface. Transport
// and venue failures come back as negative receipts, never as Go errors.
//
// Short hedges are margin market sells; the driver remembers the filled size
// per position so ClosePosition can buy the same amount back.
type Driver struct {
	client *Client
	logger *slog.Logger

	mu        sync.Mutex
	positions map[string]shortPosition
}

type shortPosition struct {
	pair domain.Pair
	size decimal.Decimal
}

var _ domain.Venue = (*Driver)(nil)

// NewDriver creates a Driver on top of client.
func NewDriver(client *Client, logger *slog.Logger) *Driver {
	return &Driver{
		client:    client,
		logger:    logger.With(slog.String("component", "bitfinex_driver")),
		positions: make(map[string]shortPosition),
	}
}

// Name returns the canonical venue identifier.
func (d *Driver) Name() string { return VenueName }

// OpenShortPosition funds the short with a margin funding offer and then
// sells the asset on margin at market. A rejected funding offer rejects the
// whole hedge open; nothing has been sold at that point. The returned
// position ID is the margin order's ID.
func (d *Driver) OpenShortPosition(ctx context.Context, asset domain.Asset, size decimal.Decimal) domain.PositionReceipt {
	pair, ok := hedgePair(asset)
	if !ok {
		return domain.PositionReceipt{Receipt: domain.Rejected(fmt.Sprintf("no margin market for asset %s", asset))}
	}

	if rec := d.Loan(ctx, asset, size); !rec.Ack {
		return domain.PositionReceipt{Receipt: rec}
	}

	resp, err := d.client.NewMarginOrder(ctx, pair, size, domain.SideAsk)
	if err != nil {
		return domain.PositionReceipt{Receipt: domain.Rejected(err.Error())}
	}
	if resp.ID == 0 {
		return domain.PositionReceipt{Receipt: domain.Rejected(payload(resp))}
	}

	id := strconv.FormatInt(resp.ID, 10)
	d.mu.Lock()
	d.positions[id] = shortPosition{pair: pair, size: size}
	d.mu.Unlock()

	return domain.PositionReceipt{
		Receipt:  domain.Authorized(payload(resp)),
		Position: domain.PositionRef{Venue: VenueName, ID: id},
	}
}

// Buy places an exchange limit buy order.
func (d *Driver) Buy(ctx context.Context, pair domain.Pair, price, size decimal.Decimal) domain.OrderReceipt {
	return d.newOrder(ctx, pair, price, size, domain.SideBid)
}

// Sell places an exchange limit sell order.
func (d *Driver) Sell(ctx context.Context, pair domain.Pair, price, size decimal.Decimal) domain.OrderReceipt {
	return d.newOrder(ctx, pair, price, size, domain.SideAsk)
}

func (d *Driver) newOrder(ctx context.Context, pair domain.Pair, price, size decimal.Decimal, side domain.Side) domain.OrderReceipt {
	resp, err := d.client.NewOrder(ctx, pair, price, size, side)
	if err != nil {
		return domain.OrderReceipt{Receipt: domain.Rejected(err.Error())}
	}
	if resp.ID == 0 {
		return domain.OrderReceipt{Receipt: domain.Rejected(payload(resp))}
	}
	return domain.OrderReceipt{
		Receipt: domain.Authorized(payload(resp)),
		Order: domain.OrderRef{
			Venue: VenueName,
			Pair:  pair,
			ID:    strconv.FormatInt(resp.ID, 10),
		},
	}
}

// Cancel cancels the order.
func (d *Driver) Cancel(ctx context.Context, order domain.OrderRef) domain.Receipt {
	id, err := strconv.ParseInt(order.ID, 10, 64)
	if err != nil {
		return domain.Rejected(fmt.Sprintf("invalid order id %q", order.ID))
	}
	resp, err := d.client.CancelOrder(ctx, id)
	if err != nil {
		return domain.Rejected(err.Error())
	}
	return domain.Authorized(payload(resp))
}

// WaitForExec polls the order until it is no longer live. Cancelling ctx
// makes it return a negative receipt without waiting out the order.
func (d *Driver) WaitForExec(ctx context.Context, order domain.OrderRef) domain.Receipt {
	id, err := strconv.ParseInt(order.ID, 10, 64)
	if err != nil {
		return domain.Rejected(fmt.Sprintf("invalid order id %q", order.ID))
	}

	for {
		select {
		case <-ctx.Done():
			return domain.Rejected(ctx.Err().Error())
		case <-time.After(execPollInterval):
		}

		resp, err := d.client.OrderStatus(ctx, id)
		if err != nil {
			return domain.Rejected(err.Error())
		}
		if !resp.IsLive {
			return domain.Authorized(payload(resp))
		}
	}
}

// TransferFunds withdraws the amount from the exchange wallet to the deposit
// address at the receiving venue.
func (d *Driver) TransferFunds(ctx context.Context, toVenue string, asset domain.Asset, amount decimal.Decimal, wallet string) domain.Receipt {
	if wallet == "" {
		return domain.Rejected(fmt.Sprintf("no deposit wallet for %s at %s", asset, toVenue))
	}
	resp, err := d.client.Withdraw(ctx, asset, amount, wallet)
	if err != nil {
		return domain.Rejected(err.Error())
	}
	if resp.Status != "success" {
		return domain.Rejected(resp.Message)
	}
	return domain.Authorized(resp.Message)
}

// ClosePosition buys back the size the short was opened with, at market on
// margin.
func (d *Driver) ClosePosition(ctx context.Context, pos domain.PositionRef) domain.Receipt {
	d.mu.Lock()
	short, ok := d.positions[pos.ID]
	d.mu.Unlock()
	if !ok {
		return domain.Rejected(fmt.Sprintf("unknown position %q", pos.ID))
	}

	resp, err := d.client.NewMarginOrder(ctx, short.pair, short.size, domain.SideBid)
	if err != nil {
		return domain.Rejected(err.Error())
	}
	if resp.ID == 0 {
		return domain.Rejected(payload(resp))
	}

	d.mu.Lock()
	delete(d.positions, pos.ID)
	d.mu.Unlock()

	return domain.Authorized(payload(resp))
}

// Balance reports the available exchange-wallet balance for the asset.
func (d *Driver) Balance(ctx context.Context, asset domain.Asset) domain.BalanceReceipt {
	currency, ok := assetSymbols[asset]
	if !ok {
		return domain.BalanceReceipt{Receipt: domain.Rejected(fmt.Sprintf("unknown asset %s", asset))}
	}
	wallets, err := d.client.Wallets(ctx)
	if err != nil {
		return domain.BalanceReceipt{Receipt: domain.Rejected(err.Error())}
	}
	for _, w := range wallets {
		if w.Type == "exchange" && w.Currency == currency {
			return domain.BalanceReceipt{
				Receipt: domain.Authorized(""),
				Balance: w.Available,
			}
		}
	}
	return domain.BalanceReceipt{Receipt: domain.Rejected(fmt.Sprintf("no exchange wallet for %s", currency))}
}

// Loan places a margin funding offer so the short has something to borrow.
func (d *Driver) Loan(ctx context.Context, asset domain.Asset, size decimal.Decimal) domain.Receipt {
	resp, err := d.client.Loan(ctx, asset, size)
	if err != nil {
		return domain.Rejected(err.Error())
	}
	if resp.ID == 0 {
		return domain.Rejected(payload(resp))
	}
	return domain.Authorized(payload(resp))
}

// hedgePair finds the market whose counter asset is the one being shorted.
func hedgePair(asset domain.Asset) (domain.Pair, bool) {
	for pair := range pairSymbols {
		if pair.Counter == asset {
			return pair, true
		}
	}
	return domain.Pair{}, false
}

func payload(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}
