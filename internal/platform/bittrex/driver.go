package bittrex

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/easyarb/arbbot/internal/domain"
)

// VenueName is the canonical identifier for this venue.
const VenueName = "bittrex"

// execPollInterval is how often WaitForExec re-checks an order's status.
const execPollInterval = time.Second

// Driver adapts the REST client to the venue capability interface. The venue
// has no margin trading, so the hedge operations report unsupported.
type Driver struct {
	client *Client
	logger *slog.Logger
}

var _ domain.Venue = (*Driver)(nil)

// NewDriver creates a Driver on top of client.
func NewDriver(client *Client, logger *slog.Logger) *Driver {
	return &Driver{
		client: client,
		logger: logger.With(slog.String("component", "bittrex_driver")),
	}
}

// Name returns the canonical venue identifier.
func (d *Driver) Name() string { return VenueName }

// OpenShortPosition is not supported on this venue.
func (d *Driver) OpenShortPosition(context.Context, domain.Asset, decimal.Decimal) domain.PositionReceipt {
	return domain.PositionReceipt{Receipt: domain.Rejected("function not supported")}
}

// ClosePosition is not supported on this venue.
func (d *Driver) ClosePosition(context.Context, domain.PositionRef) domain.Receipt {
	return domain.Rejected("not supported")
}

// Buy places a limit buy order.
func (d *Driver) Buy(ctx context.Context, pair domain.Pair, price, size decimal.Decimal) domain.OrderReceipt {
	uuid, err := d.client.BuyLimit(ctx, pair, price, size)
	if err != nil {
		return domain.OrderReceipt{Receipt: domain.Rejected(err.Error())}
	}
	return orderReceipt(pair, uuid)
}

// Sell places a limit sell order.
func (d *Driver) Sell(ctx context.Context, pair domain.Pair, price, size decimal.Decimal) domain.OrderReceipt {
	uuid, err := d.client.SellLimit(ctx, pair, price, size)
	if err != nil {
		return domain.OrderReceipt{Receipt: domain.Rejected(err.Error())}
	}
	return orderReceipt(pair, uuid)
}

func orderReceipt(pair domain.Pair, uuid string) domain.OrderReceipt {
	return domain.OrderReceipt{
		Receipt: domain.Authorized(""),
		Order:   domain.OrderRef{Venue: VenueName, Pair: pair, ID: uuid},
	}
}

// Cancel cancels the order.
func (d *Driver) Cancel(ctx context.Context, order domain.OrderRef) domain.Receipt {
	if err := d.client.CancelOrder(ctx, order.ID); err != nil {
		return domain.Rejected(err.Error())
	}
	return domain.Authorized("")
}

// WaitForExec polls the order once per second until its Closed timestamp is
// set. Cancelling ctx makes it return a negative receipt.
func (d *Driver) WaitForExec(ctx context.Context, order domain.OrderRef) domain.Receipt {
	for {
		st, err := d.client.GetOrder(ctx, order.ID)
		if err != nil {
			return domain.Rejected(err.Error())
		}
		if st.Closed != nil {
			return domain.Authorized("order completed")
		}

		select {
		case <-ctx.Done():
			return domain.Rejected(ctx.Err().Error())
		case <-time.After(execPollInterval):
		}
	}
}

// TransferFunds withdraws the amount to the deposit address at the receiving
// venue.
func (d *Driver) TransferFunds(ctx context.Context, toVenue string, asset domain.Asset, amount decimal.Decimal, wallet string) domain.Receipt {
	if wallet == "" {
		return domain.Rejected(fmt.Sprintf("no deposit wallet for %s at %s", asset, toVenue))
	}
	uuid, err := d.client.Withdraw(ctx, asset, amount, wallet)
	if err != nil {
		return domain.Rejected(err.Error())
	}
	return domain.Authorized(uuid)
}

// Balance reports the available balance for the asset. An asset the account
// has never held is a rejection, not a zero.
func (d *Driver) Balance(ctx context.Context, asset domain.Asset) domain.BalanceReceipt {
	balances, err := d.client.GetBalances(ctx)
	if err != nil {
		return domain.BalanceReceipt{Receipt: domain.Rejected(err.Error())}
	}
	for _, b := range balances {
		if b.Currency == string(asset) {
			return domain.BalanceReceipt{
				Receipt: domain.Authorized(""),
				Balance: b.Available,
			}
		}
	}
	return domain.BalanceReceipt{Receipt: domain.Rejected(fmt.Sprintf("cant find currency with id %s", asset))}
}
