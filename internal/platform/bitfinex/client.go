// Package bitfinex implements the market data feed and the trading driver
// for the Bitfinex exchange. Authenticated REST calls are serialized through
// a nonce gate: the venue rejects any request whose nonce is not strictly
// greater than the last one it saw, so the gate is held for the full request
// lifetime, not just for stamping.
package bitfinex

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/easyarb/arbbot/internal/domain"
	"github.com/easyarb/arbbot/internal/nonce"
)

const (
	defaultBaseURL = "https://api.bitfinex.com"
	apiVersion     = "v1"
)

// Client is the signed REST client for the Bitfinex v1 API.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	gate       *nonce.Gate
	httpClient *http.Client
}

// NewClient creates a Bitfinex REST client. All authenticated requests made
// through it share the given nonce gate.
func NewClient(apiKey, apiSecret string, gate *nonce.Gate) *Client {
	return &Client{
		baseURL:   defaultBaseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		gate:      gate,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SetBaseURL overrides the API root, for tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

// NewOrder places an exchange limit order and returns the venue's order
// record.
func (c *Client) NewOrder(ctx context.Context, pair domain.Pair, price, size decimal.Decimal, side domain.Side) (orderResponse, error) {
	symbol, ok := pairSymbols[pair]
	if !ok {
		return orderResponse{}, fmt.Errorf("bitfinex: unknown pair %s", pair)
	}
	params := map[string]any{
		"symbol":    symbol,
		"amount":    size.String(),
		"price":     price.String(),
		"exchange":  "bitfinex",
		"side":      sideNames[side],
		"type":      "exchange limit",
		"post_only": false,
		"is_hidden": false,
	}

	var resp orderResponse
	if err := c.authRequest(ctx, "order/new", params, &resp); err != nil {
		return orderResponse{}, fmt.Errorf("bitfinex: new order: %w", err)
	}
	return resp, nil
}

// NewMarginOrder places a margin market order. Used for the hedge legs.
func (c *Client) NewMarginOrder(ctx context.Context, pair domain.Pair, size decimal.Decimal, side domain.Side) (orderResponse, error) {
	symbol, ok := pairSymbols[pair]
	if !ok {
		return orderResponse{}, fmt.Errorf("bitfinex: unknown pair %s", pair)
	}
	params := map[string]any{
		"symbol":   symbol,
		"amount":   size.String(),
		"price":    "1", // ignored for market orders, must still be positive
		"exchange": "bitfinex",
		"side":     sideNames[side],
		"type":     "market",
	}

	var resp orderResponse
	if err := c.authRequest(ctx, "order/new", params, &resp); err != nil {
		return orderResponse{}, fmt.Errorf("bitfinex: new margin order: %w", err)
	}
	return resp, nil
}

// OrderStatus fetches the current state of an order.
func (c *Client) OrderStatus(ctx context.Context, orderID int64) (orderResponse, error) {
	var resp orderResponse
	if err := c.authRequest(ctx, "order/status", map[string]any{"order_id": orderID}, &resp); err != nil {
		return orderResponse{}, fmt.Errorf("bitfinex: order status %d: %w", orderID, err)
	}
	return resp, nil
}

// CancelOrder cancels an order by ID.
func (c *Client) CancelOrder(ctx context.Context, orderID int64) (orderResponse, error) {
	var resp orderResponse
	if err := c.authRequest(ctx, "order/cancel", map[string]any{"order_id": orderID}, &resp); err != nil {
		return orderResponse{}, fmt.Errorf("bitfinex: cancel order %d: %w", orderID, err)
	}
	return resp, nil
}

// Loan places a margin funding offer at the flash return rate.
func (c *Client) Loan(ctx context.Context, asset domain.Asset, size decimal.Decimal) (offerResponse, error) {
	currency, ok := assetSymbols[asset]
	if !ok {
		return offerResponse{}, fmt.Errorf("bitfinex: unknown asset %s", asset)
	}
	params := map[string]any{
		"currency":  currency,
		"amount":    size.String(),
		"rate":      "0",
		"period":    1,
		"direction": "loan",
	}

	var resp offerResponse
	if err := c.authRequest(ctx, "offer/new", params, &resp); err != nil {
		return offerResponse{}, fmt.Errorf("bitfinex: loan: %w", err)
	}
	return resp, nil
}

// Wallets returns all wallet balances.
func (c *Client) Wallets(ctx context.Context) ([]walletEntry, error) {
	var resp []walletEntry
	if err := c.authRequest(ctx, "balances", nil, &resp); err != nil {
		return nil, fmt.Errorf("bitfinex: wallets: %w", err)
	}
	return resp, nil
}

// Withdraw moves funds from the exchange wallet to an external address.
func (c *Client) Withdraw(ctx context.Context, asset domain.Asset, amount decimal.Decimal, address string) (withdrawResult, error) {
	method, ok := withdrawMethods[asset]
	if !ok {
		return withdrawResult{}, fmt.Errorf("bitfinex: no withdraw method for asset %s", asset)
	}
	params := map[string]any{
		"withdraw_type":  method,
		"walletselected": "exchange",
		"amount":         amount.String(),
		"address":        address,
	}

	var resp []withdrawResult
	if err := c.authRequest(ctx, "withdraw", params, &resp); err != nil {
		return withdrawResult{}, fmt.Errorf("bitfinex: withdraw: %w", err)
	}
	if len(resp) == 0 {
		return withdrawResult{}, fmt.Errorf("bitfinex: withdraw: empty response")
	}
	return resp[0], nil
}

// authRequest signs and sends one v1 request and decodes the response into
// out. The nonce gate is acquired before the payload is built and released
// only after the response has been read, keeping nonce order and arrival
// order aligned at the venue.
func (c *Client) authRequest(ctx context.Context, path string, params map[string]any, out any) error {
	n, err := c.gate.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire nonce: %w", err)
	}
	defer c.gate.Release()

	body := make(map[string]any, len(params)+2)
	for k, v := range params {
		body[k] = v
	}
	body["request"] = "/" + apiVersion + "/" + path
	body["nonce"] = strconv.FormatInt(n, 10)

	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	payload := base64.StdEncoding.EncodeToString(raw)

	mac := hmac.New(sha512.New384, []byte(c.apiSecret))
	mac.Write([]byte(payload))
	signature := hex.EncodeToString(mac.Sum(nil))

	url := c.baseURL + "/" + apiVersion + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-BFX-APIKEY", c.apiKey)
	req.Header.Set("X-BFX-PAYLOAD", payload)
	req.Header.Set("X-BFX-SIGNATURE", signature)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		_ = json.Unmarshal(respBody, &apiErr)
		if apiErr.Message != "" {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
