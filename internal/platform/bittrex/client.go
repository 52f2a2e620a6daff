// Package bittrex implements the market data stream and the trading driver
// for the Bittrex exchange. The v1.1 API signs the full request URL,
// including an unix-milli nonce query parameter, with HMAC-SHA512.
package bittrex

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/easyarb/arbbot/internal/domain"
	"github.com/easyarb/arbbot/internal/nonce"
)

const defaultAPIURL = "https://bittrex.com/api/v1.1"

// envelope is the v1.1 response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// orderPlaced is the result of buylimit/selllimit.
type orderPlaced struct {
	UUID string `json:"uuid"`
}

// orderStatus is the result of account/getorder. Closed is null while the
// order is still working.
type orderStatus struct {
	OrderUUID         string          `json:"OrderUuid"`
	Exchange          string          `json:"Exchange"`
	Quantity          decimal.Decimal `json:"Quantity"`
	QuantityRemaining decimal.Decimal `json:"QuantityRemaining"`
	Price             decimal.Decimal `json:"Price"`
	IsOpen            bool            `json:"IsOpen"`
	Closed            *string         `json:"Closed"`
}

// balanceEntry is one entry of account/getbalances.
type balanceEntry struct {
	Currency  string          `json:"Currency"`
	Balance   decimal.Decimal `json:"Balance"`
	Available decimal.Decimal `json:"Available"`
}

// withdrawPlaced is the result of account/withdraw.
type withdrawPlaced struct {
	UUID string `json:"uuid"`
}

// Client is the signed REST client for the Bittrex v1.1 API. The nonce gate
// keeps the nonce query parameter strictly increasing across concurrent
// callers.
type Client struct {
	apiURL     string
	apiKey     string
	apiSecret  string
	gate       *nonce.Gate
	httpClient *http.Client
}

// NewClient creates a Bittrex REST client.
func NewClient(apiKey, apiSecret string, gate *nonce.Gate) *Client {
	return &Client{
		apiURL:    defaultAPIURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		gate:      gate,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SetAPIURL overrides the API root, for tests.
func (c *Client) SetAPIURL(u string) { c.apiURL = u }

// BuyLimit places a limit buy order and returns its UUID.
func (c *Client) BuyLimit(ctx context.Context, pair domain.Pair, price, size decimal.Decimal) (string, error) {
	return c.placeOrder(ctx, "market/buylimit", pair, price, size)
}

// SellLimit places a limit sell order and returns its UUID.
func (c *Client) SellLimit(ctx context.Context, pair domain.Pair, price, size decimal.Decimal) (string, error) {
	return c.placeOrder(ctx, "market/selllimit", pair, price, size)
}

func (c *Client) placeOrder(ctx context.Context, cmd string, pair domain.Pair, price, size decimal.Decimal) (string, error) {
	params := map[string]string{
		"market":   MarketName(pair),
		"quantity": size.String(),
		"rate":     price.String(),
	}
	var placed orderPlaced
	if err := c.req(ctx, cmd, params, &placed); err != nil {
		return "", fmt.Errorf("bittrex: %s: %w", cmd, err)
	}
	if placed.UUID == "" {
		return "", fmt.Errorf("bittrex: %s: response carries no order uuid", cmd)
	}
	return placed.UUID, nil
}

// CancelOrder cancels an order by UUID.
func (c *Client) CancelOrder(ctx context.Context, uuid string) error {
	if err := c.req(ctx, "market/cancel", map[string]string{"uuid": uuid}, nil); err != nil {
		return fmt.Errorf("bittrex: cancel %s: %w", uuid, err)
	}
	return nil
}

// GetOrder fetches an order's current state.
func (c *Client) GetOrder(ctx context.Context, uuid string) (orderStatus, error) {
	var st orderStatus
	if err := c.req(ctx, "account/getorder", map[string]string{"uuid": uuid}, &st); err != nil {
		return orderStatus{}, fmt.Errorf("bittrex: get order %s: %w", uuid, err)
	}
	return st, nil
}

// GetBalances returns all account balances.
func (c *Client) GetBalances(ctx context.Context) ([]balanceEntry, error) {
	var balances []balanceEntry
	if err := c.req(ctx, "account/getbalances", nil, &balances); err != nil {
		return nil, fmt.Errorf("bittrex: get balances: %w", err)
	}
	return balances, nil
}

// Withdraw sends funds to an external address.
func (c *Client) Withdraw(ctx context.Context, asset domain.Asset, amount decimal.Decimal, address string) (string, error) {
	params := map[string]string{
		"currency": string(asset),
		"quantity": amount.String(),
		"address":  address,
	}
	var placed withdrawPlaced
	if err := c.req(ctx, "account/withdraw", params, &placed); err != nil {
		return "", fmt.Errorf("bittrex: withdraw: %w", err)
	}
	return placed.UUID, nil
}

// req signs and sends one request. The signature is HMAC-SHA512 over the
// complete URL, so the nonce gate stays held until the response arrives to
// keep venue-side ordering aligned with nonce order.
func (c *Client) req(ctx context.Context, cmd string, params map[string]string, out any) error {
	n, err := c.gate.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire nonce: %w", err)
	}
	defer c.gate.Release()

	fullURL := c.buildURL(cmd, n, params)

	mac := hmac.New(sha512.New, []byte(c.apiSecret))
	mac.Write([]byte(fullURL))
	signature := hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apisign", signature)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		return fmt.Errorf("venue rejected: %s", env.Message)
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func (c *Client) buildURL(cmd string, n int64, params map[string]string) string {
	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("nonce", strconv.FormatInt(n, 10))

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(k, params[k])
	}
	return c.apiURL + "/" + cmd + "?" + q.Encode()
}

// MarketName is the venue's market identifier for a pair.
func MarketName(pair domain.Pair) string {
	return string(pair.Base) + "-" + string(pair.Counter)
}
