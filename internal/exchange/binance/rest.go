// Package binance is the exchange adapter: a signed REST client for orders
// and snapshots, and a combined-stream WebSocket session for market data.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultRecvWindow = 5000 // milliseconds

// Client is the REST client for the Binance futures API.
type Client struct {
	baseURL    string
	apiKey     string
	secretKey  string
	recvWindow int
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a Binance REST client.
//
// baseURL is the API root, e.g. "https://fapi.binance.com".
func NewClient(baseURL, apiKey, secretKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		secretKey:  secretKey,
		recvWindow: defaultRecvWindow,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

// WithRecvWindow overrides the recvWindow (milliseconds) sent on signed
// requests. Values <= 0 are ignored.
func (c *Client) WithRecvWindow(ms int) *Client {
	if ms > 0 {
		c.recvWindow = ms
	}
	return c
}

// sign computes the HMAC-SHA256 signature over the encoded query string.
func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// doPublic sends an unsigned request to a public market-data endpoint.
func (c *Client) doPublic(ctx context.Context, path string, params url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.do(req)
}

// doSigned sends a signed request. Binance authenticates by appending
// timestamp, recvWindow, and an HMAC-SHA256 signature of the full query
// string, with the API key in a header.
func (c *Client) doSigned(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.Itoa(c.recvWindow))

	query := params.Encode()
	query += "&signature=" + c.sign(query)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		_ = json.Unmarshal(body, &apiErr)
		switch resp.StatusCode {
		case http.StatusTooManyRequests, http.StatusTeapot:
			return nil, fmt.Errorf("binance: rate limited (%d): %s", apiErr.Code, apiErr.Message)
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("binance: unauthorized (%d): %s", apiErr.Code, apiErr.Message)
		default:
			return nil, fmt.Errorf("binance: HTTP %d (%d): %s", resp.StatusCode, apiErr.Code, apiErr.Message)
		}
	}

	return body, nil
}

// placeOrder submits an order and returns the exchange order ID.
func (c *Client) placeOrder(ctx context.Context, params url.Values) (string, error) {
	body, err := c.doSigned(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return "", fmt.Errorf("binance: place order: %w", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("binance: decode order response: %w", err)
	}
	if resp.Status == "EXPIRED" || resp.Status == "REJECTED" {
		return "", fmt.Errorf("binance: order %d immediately %s", resp.OrderID, resp.Status)
	}

	return strconv.FormatInt(resp.OrderID, 10), nil
}

// CancelOrder cancels an open order by its exchange ID.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	if _, err := c.doSigned(ctx, http.MethodDelete, "/fapi/v1/order", params); err != nil {
		return fmt.Errorf("binance: cancel order %s: %w", orderID, err)
	}
	return nil
}

// TickerPrice returns the latest traded price for the symbol.
func (c *Client) TickerPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.doPublic(ctx, "/fapi/v1/ticker/price", params)
	if err != nil {
		return 0, fmt.Errorf("binance: ticker price %s: %w", symbol, err)
	}

	var resp tickerPriceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("binance: decode ticker price: %w", err)
	}
	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("binance: parse ticker price %q: %w", resp.Price, err)
	}
	return price, nil
}
