package binance

import (
	"context"
	"net/url"
	"strconv"

	"github.com/alanyoungcy/scalpbot/internal/domain"
)

// Gateway adapts the REST client to the execution port. Entries and the
// protective take-profit rest as post-only limit orders (GTX) so they only
// ever fill as makers; emergency exits go out as reduce-only market orders.
type Gateway struct {
	client *Client
}

// NewGateway creates a Gateway over the given REST client.
func NewGateway(client *Client) *Gateway {
	return &Gateway{client: client}
}

func (g *Gateway) PlaceLimitBuy(ctx context.Context, symbol string, qty, price float64) (string, error) {
	return g.client.placeOrder(ctx, limitParams(symbol, "BUY", qty, price))
}

func (g *Gateway) PlaceLimitSell(ctx context.Context, symbol string, qty, price float64) (string, error) {
	return g.client.placeOrder(ctx, limitParams(symbol, "SELL", qty, price))
}

func (g *Gateway) Cancel(ctx context.Context, symbol, orderID string) error {
	return g.client.CancelOrder(ctx, symbol, orderID)
}

func (g *Gateway) MarketClose(ctx context.Context, symbol string, qty float64) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", "SELL")
	params.Set("type", "MARKET")
	params.Set("quantity", formatQty(qty))
	params.Set("reduceOnly", "true")

	_, err := g.client.placeOrder(ctx, params)
	return err
}

func (g *Gateway) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return g.client.TickerPrice(ctx, symbol)
}

func limitParams(symbol, side string, qty, price float64) url.Values {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", side)
	params.Set("type", "LIMIT")
	params.Set("timeInForce", "GTX")
	params.Set("quantity", formatQty(qty))
	params.Set("price", formatPrice(price))
	return params
}

// Binance rejects excess precision; futures symbols accept at most 3
// quantity decimals and 6 price decimals on the pairs we trade.
func formatQty(qty float64) string {
	return strconv.FormatFloat(qty, 'f', 3, 64)
}

func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', 6, 64)
}

var _ domain.ExecutionGateway = (*Gateway)(nil)
