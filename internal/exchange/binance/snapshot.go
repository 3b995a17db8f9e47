package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/alanyoungcy/scalpbot/internal/domain"
)

// DepthSnapshot fetches a point-in-time orderbook snapshot via REST. The
// returned LastUpdateID anchors incremental depth deltas from the stream.
func (c *Client) DepthSnapshot(ctx context.Context, symbol string, limit int) (domain.DepthSnapshot, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.doPublic(ctx, "/fapi/v1/depth", params)
	if err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("binance: depth snapshot %s: %w", symbol, err)
	}

	var resp depthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("binance: decode depth snapshot: %w", err)
	}

	snap := domain.DepthSnapshot{
		LastUpdateID: resp.LastUpdateID,
		Bids:         parsePairs(resp.Bids),
		Asks:         parsePairs(resp.Asks),
	}
	return snap, nil
}

// parsePairs converts [price, qty] string pairs, skipping malformed entries.
func parsePairs(pairs [][]string) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(pairs))
	for _, pair := range pairs {
		if len(pair) < 2 {
			continue
		}
		price, err := strconv.ParseFloat(pair[0], 64)
		if err != nil {
			continue
		}
		qty, err := strconv.ParseFloat(pair[1], 64)
		if err != nil {
			continue
		}
		out = append(out, domain.PriceLevel{Price: price, Quantity: qty})
	}
	return out
}

var _ domain.SnapshotFetcher = (*Client)(nil)
