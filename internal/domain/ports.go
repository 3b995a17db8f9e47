package domain

import (
	"context"
	"time"
)

// ExecutionGateway places and cancels orders on the exchange. All calls are
// synchronous with a bounded timeout enforced by the implementation; a timeout
// surfaces as an error, never as a hang.
type ExecutionGateway interface {
	PlaceLimitBuy(ctx context.Context, symbol string, qty, price float64) (orderID string, err error)
	PlaceLimitSell(ctx context.Context, symbol string, qty, price float64) (orderID string, err error)
	Cancel(ctx context.Context, symbol, orderID string) error
	MarketClose(ctx context.Context, symbol string, qty float64) error
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// Predictor scores a feature vector and returns a confidence in [0,1]. The
// model format is opaque to the core.
type Predictor interface {
	Score(ctx context.Context, features []float32) (float64, error)
}

// Sink receives lifecycle and status events. Delivery is best-effort and
// fire-and-forget; the core never acts on a sink's return value beyond
// logging it.
type Sink interface {
	Name() string
	OnOrderEvent(ctx context.Context, ev OrderEvent) error
	OnStats(ctx context.Context, stats StatsEvent) error
	OnStatus(ctx context.Context, text string) error
	OnError(ctx context.Context, kind, message string) error
}

// SnapshotFetcher retrieves a point-in-time orderbook snapshot. The call is
// synchronous and may fail; a failure is a retryable session-start error.
type SnapshotFetcher interface {
	DepthSnapshot(ctx context.Context, symbol string, limit int) (DepthSnapshot, error)
}

// MarketRecord is one flat row of per-second market data, written append-only
// by the collector: candle fields plus top-of-book and funding context
// captured at the moment the candle froze.
type MarketRecord struct {
	Candle
	Symbol      string
	BestBid     float64
	BidQty      float64
	BestAsk     float64
	AskQty      float64
	Spread      float64
	Imbalance   float64
	FundingRate float64
}

// RecordStore persists per-second market rows in batches.
type RecordStore interface {
	InsertBatch(ctx context.Context, rows []MarketRecord) error
}

// EventStore persists lifecycle events and stats snapshots.
type EventStore interface {
	InsertOrderEvent(ctx context.Context, ev OrderEvent) error
	InsertStats(ctx context.Context, stats StatsEvent) error
}

// PriceCache exposes the latest observed trade price to out-of-process
// readers (admin surfaces, dashboards).
type PriceCache interface {
	SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, symbol string) (float64, time.Time, error)
}

// CommandBus delivers pause/resume/status commands to the running bot.
type CommandBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// BlobWriter uploads objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
}
