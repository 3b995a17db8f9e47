// Package domain defines the core types shared across the scalpbot: market
// events, candles, positions, lifecycle events, running statistics, and the
// ports implemented by external collaborators (exchange, predictor, sinks).
package domain

import "time"

// PriceScale is the fixed-point multiplier used wherever a price is stored as
// integer ticks (price * 1e6). Keying orderbook levels by ticks avoids the
// float-equality pitfalls of a float-keyed map.
const PriceScale = 1_000_000

// ToTicks converts a display price to fixed-point ticks.
func ToTicks(price float64) int64 {
	if price >= 0 {
		return int64(price*PriceScale + 0.5)
	}
	return int64(price*PriceScale - 0.5)
}

// FromTicks converts fixed-point ticks back to a display price.
func FromTicks(ticks int64) float64 {
	return float64(ticks) / PriceScale
}

// TradeEvent is a single executed trade from the exchange stream.
type TradeEvent struct {
	Symbol        string
	Price         float64
	Quantity      float64
	SellerIsMaker bool // Binance "m" field: true means the taker sold into a resting bid (sell pressure)
	Time          time.Time
	EpochMs       int64
}

// PriceLevel is a single price+quantity entry on one side of the book.
type PriceLevel struct {
	Price    float64
	Quantity float64
}

// DepthEvent is an incremental orderbook update. FirstUpdateID and
// FinalUpdateID carry the exchange sequence identifiers used for gap
// detection.
type DepthEvent struct {
	Symbol        string
	Bids          []PriceLevel
	Asks          []PriceLevel
	FirstUpdateID int64
	FinalUpdateID int64
	Time          time.Time
}

// MarkPriceEvent carries the mark price and current funding rate.
type MarkPriceEvent struct {
	Symbol      string
	MarkPrice   float64
	FundingRate float64
	Time        time.Time
}

// DepthSnapshot is the point-in-time REST orderbook used to seed the local
// book view.
type DepthSnapshot struct {
	LastUpdateID int64
	Bids         []PriceLevel
	Asks         []PriceLevel
}
