package domain

import "time"

// OrderEventKind discriminates lifecycle events.
type OrderEventKind string

const (
	EventQuoted  OrderEventKind = "quoted"
	EventFilled  OrderEventKind = "filled"
	EventExpired OrderEventKind = "expired"
	EventClosed  OrderEventKind = "closed"
)

// OrderEvent is an immutable record emitted on every position state change.
type OrderEvent struct {
	ID         string         `json:"id"` // UUID
	Kind       OrderEventKind `json:"kind"`
	Symbol     string         `json:"symbol"`
	Slot       int            `json:"slot"`
	OrderID    string         `json:"order_id"`
	Quantity   float64        `json:"quantity"`
	EntryPrice float64        `json:"entry_price"`
	TakeProfit float64        `json:"take_profit"`
	StopLoss   float64        `json:"stop_loss"`
	Confidence float64        `json:"confidence"`
	ExitPrice  float64        `json:"exit_price,omitempty"`
	PnL        float64        `json:"pnl,omitempty"`
	Reason     CloseReason    `json:"reason,omitempty"` // set for closed events
	At         time.Time      `json:"at"`
}

// StatsEvent is a snapshot of running statistics, emitted after every
// terminal transition.
type StatsEvent struct {
	Symbol      string    `json:"symbol"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	Breakevens  int       `json:"breakevens"`
	Unfilled    int       `json:"unfilled"`
	TotalTrades int       `json:"total_trades"`
	TotalPnL    float64   `json:"total_pnl"`
	WinRate     float64   `json:"win_rate"`
	At          time.Time `json:"at"`
}
