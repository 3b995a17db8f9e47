package domain

import "time"

// PositionState tracks the position lifecycle.
type PositionState string

const (
	PositionQuoted  PositionState = "quoted"  // limit entry resting unfilled
	PositionActive  PositionState = "active"  // entry filled, monitoring exits
	PositionClosed  PositionState = "closed"  // exited, PnL realized
	PositionExpired PositionState = "expired" // entry timed out unfilled
)

// Terminal reports whether the state is final.
func (s PositionState) Terminal() bool {
	return s == PositionClosed || s == PositionExpired
}

// CloseReason identifies which exit condition closed a position. On a single
// evaluation the conditions are tested in this order: take-profit, stop-loss,
// time-limit.
type CloseReason string

const (
	CloseTakeProfit CloseReason = "take_profit"
	CloseStopLoss   CloseReason = "stop_loss"
	CloseTimeLimit  CloseReason = "time_limit"
	CloseShutdown   CloseReason = "shutdown"
	CloseManual     CloseReason = "manual"
)

// Position is a slot-bound speculative position. Exactly one position
// occupies a slot at a time; positions are created, mutated, and retired only
// by the lifecycle manager.
type Position struct {
	Slot            int
	Quantity        float64
	EntryLimitPrice float64
	TakeProfitPrice float64
	StopLossPrice   float64
	Confidence      float64
	CreatedAt       time.Time
	TimeoutAt       time.Time // quoted entry expires here if unfilled
	EntryAt         time.Time // zero until Active
	ExitAt          time.Time // zero until Active; time-limit exit deadline
	EntryOrderID    string
	ExitOrderID     string // resting take-profit order, set on fill
	RealizedPnL     float64
	State           PositionState
}

// RunningStats accumulates terminal outcomes across a session. It is rebuilt
// fresh each process start; only emitted events persist position history.
type RunningStats struct {
	Wins          int
	Losses        int
	Breakevens    int
	UnfilledCount int
	TotalPnL      float64
}

// TotalTrades returns the number of positions that reached Closed.
func (s RunningStats) TotalTrades() int {
	return s.Wins + s.Losses + s.Breakevens
}

// WinRate returns the win percentage over closed trades, 0 when none.
func (s RunningStats) WinRate() float64 {
	total := s.TotalTrades()
	if total == 0 {
		return 0
	}
	return float64(s.Wins) / float64(total) * 100
}
