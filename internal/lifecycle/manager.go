// Package lifecycle implements the slot-based order state machine: admission
// control with staggered cooldowns, quoted/active monitoring, exit handling
// with a fixed tie-break order, and running statistics.
package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/scalpbot/internal/domain"
	"github.com/alanyoungcy/scalpbot/internal/gate"
)

// Params is the snapshot of trading parameters used for one tick. A fresh
// snapshot is read at the top of every tick so a background config reload can
// never expose partially-updated fields mid-evaluation.
type Params struct {
	Symbol              string
	MaxPositions        int
	CapitalPerTrade     float64
	MakerOffsetPct      float64
	ProfitTargetPct     float64
	StopLossPct         float64
	ConfidenceThreshold float64
	MakerOrderTimeout   time.Duration
	HoldingTime         time.Duration
	GatewayTimeout      time.Duration
	SlotCooldowns       []time.Duration
}

// Reporter receives lifecycle and statistics events. Delivery is best-effort;
// the manager never blocks on or reacts to reporting outcomes.
type Reporter interface {
	OrderEvent(ctx context.Context, ev domain.OrderEvent)
	Stats(ctx context.Context, stats domain.StatsEvent)
}

// SignalGate asks the predictor whether to open a new position.
type SignalGate interface {
	Evaluate(ctx context.Context, candles []domain.Candle, threshold float64) (gate.Decision, error)
}

// Manager owns every position for one symbol. All mutable state (slots,
// statistics) lives on the instance; one Manager per symbol is the unit of
// testability. Positions are mutated only on Tick and CloseAll.
type Manager struct {
	params   func() Params
	gateway  domain.ExecutionGateway
	gate     SignalGate
	reporter Reporter
	logger   *slog.Logger

	paused atomic.Bool

	mu    sync.Mutex
	slots map[int]*domain.Position // slot -> occupant; absent means free
	stats domain.RunningStats
}

// NewManager creates a Manager. params is called once per tick to snapshot
// the active configuration.
func NewManager(params func() Params, gateway domain.ExecutionGateway, sg SignalGate, reporter Reporter, logger *slog.Logger) *Manager {
	return &Manager{
		params:   params,
		gateway:  gateway,
		gate:     sg,
		reporter: reporter,
		logger:   logger.With(slog.String("component", "lifecycle_manager")),
		slots:    make(map[int]*domain.Position),
	}
}

// SetPaused toggles admission. A paused manager still monitors fills and
// exits on every tick; it only stops opening new positions.
func (m *Manager) SetPaused(paused bool) {
	m.paused.Store(paused)
}

// Paused reports whether admission is suspended.
func (m *Manager) Paused() bool {
	return m.paused.Load()
}

// Stats returns a copy of the running statistics.
func (m *Manager) Stats() domain.RunningStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// OpenPositions returns the number of non-terminal positions (Quoted joint
// with Active).
func (m *Manager) OpenPositions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

// Positions returns copies of all open positions, for status reporting.
func (m *Manager) Positions() []domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Position, 0, len(m.slots))
	for _, p := range m.slots {
		out = append(out, *p)
	}
	return out
}

// Tick drives one evaluation cycle against the current price: quoted
// positions are checked for fill/timeout, active positions for exits, and
// finally a new position may be admitted if a slot is free and the signal
// gate approves. The caller rate-limits ticks.
func (m *Manager) Tick(ctx context.Context, price float64, now time.Time, candles []domain.Candle) {
	p := m.params()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkQuoted(ctx, p, price, now)
	m.checkActive(ctx, p, price, now)
	m.admitAndEvaluateSignal(ctx, p, price, now, candles)
}

// availableSlot applies the admission policy. Slot 0 only requires a free
// slot under the position cap. Slot k>0 additionally requires the occupant of
// slot k-1 to be Active (not merely Quoted) and older than cooldown[k],
// staggering correlated entries.
func (m *Manager) availableSlot(p Params, now time.Time) int {
	if len(m.slots) >= p.MaxPositions {
		return -1
	}
	for k := 0; k < p.MaxPositions; k++ {
		if _, occupied := m.slots[k]; occupied {
			continue
		}
		if k == 0 {
			return 0
		}
		prev, ok := m.slots[k-1]
		if !ok || prev.State != domain.PositionActive {
			return -1
		}
		cooldown := time.Duration(0)
		if k < len(p.SlotCooldowns) {
			cooldown = p.SlotCooldowns[k]
		}
		if now.Sub(prev.EntryAt) < cooldown {
			return -1
		}
		return k
	}
	return -1
}

func (m *Manager) admitAndEvaluateSignal(ctx context.Context, p Params, price float64, now time.Time, candles []domain.Candle) {
	if m.paused.Load() {
		return
	}
	slot := m.availableSlot(p, now)
	if slot < 0 {
		return
	}

	decision, err := m.gate.Evaluate(ctx, candles, p.ConfidenceThreshold)
	if err != nil || !decision.Trade {
		return
	}

	entryPrice := price * (1 - p.MakerOffsetPct)
	qty := p.CapitalPerTrade / entryPrice
	takeProfit := entryPrice * (1 + p.ProfitTargetPct)
	stopLoss := entryPrice * (1 - p.StopLossPct)

	callCtx, cancel := context.WithTimeout(ctx, p.GatewayTimeout)
	orderID, err := m.gateway.PlaceLimitBuy(callCtx, p.Symbol, qty, entryPrice)
	cancel()
	if err != nil {
		// No position was created, so there is nothing to retry; the next
		// qualifying tick gets a fresh attempt.
		m.logger.Error("limit buy failed",
			slog.Int("slot", slot),
			slog.Float64("price", entryPrice),
			slog.String("error", err.Error()),
		)
		return
	}

	pos := &domain.Position{
		Slot:            slot,
		Quantity:        qty,
		EntryLimitPrice: entryPrice,
		TakeProfitPrice: takeProfit,
		StopLossPrice:   stopLoss,
		Confidence:      decision.Confidence,
		CreatedAt:       now,
		TimeoutAt:       now.Add(p.MakerOrderTimeout),
		EntryOrderID:    orderID,
		State:           domain.PositionQuoted,
	}
	m.slots[slot] = pos

	m.logger.Info("position quoted",
		slog.Int("slot", slot),
		slog.Float64("entry", entryPrice),
		slog.Float64("qty", qty),
		slog.Float64("confidence", decision.Confidence),
	)
	m.reporter.OrderEvent(ctx, m.event(domain.EventQuoted, p.Symbol, pos, now))
}

// checkQuoted fills or expires resting entries. A quoted position fills when
// the trade price touches its limit strictly before timeout; past the timeout
// it expires and can never fill afterwards.
func (m *Manager) checkQuoted(ctx context.Context, p Params, price float64, now time.Time) {
	for slot, pos := range m.slots {
		if pos.State != domain.PositionQuoted {
			continue
		}

		if price <= pos.EntryLimitPrice && now.Before(pos.TimeoutAt) {
			callCtx, cancel := context.WithTimeout(ctx, p.GatewayTimeout)
			sellID, err := m.gateway.PlaceLimitSell(callCtx, p.Symbol, pos.Quantity, pos.TakeProfitPrice)
			cancel()
			if err != nil {
				// The entry filled on the exchange either way; activate and
				// fall back to tick-driven exits without a resting TP order.
				m.logger.Error("protective limit sell failed",
					slog.Int("slot", slot),
					slog.String("error", err.Error()),
				)
			}
			pos.State = domain.PositionActive
			pos.EntryAt = now
			pos.ExitAt = now.Add(p.HoldingTime)
			pos.ExitOrderID = sellID

			m.logger.Info("position filled",
				slog.Int("slot", slot),
				slog.Float64("entry", pos.EntryLimitPrice),
				slog.Float64("take_profit", pos.TakeProfitPrice),
			)
			m.reporter.OrderEvent(ctx, m.event(domain.EventFilled, p.Symbol, pos, now))
			continue
		}

		if !now.Before(pos.TimeoutAt) {
			callCtx, cancel := context.WithTimeout(ctx, p.GatewayTimeout)
			if err := m.gateway.Cancel(callCtx, p.Symbol, pos.EntryOrderID); err != nil {
				m.logger.Warn("cancel of expired entry failed",
					slog.Int("slot", slot),
					slog.String("error", err.Error()),
				)
			}
			cancel()

			pos.State = domain.PositionExpired
			delete(m.slots, slot)
			m.stats.UnfilledCount++

			m.logger.Warn("position expired unfilled",
				slog.Int("slot", slot),
				slog.Float64("entry", pos.EntryLimitPrice),
				slog.Float64("confidence", pos.Confidence),
			)
			m.reporter.OrderEvent(ctx, m.event(domain.EventExpired, p.Symbol, pos, now))
			m.reportStats(ctx, p.Symbol, now)
		}
	}
}

// checkActive tests exits in tie-break order: take-profit, stop-loss,
// time-limit. The first satisfied condition determines the close reason. A
// gateway failure leaves the position Active so the next tick retries; an
// active position is never silently dropped.
func (m *Manager) checkActive(ctx context.Context, p Params, price float64, now time.Time) {
	for slot, pos := range m.slots {
		if pos.State != domain.PositionActive {
			continue
		}

		var reason domain.CloseReason
		switch {
		case price >= pos.TakeProfitPrice:
			reason = domain.CloseTakeProfit
		case price <= pos.StopLossPrice:
			reason = domain.CloseStopLoss
		case !now.Before(pos.ExitAt):
			reason = domain.CloseTimeLimit
		default:
			continue
		}

		if err := m.executeClose(ctx, p, pos, reason); err != nil {
			m.logger.Error("close failed, will retry next tick",
				slog.Int("slot", slot),
				slog.String("reason", string(reason)),
				slog.String("error", err.Error()),
			)
			continue
		}
		m.finishClose(ctx, p, slot, pos, price, reason, now)
	}
}

// executeClose unwinds the exchange side of an exit. A take-profit exit means
// the resting protective sell filled, so there is nothing to send; any other
// reason cancels the resting order and market-closes the quantity.
func (m *Manager) executeClose(ctx context.Context, p Params, pos *domain.Position, reason domain.CloseReason) error {
	if reason == domain.CloseTakeProfit {
		return nil
	}

	if pos.ExitOrderID != "" {
		callCtx, cancel := context.WithTimeout(ctx, p.GatewayTimeout)
		err := m.gateway.Cancel(callCtx, p.Symbol, pos.ExitOrderID)
		cancel()
		if err != nil {
			return err
		}
		pos.ExitOrderID = ""
	}

	callCtx, cancel := context.WithTimeout(ctx, p.GatewayTimeout)
	defer cancel()
	return m.gateway.MarketClose(callCtx, p.Symbol, pos.Quantity)
}

// finishClose realizes PnL exactly once, updates statistics, frees the slot,
// and emits the closed event followed by a stats snapshot.
func (m *Manager) finishClose(ctx context.Context, p Params, slot int, pos *domain.Position, exitPrice float64, reason domain.CloseReason, now time.Time) {
	pnl := (exitPrice - pos.EntryLimitPrice) * pos.Quantity
	pos.RealizedPnL = pnl
	pos.State = domain.PositionClosed
	delete(m.slots, slot)

	m.stats.TotalPnL += pnl
	switch {
	case pnl > 0:
		m.stats.Wins++
	case pnl < 0:
		m.stats.Losses++
	default:
		m.stats.Breakevens++
	}

	m.logger.Info("position closed",
		slog.Int("slot", slot),
		slog.String("reason", string(reason)),
		slog.Float64("exit", exitPrice),
		slog.Float64("pnl", pnl),
	)

	ev := m.event(domain.EventClosed, p.Symbol, pos, now)
	ev.ExitPrice = exitPrice
	ev.PnL = pnl
	ev.Reason = reason
	m.reporter.OrderEvent(ctx, ev)
	m.reportStats(ctx, p.Symbol, now)
}

// CloseAll forces every Active position through the Closed transition at the
// current market price, for shutdown or a manual halt. Quoted positions are
// cancelled and expired. Idempotent: already-terminal positions are skipped.
// Unlike tick-driven exits the transition is unconditional; gateway failures
// are logged but do not leave positions behind on shutdown.
func (m *Manager) CloseAll(ctx context.Context, reason domain.CloseReason) {
	p := m.params()

	callCtx, cancel := context.WithTimeout(ctx, p.GatewayTimeout)
	price, err := m.gateway.CurrentPrice(callCtx, p.Symbol)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for slot, pos := range m.slots {
		switch pos.State {
		case domain.PositionQuoted:
			cancelCtx, cancelFn := context.WithTimeout(ctx, p.GatewayTimeout)
			if cErr := m.gateway.Cancel(cancelCtx, p.Symbol, pos.EntryOrderID); cErr != nil {
				m.logger.Warn("cancel during close-all failed", slog.String("error", cErr.Error()))
			}
			cancelFn()
			pos.State = domain.PositionExpired
			delete(m.slots, slot)
			m.stats.UnfilledCount++
			m.reporter.OrderEvent(ctx, m.event(domain.EventExpired, p.Symbol, pos, now))

		case domain.PositionActive:
			if err != nil {
				// Without a price we still must not strand the position: fall
				// back to the entry price (zero PnL) so the exchange side is
				// flattened and the slot freed.
				price = pos.EntryLimitPrice
			}
			if cErr := m.executeClose(ctx, p, pos, reason); cErr != nil {
				m.logger.Error("close-all gateway call failed",
					slog.Int("slot", slot),
					slog.String("error", cErr.Error()),
				)
			}
			m.finishClose(ctx, p, slot, pos, price, reason, now)
		}
	}

	m.logger.Info("all positions closed", slog.String("reason", string(reason)))
}

func (m *Manager) event(kind domain.OrderEventKind, symbol string, pos *domain.Position, now time.Time) domain.OrderEvent {
	return domain.OrderEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		Symbol:     symbol,
		Slot:       pos.Slot,
		OrderID:    pos.EntryOrderID,
		Quantity:   pos.Quantity,
		EntryPrice: pos.EntryLimitPrice,
		TakeProfit: pos.TakeProfitPrice,
		StopLoss:   pos.StopLossPrice,
		Confidence: pos.Confidence,
		At:         now,
	}
}

func (m *Manager) reportStats(ctx context.Context, symbol string, now time.Time) {
	s := m.stats
	m.reporter.Stats(ctx, domain.StatsEvent{
		Symbol:      symbol,
		Wins:        s.Wins,
		Losses:      s.Losses,
		Breakevens:  s.Breakevens,
		Unfilled:    s.UnfilledCount,
		TotalTrades: s.TotalTrades(),
		TotalPnL:    s.TotalPnL,
		WinRate:     s.WinRate(),
		At:          now,
	})
}
