package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/scalpbot/internal/domain"
	"github.com/alanyoungcy/scalpbot/internal/gate"
)

type fakeGateway struct {
	buys        int
	sells       int
	cancels     int
	closes      int
	buyErr      error
	sellErr     error
	cancelErr   error
	closeErr    error
	price       float64
	priceErr    error
	canceledIDs []string
}

func (g *fakeGateway) PlaceLimitBuy(ctx context.Context, symbol string, qty, price float64) (string, error) {
	if g.buyErr != nil {
		return "", g.buyErr
	}
	g.buys++
	return "buy-1", nil
}

func (g *fakeGateway) PlaceLimitSell(ctx context.Context, symbol string, qty, price float64) (string, error) {
	if g.sellErr != nil {
		return "", g.sellErr
	}
	g.sells++
	return "sell-1", nil
}

func (g *fakeGateway) Cancel(ctx context.Context, symbol, orderID string) error {
	if g.cancelErr != nil {
		return g.cancelErr
	}
	g.cancels++
	g.canceledIDs = append(g.canceledIDs, orderID)
	return nil
}

func (g *fakeGateway) MarketClose(ctx context.Context, symbol string, qty float64) error {
	if g.closeErr != nil {
		return g.closeErr
	}
	g.closes++
	return nil
}

func (g *fakeGateway) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if g.priceErr != nil {
		return 0, g.priceErr
	}
	return g.price, nil
}

type fakeGate struct {
	decision gate.Decision
	err      error
	calls    int
}

func (g *fakeGate) Evaluate(ctx context.Context, candles []domain.Candle, threshold float64) (gate.Decision, error) {
	g.calls++
	return g.decision, g.err
}

type captureReporter struct {
	events []domain.OrderEvent
	stats  []domain.StatsEvent
}

func (r *captureReporter) OrderEvent(ctx context.Context, ev domain.OrderEvent) {
	r.events = append(r.events, ev)
}

func (r *captureReporter) Stats(ctx context.Context, s domain.StatsEvent) {
	r.stats = append(r.stats, s)
}

func (r *captureReporter) lastKind() domain.OrderEventKind {
	if len(r.events) == 0 {
		return ""
	}
	return r.events[len(r.events)-1].Kind
}

func testParams() Params {
	return Params{
		Symbol:              "BTCUSDT",
		MaxPositions:        2,
		CapitalPerTrade:     200,
		MakerOffsetPct:      0.00001,
		ProfitTargetPct:     0.00015,
		StopLossPct:         0.009,
		ConfidenceThreshold: 0.40,
		MakerOrderTimeout:   60 * time.Second,
		HoldingTime:         2000 * time.Second,
		GatewayTimeout:      5 * time.Second,
		SlotCooldowns:       []time.Duration{0, 300 * time.Second},
	}
}

func newTestManager(p Params, gw *fakeGateway, fg *fakeGate, rep *captureReporter) *Manager {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(func() Params { return p }, gw, fg, rep, logger)
}

func trendCandles(n int) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		out[i] = domain.Candle{
			BucketSecond: int64(i),
			Open:         100, High: 101, Low: 99, Close: 100.5,
			BuyVolume: 2, SellVolume: 1, BuyCount: 3, SellCount: 2,
		}
	}
	return out
}

func TestTickAdmitsIntoSlotZero(t *testing.T) {
	gw := &fakeGateway{}
	fg := &fakeGate{decision: gate.Decision{Trade: true, Confidence: 0.7}}
	rep := &captureReporter{}
	m := newTestManager(testParams(), gw, fg, rep)

	now := time.Now()
	m.Tick(context.Background(), 50_000, now, trendCandles(60))

	if gw.buys != 1 {
		t.Fatalf("limit buys: got %d want 1", gw.buys)
	}
	if m.OpenPositions() != 1 {
		t.Fatalf("open positions: got %d want 1", m.OpenPositions())
	}
	pos := m.Positions()[0]
	if pos.Slot != 0 || pos.State != domain.PositionQuoted {
		t.Fatalf("position slot=%d state=%s, want slot 0 quoted", pos.Slot, pos.State)
	}
	wantEntry := 50_000 * (1 - 0.00001)
	if pos.EntryLimitPrice != wantEntry {
		t.Fatalf("entry: got %v want %v", pos.EntryLimitPrice, wantEntry)
	}
	if rep.lastKind() != domain.EventQuoted {
		t.Fatalf("last event: got %s want quoted", rep.lastKind())
	}
	if rep.events[0].ID == "" {
		t.Fatalf("expected event id")
	}
}

func TestTickSkipsAdmissionWhenGateDenies(t *testing.T) {
	gw := &fakeGateway{}
	fg := &fakeGate{decision: gate.Decision{Trade: false, Confidence: 0.2}}
	rep := &captureReporter{}
	m := newTestManager(testParams(), gw, fg, rep)

	m.Tick(context.Background(), 50_000, time.Now(), trendCandles(60))

	if gw.buys != 0 || m.OpenPositions() != 0 {
		t.Fatalf("no position should open on a denied signal")
	}
	if fg.calls != 1 {
		t.Fatalf("gate calls: got %d want 1", fg.calls)
	}
}

func TestGateNotConsultedWithoutFreeSlot(t *testing.T) {
	p := testParams()
	p.MaxPositions = 1
	gw := &fakeGateway{}
	fg := &fakeGate{decision: gate.Decision{Trade: true, Confidence: 0.9}}
	rep := &captureReporter{}
	m := newTestManager(p, gw, fg, rep)

	now := time.Now()
	m.Tick(context.Background(), 50_000, now, trendCandles(60))
	// Position cap reached; the gate must not run again.
	m.Tick(context.Background(), 50_000, now.Add(2*time.Second), trendCandles(60))

	if fg.calls != 1 {
		t.Fatalf("gate calls: got %d want 1", fg.calls)
	}
}

func TestSlotCooldownStaggersSecondEntry(t *testing.T) {
	gw := &fakeGateway{}
	fg := &fakeGate{decision: gate.Decision{Trade: true, Confidence: 0.9}}
	rep := &captureReporter{}
	m := newTestManager(testParams(), gw, fg, rep)

	start := time.Now()
	m.Tick(context.Background(), 50_000, start, trendCandles(60))

	// Fill slot 0 so the predecessor is Active. The price stays inside the
	// stop-loss/take-profit band so the position survives later ticks.
	fillAt := start.Add(2 * time.Second)
	m.Tick(context.Background(), 49_900, fillAt, trendCandles(60))
	if gw.sells != 1 {
		t.Fatalf("protective sell: got %d want 1", gw.sells)
	}

	// Predecessor Active but younger than the slot-1 cooldown.
	buysBefore := gw.buys
	m.Tick(context.Background(), 49_900, fillAt.Add(200*time.Second), trendCandles(60))
	if gw.buys != buysBefore {
		t.Fatalf("slot 1 admitted before cooldown elapsed")
	}

	// Cooldown elapsed.
	m.Tick(context.Background(), 49_900, fillAt.Add(301*time.Second), trendCandles(60))
	if gw.buys != buysBefore+1 {
		t.Fatalf("slot 1 not admitted after cooldown: buys=%d", gw.buys)
	}
	var found bool
	for _, pos := range m.Positions() {
		if pos.Slot == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a position in slot 1")
	}
}

func TestSlotOneDeniedWhilePredecessorQuoted(t *testing.T) {
	gw := &fakeGateway{}
	fg := &fakeGate{decision: gate.Decision{Trade: true, Confidence: 0.9}}
	rep := &captureReporter{}
	m := newTestManager(testParams(), gw, fg, rep)

	start := time.Now()
	// Slot 0 quoted, never fills (price stays above the limit).
	m.Tick(context.Background(), 50_000, start, trendCandles(60))
	m.Tick(context.Background(), 50_100, start.Add(10*time.Minute), trendCandles(60))

	// Slot 0 expired and was freed; the next admission reuses slot 0, so
	// slot 1 stays empty throughout.
	for _, pos := range m.Positions() {
		if pos.Slot == 1 {
			t.Fatalf("slot 1 must not be admitted while slot 0 never went active")
		}
	}
}

func TestQuotedFillsOnPriceTouch(t *testing.T) {
	gw := &fakeGateway{}
	fg := &fakeGate{decision: gate.Decision{Trade: true, Confidence: 0.8}}
	rep := &captureReporter{}
	m := newTestManager(testParams(), gw, fg, rep)

	start := time.Now()
	m.Tick(context.Background(), 50_000, start, trendCandles(60))
	pos := m.Positions()[0]

	m.Tick(context.Background(), pos.EntryLimitPrice, start.Add(5*time.Second), nil)

	got := m.Positions()[0]
	if got.State != domain.PositionActive {
		t.Fatalf("state: got %s want active", got.State)
	}
	if got.EntryAt.IsZero() || got.ExitAt.IsZero() {
		t.Fatalf("entry/exit timestamps not set on fill")
	}
	if got.ExitOrderID != "sell-1" {
		t.Fatalf("exit order id: got %q want sell-1", got.ExitOrderID)
	}
	if gw.sells != 1 {
		t.Fatalf("protective sell: got %d want 1", gw.sells)
	}
	if rep.lastKind() != domain.EventFilled {
		t.Fatalf("last event: got %s want filled", rep.lastKind())
	}
}

func TestQuotedExpiresAfterTimeout(t *testing.T) {
	gw := &fakeGateway{}
	fg := &fakeGate{decision: gate.Decision{Trade: true, Confidence: 0.8}}
	rep := &captureReporter{}
	m := newTestManager(testParams(), gw, fg, rep)

	start := time.Now()
	m.Tick(context.Background(), 50_000, start, trendCandles(60))
	limit := m.Positions()[0].EntryLimitPrice

	// Price touches the limit only after the timeout: must expire, not fill.
	m.Tick(context.Background(), limit, start.Add(61*time.Second), nil)

	if gw.cancels != 1 {
		t.Fatalf("cancels: got %d want 1", gw.cancels)
	}
	if gw.sells != 0 {
		t.Fatalf("an expired entry must not place a protective sell")
	}
	if m.OpenPositions() != 1 {
		// The freed slot was immediately re-admitted on the same tick.
		t.Fatalf("open positions: got %d want 1", m.OpenPositions())
	}
	if m.Stats().UnfilledCount != 1 {
		t.Fatalf("unfilled: got %d want 1", m.Stats().UnfilledCount)
	}
	var sawExpired bool
	for _, ev := range rep.events {
		if ev.Kind == domain.EventExpired {
			sawExpired = true
		}
	}
	if !sawExpired {
		t.Fatalf("expected an expired event")
	}
	if len(rep.stats) == 0 {
		t.Fatalf("expected a stats snapshot after a terminal transition")
	}
}

func fillOne(t *testing.T, m *Manager, start time.Time) domain.Position {
	t.Helper()
	m.Tick(context.Background(), 50_000, start, trendCandles(60))
	limit := m.Positions()[0].EntryLimitPrice
	m.Tick(context.Background(), limit, start.Add(2*time.Second), nil)
	pos := m.Positions()[0]
	if pos.State != domain.PositionActive {
		t.Fatalf("setup: position not active")
	}
	return pos
}

func TestTakeProfitExit(t *testing.T) {
	gw := &fakeGateway{}
	fg := &fakeGate{decision: gate.Decision{Trade: false}}
	rep := &captureReporter{}
	m := newTestManager(testParams(), gw, fg, rep)

	fg.decision = gate.Decision{Trade: true, Confidence: 0.8}
	start := time.Now()
	pos := fillOne(t, m, start)
	fg.decision = gate.Decision{Trade: false}

	m.Tick(context.Background(), pos.TakeProfitPrice, start.Add(10*time.Second), nil)

	if m.OpenPositions() != 0 {
		t.Fatalf("slot not freed after take-profit")
	}
	// The resting protective sell filled on the exchange; no extra calls.
	if gw.closes != 0 || gw.cancels != 0 {
		t.Fatalf("take-profit must not cancel or market-close, got closes=%d cancels=%d", gw.closes, gw.cancels)
	}
	s := m.Stats()
	if s.Wins != 1 || s.Losses != 0 {
		t.Fatalf("stats: wins=%d losses=%d, want 1 win", s.Wins, s.Losses)
	}
	wantPnL := (pos.TakeProfitPrice - pos.EntryLimitPrice) * pos.Quantity
	if diff := s.TotalPnL - wantPnL; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("pnl: got %v want %v", s.TotalPnL, wantPnL)
	}
	last := rep.events[len(rep.events)-1]
	if last.Kind != domain.EventClosed || last.Reason != domain.CloseTakeProfit {
		t.Fatalf("closed event: kind=%s reason=%s", last.Kind, last.Reason)
	}
}

func TestStopLossExitCancelsAndMarketCloses(t *testing.T) {
	gw := &fakeGateway{}
	fg := &fakeGate{decision: gate.Decision{Trade: true, Confidence: 0.8}}
	rep := &captureReporter{}
	m := newTestManager(testParams(), gw, fg, rep)

	start := time.Now()
	pos := fillOne(t, m, start)
	fg.decision = gate.Decision{Trade: false}

	m.Tick(context.Background(), pos.StopLossPrice, start.Add(10*time.Second), nil)

	if m.OpenPositions() != 0 {
		t.Fatalf("slot not freed after stop-loss")
	}
	if gw.cancels != 1 || gw.closes != 1 {
		t.Fatalf("stop-loss must cancel the resting sell then market-close, got cancels=%d closes=%d", gw.cancels, gw.closes)
	}
	if gw.canceledIDs[0] != "sell-1" {
		t.Fatalf("canceled order: got %q want sell-1", gw.canceledIDs[0])
	}
	s := m.Stats()
	if s.Losses != 1 {
		t.Fatalf("losses: got %d want 1", s.Losses)
	}
	if s.TotalPnL >= 0 {
		t.Fatalf("stop-loss pnl must be negative, got %v", s.TotalPnL)
	}
	last := rep.events[len(rep.events)-1]
	if last.Reason != domain.CloseStopLoss {
		t.Fatalf("reason: got %s want stop_loss", last.Reason)
	}
}

func TestTimeLimitExit(t *testing.T) {
	gw := &fakeGateway{}
	fg := &fakeGate{decision: gate.Decision{Trade: true, Confidence: 0.8}}
	rep := &captureReporter{}
	m := newTestManager(testParams(), gw, fg, rep)

	start := time.Now()
	pos := fillOne(t, m, start)
	fg.decision = gate.Decision{Trade: false}

	// Price between SL and TP, holding period over.
	mid := (pos.TakeProfitPrice + pos.StopLossPrice) / 2
	m.Tick(context.Background(), mid, start.Add(2100*time.Second), nil)

	if m.OpenPositions() != 0 {
		t.Fatalf("slot not freed after time-limit exit")
	}
	if gw.cancels != 1 || gw.closes != 1 {
		t.Fatalf("time-limit must unwind like a stop, got cancels=%d closes=%d", gw.cancels, gw.closes)
	}
	last := rep.events[len(rep.events)-1]
	if last.Reason != domain.CloseTimeLimit {
		t.Fatalf("reason: got %s want time_limit", last.Reason)
	}
}

func TestTakeProfitWinsTieBreakOverTimeLimit(t *testing.T) {
	gw := &fakeGateway{}
	fg := &fakeGate{decision: gate.Decision{Trade: true, Confidence: 0.8}}
	rep := &captureReporter{}
	m := newTestManager(testParams(), gw, fg, rep)

	start := time.Now()
	pos := fillOne(t, m, start)
	fg.decision = gate.Decision{Trade: false}

	// Both take-profit and time-limit hold on the same tick.
	m.Tick(context.Background(), pos.TakeProfitPrice, start.Add(2100*time.Second), nil)

	last := rep.events[len(rep.events)-1]
	if last.Reason != domain.CloseTakeProfit {
		t.Fatalf("tie-break: got %s want take_profit", last.Reason)
	}
	if gw.closes != 0 {
		t.Fatalf("take-profit path must not market-close")
	}
}

func TestCloseFailureRetriedNextTick(t *testing.T) {
	gw := &fakeGateway{}
	fg := &fakeGate{decision: gate.Decision{Trade: true, Confidence: 0.8}}
	rep := &captureReporter{}
	m := newTestManager(testParams(), gw, fg, rep)

	start := time.Now()
	pos := fillOne(t, m, start)
	fg.decision = gate.Decision{Trade: false}

	gw.closeErr = errors.New("binance: order rejected")
	m.Tick(context.Background(), pos.StopLossPrice, start.Add(10*time.Second), nil)

	if m.OpenPositions() != 1 {
		t.Fatalf("position must stay active after a failed close")
	}
	if m.Stats().Losses != 0 {
		t.Fatalf("stats must not record a close that did not happen")
	}

	gw.closeErr = nil
	m.Tick(context.Background(), pos.StopLossPrice, start.Add(12*time.Second), nil)

	if m.OpenPositions() != 0 {
		t.Fatalf("close not retried on the next tick")
	}
	if m.Stats().Losses != 1 {
		t.Fatalf("losses: got %d want 1 after exactly one realized close", m.Stats().Losses)
	}
}

func TestCloseAllFlattensEverything(t *testing.T) {
	gw := &fakeGateway{price: 50_100}
	fg := &fakeGate{decision: gate.Decision{Trade: true, Confidence: 0.9}}
	rep := &captureReporter{}
	m := newTestManager(testParams(), gw, fg, rep)

	start := time.Now()
	// Slot 0 active, slot 1 quoted.
	m.Tick(context.Background(), 50_000, start, trendCandles(60))
	limit := m.Positions()[0].EntryLimitPrice
	m.Tick(context.Background(), limit, start.Add(2*time.Second), trendCandles(60))
	m.Tick(context.Background(), limit, start.Add(302*time.Second), trendCandles(60))
	if m.OpenPositions() != 2 {
		t.Fatalf("setup: got %d open positions, want 2", m.OpenPositions())
	}

	m.CloseAll(context.Background(), domain.CloseShutdown)

	if m.OpenPositions() != 0 {
		t.Fatalf("close-all left %d positions open", m.OpenPositions())
	}
	s := m.Stats()
	if s.TotalTrades() != 1 || s.UnfilledCount != 1 {
		t.Fatalf("stats: trades=%d unfilled=%d, want 1 and 1", s.TotalTrades(), s.UnfilledCount)
	}

	// Second call is a no-op.
	events := len(rep.events)
	m.CloseAll(context.Background(), domain.CloseShutdown)
	if len(rep.events) != events {
		t.Fatalf("close-all is not idempotent")
	}
}

func TestPausedManagerStillManagesExits(t *testing.T) {
	gw := &fakeGateway{}
	fg := &fakeGate{decision: gate.Decision{Trade: true, Confidence: 0.8}}
	rep := &captureReporter{}
	m := newTestManager(testParams(), gw, fg, rep)

	start := time.Now()
	pos := fillOne(t, m, start)

	m.SetPaused(true)
	m.Tick(context.Background(), pos.TakeProfitPrice, start.Add(10*time.Second), trendCandles(60))

	if m.OpenPositions() != 0 {
		t.Fatalf("pause must not block exits")
	}
	if gw.buys != 1 {
		t.Fatalf("paused manager admitted a new position")
	}

	m.SetPaused(false)
	m.Tick(context.Background(), 50_000, start.Add(12*time.Second), trendCandles(60))
	if gw.buys != 2 {
		t.Fatalf("resume did not restore admission")
	}
}

func TestCloseAllWithoutPriceFallsBackToEntry(t *testing.T) {
	gw := &fakeGateway{priceErr: errors.New("binance: ticker unavailable")}
	fg := &fakeGate{decision: gate.Decision{Trade: true, Confidence: 0.9}}
	rep := &captureReporter{}
	m := newTestManager(testParams(), gw, fg, rep)

	start := time.Now()
	fillOne(t, m, start)

	m.CloseAll(context.Background(), domain.CloseShutdown)

	if m.OpenPositions() != 0 {
		t.Fatalf("close-all must flatten even without a current price")
	}
	if pnl := m.Stats().TotalPnL; pnl != 0 {
		t.Fatalf("fallback close pnl: got %v want 0", pnl)
	}
	if m.Stats().Breakevens != 1 {
		t.Fatalf("breakevens: got %d want 1", m.Stats().Breakevens)
	}
}
