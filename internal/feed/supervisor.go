// Package feed owns the exchange connection lifecycle: dial, snapshot, apply
// the push stream, and drive the trading tick. A session dies on any read or
// resync error; the supervisor flushes in-flight aggregation state,
// invalidates the book, and reconnects with exponential backoff.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/scalpbot/internal/domain"
	"github.com/alanyoungcy/scalpbot/internal/market"
)

// Session is one live stream connection.
type Session interface {
	Read() ([]byte, error)
	Close() error
}

// DialFunc opens a new stream session for the given stream names.
type DialFunc func(ctx context.Context, streams []string) (Session, error)

// Ticker receives the rate-limited evaluation tick.
type Ticker interface {
	Tick(ctx context.Context, price float64, now time.Time, candles []domain.Candle)
}

// RecordObserver receives one market record per frozen candle.
type RecordObserver interface {
	OnRecord(ctx context.Context, rec domain.MarketRecord)
}

// ErrorReporter receives operational errors for the notification fan-out.
type ErrorReporter interface {
	Error(ctx context.Context, kind, message string)
}

// Config holds the supervisor's tunables.
type Config struct {
	Symbol          string
	Streams         []string
	SnapshotLimit   int
	TickInterval    time.Duration
	ImbalanceLevels int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
}

// Status is a point-in-time view for the admin surface.
type Status struct {
	State       string  `json:"state"` // disconnected | snapshotting | streaming
	BookState   string  `json:"book_state"`
	WindowLen   int     `json:"window_len"`
	LastPrice   float64 `json:"last_price"`
	FundingRate float64 `json:"funding_rate"`
	Reconnects  int64   `json:"reconnects"`
	BookGaps    int64   `json:"book_gaps"`
}

// Supervisor runs the market data event loop. The normalizer, book, and
// candle window are owned by the loop goroutine exclusively; only the small
// Status snapshot is shared.
type Supervisor struct {
	cfg       Config
	dial      DialFunc
	snapshots domain.SnapshotFetcher
	norm      *market.Normalizer
	book      *market.BookView
	window    *market.CandleWindow
	ticker    Ticker
	observers []RecordObserver
	prices    domain.PriceCache // optional
	reporter  ErrorReporter
	logger    *slog.Logger
	now       func() time.Time

	lastTick    time.Time
	fundingRate float64

	statusMu   sync.Mutex
	status     Status
	reconnects int64
}

// NewSupervisor creates a Supervisor. ticker, observers, prices, and reporter
// may be nil or empty when the corresponding surface is disabled.
func NewSupervisor(
	cfg Config,
	dial DialFunc,
	snapshots domain.SnapshotFetcher,
	ticker Ticker,
	observers []RecordObserver,
	prices domain.PriceCache,
	reporter ErrorReporter,
	logger *slog.Logger,
) *Supervisor {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 2 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 60 * time.Second
	}
	return &Supervisor{
		cfg:       cfg,
		dial:      dial,
		snapshots: snapshots,
		norm:      market.NewNormalizer(),
		book:      market.NewBookView(),
		window:    market.NewCandleWindow(),
		ticker:    ticker,
		observers: observers,
		prices:    prices,
		reporter:  reporter,
		logger:    logger.With(slog.String("component", "feed_supervisor")),
		now:       time.Now,
	}
}

// Status returns the current status snapshot.
func (s *Supervisor) Status() Status {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.status
}

// Run drives connect/stream/teardown until the context is cancelled. The
// candle window survives reconnects; the book never does.
func (s *Supervisor) Run(ctx context.Context) error {
	backoff := s.cfg.InitialBackoff

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		started := s.now()
		err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.teardown()
		s.logger.Warn("stream session ended",
			slog.String("symbol", s.cfg.Symbol),
			slog.String("error", err.Error()),
			slog.Duration("backoff", backoff),
		)
		if s.reporter != nil {
			s.reporter.Error(ctx, "feed", err.Error())
		}

		// A session that survived a while earns a fresh backoff.
		if s.now().Sub(started) > time.Minute {
			backoff = s.cfg.InitialBackoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > s.cfg.MaxBackoff {
			backoff = s.cfg.MaxBackoff
		}
	}
}

// session runs one dial-snapshot-stream cycle and returns the error that
// ended it.
func (s *Supervisor) session(ctx context.Context) error {
	s.setState("disconnected")

	conn, err := s.dial(ctx, s.cfg.Streams)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblock the read loop when the context is cancelled.
	sessionDone := make(chan struct{})
	defer close(sessionDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-sessionDone:
		}
	}()

	s.setState("snapshotting")
	if err := s.resync(ctx); err != nil {
		return err
	}

	s.setState("streaming")
	s.statusMu.Lock()
	s.reconnects++
	s.statusMu.Unlock()
	s.logger.Info("streaming",
		slog.String("symbol", s.cfg.Symbol),
		slog.Int("streams", len(s.cfg.Streams)),
	)

	for {
		raw, err := conn.Read()
		if err != nil {
			return err
		}
		if err := s.dispatch(ctx, s.norm.Normalize(raw)); err != nil {
			return err
		}
	}
}

// resync seeds the book from a fresh REST snapshot.
func (s *Supervisor) resync(ctx context.Context) error {
	snap, err := s.snapshots.DepthSnapshot(ctx, s.cfg.Symbol, s.cfg.SnapshotLimit)
	if err != nil {
		return err
	}
	s.book.Seed(snap)
	s.logger.Info("book seeded",
		slog.String("symbol", s.cfg.Symbol),
		slog.Int64("last_update_id", snap.LastUpdateID),
	)
	return nil
}

func (s *Supervisor) dispatch(ctx context.Context, ev market.Event) error {
	switch {
	case ev.Trade != nil:
		s.onTrade(ctx, ev.Trade)
	case ev.Depth != nil:
		return s.onDepth(ctx, ev.Depth)
	case ev.MarkPrice != nil:
		s.fundingRate = ev.MarkPrice.FundingRate
	}
	s.refreshStatus()
	return nil
}

func (s *Supervisor) onTrade(ctx context.Context, t *domain.TradeEvent) {
	if frozen := s.window.OnTrade(t.Price, t.Quantity, t.SellerIsMaker, t.EpochMs); frozen != nil {
		s.emitRecord(ctx, *frozen)
	}

	s.statusMu.Lock()
	s.status.LastPrice = t.Price
	s.statusMu.Unlock()

	now := s.now()
	if now.Sub(s.lastTick) < s.cfg.TickInterval {
		return
	}
	s.lastTick = now

	if s.ticker != nil {
		s.ticker.Tick(ctx, t.Price, now, s.window.Snapshot())
	}

	if s.prices != nil {
		if err := s.prices.SetPrice(ctx, s.cfg.Symbol, t.Price, t.Time); err != nil {
			s.logger.Debug("price cache update failed", slog.String("error", err.Error()))
		}
	}
}

// onDepth applies a delta. A sequence gap marks the book stale; the fix is a
// fresh snapshot on the live connection, not a reconnect.
func (s *Supervisor) onDepth(ctx context.Context, d *domain.DepthEvent) error {
	err := s.book.Apply(d)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrBookNotReady):
		return nil
	case errors.Is(err, domain.ErrBookStale):
		s.logger.Warn("sequence gap, resnapshotting",
			slog.String("symbol", s.cfg.Symbol),
			slog.Int64("first_update_id", d.FirstUpdateID),
		)
		return s.resync(ctx)
	default:
		return err
	}
}

// emitRecord decorates a frozen candle with book and funding context and
// hands it to every observer.
func (s *Supervisor) emitRecord(ctx context.Context, c domain.Candle) {
	if len(s.observers) == 0 {
		return
	}

	bestBid, bidQty, bestAsk, askQty := s.book.Best()
	rec := domain.MarketRecord{
		Candle:      c,
		Symbol:      s.cfg.Symbol,
		BestBid:     bestBid,
		BidQty:      bidQty,
		BestAsk:     bestAsk,
		AskQty:      askQty,
		Spread:      bestAsk - bestBid,
		Imbalance:   s.book.Imbalance(s.cfg.ImbalanceLevels),
		FundingRate: s.fundingRate,
	}
	for _, o := range s.observers {
		o.OnRecord(ctx, rec)
	}
}

// teardown flushes the in-progress candle and invalidates the book. The
// completed candle history is kept so the window refills faster after a
// short outage.
func (s *Supervisor) teardown() {
	ctx := context.Background()
	if frozen := s.window.Flush(); frozen != nil {
		s.emitRecord(ctx, *frozen)
	}
	s.book.Invalidate()
	s.setState("disconnected")
	s.refreshStatus()
}

func (s *Supervisor) setState(state string) {
	s.statusMu.Lock()
	s.status.State = state
	s.statusMu.Unlock()
}

func (s *Supervisor) refreshStatus() {
	s.statusMu.Lock()
	s.status.BookState = s.book.State().String()
	s.status.WindowLen = s.window.Len()
	s.status.FundingRate = s.fundingRate
	s.status.Reconnects = s.reconnects
	s.status.BookGaps = s.book.Gaps()
	s.statusMu.Unlock()
}
