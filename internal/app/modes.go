package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/scalpbot/internal/collector"
	"github.com/alanyoungcy/scalpbot/internal/config"
	"github.com/alanyoungcy/scalpbot/internal/domain"
	"github.com/alanyoungcy/scalpbot/internal/exchange/binance"
	"github.com/alanyoungcy/scalpbot/internal/feed"
	"github.com/alanyoungcy/scalpbot/internal/gate"
	"github.com/alanyoungcy/scalpbot/internal/lifecycle"
	"github.com/alanyoungcy/scalpbot/internal/server"
)

// imbalanceLevels is how many top-of-book levels per side go into the recorded
// depth imbalance ratio.
const imbalanceLevels = 5

// closeAllTimeout bounds the forced liquidation pass on shutdown.
const closeAllTimeout = 15 * time.Second

// TradeMode runs the full trading loop: market feed, signal gate, and order
// lifecycle, plus the admin surfaces. Market records are not persisted.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")
	return a.run(ctx, deps, true, false)
}

// CollectMode runs the market feed and the record pipeline only. No model is
// loaded and no orders are placed.
func (a *App) CollectMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting collect mode")
	return a.run(ctx, deps, false, true)
}

// FullMode runs trading and collection side by side on the same feed.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	return a.run(ctx, deps, true, true)
}

// run assembles the mode from its two switches: whether the lifecycle manager
// trades the feed, and whether the collector records it.
func (a *App) run(ctx context.Context, deps *Dependencies, trading, collecting bool) error {
	g, ctx := errgroup.WithContext(ctx)

	// Config refresher, when enabled. Readers pull Snapshot once per tick.
	if deps.Refresher != nil {
		g.Go(func() error {
			return deps.Refresher.Run(ctx)
		})
	}

	snapshot := func() *config.Config {
		if deps.Refresher != nil {
			return deps.Refresher.Snapshot()
		}
		return a.cfg
	}

	var manager *lifecycle.Manager
	if trading {
		sg := gate.New(deps.Predictor, a.logger)
		params := func() lifecycle.Params {
			t := snapshot().Trading
			return lifecycle.Params{
				Symbol:              t.Symbol,
				MaxPositions:        t.MaxPositions,
				CapitalPerTrade:     t.CapitalPerTrade,
				MakerOffsetPct:      t.MakerOffsetPct,
				ProfitTargetPct:     t.ProfitTargetPct,
				StopLossPct:         t.StopLossPct,
				ConfidenceThreshold: t.ConfidenceThreshold,
				MakerOrderTimeout:   t.MakerOrderTimeout.Duration,
				HoldingTime:         t.HoldingTime.Duration,
				GatewayTimeout:      t.GatewayTimeout.Duration,
				SlotCooldowns:       t.Cooldowns(),
			}
		}
		manager = lifecycle.NewManager(params, deps.Gateway, sg, deps.Reporter, a.logger)
	}

	var observers []feed.RecordObserver
	if collecting && a.cfg.Collector.Enabled {
		recorder, err := a.buildCollector(deps)
		if err != nil {
			return err
		}
		observers = append(observers, recorder)
		g.Go(func() error {
			return recorder.Run(ctx)
		})
	}

	// The dialer returns a concrete *binance.StreamConn; wrap it so the feed
	// only sees its Session interface.
	dial := func(ctx context.Context, streams []string) (feed.Session, error) {
		return deps.Dialer.Dial(ctx, streams)
	}

	var ticker feed.Ticker
	if manager != nil {
		ticker = manager
	}
	supervisor := feed.NewSupervisor(
		feed.Config{
			Symbol:          a.cfg.Trading.Symbol,
			Streams:         binance.StreamNames(a.cfg.Trading.Symbol),
			SnapshotLimit:   a.cfg.Binance.DepthLimit,
			TickInterval:    a.cfg.Trading.TickInterval.Duration,
			ImbalanceLevels: imbalanceLevels,
		},
		dial,
		deps.Exchange,
		ticker,
		observers,
		deps.PriceCache,
		deps.Reporter,
		a.logger,
	)
	g.Go(func() error {
		return supervisor.Run(ctx)
	})

	// Admin surfaces. The controller is nil in collect mode; pause and resume
	// then answer 409.
	var controller server.Controller
	if manager != nil {
		controller = manager
	}
	if a.cfg.Server.Enabled {
		a.startAdminServer(ctx, g, deps, controller, supervisor)
	}
	if deps.CommandBus != nil {
		loop := server.NewCommandLoop(deps.CommandBus, controller, supervisor, a.logger)
		g.Go(func() error {
			return loop.Run(ctx)
		})
	}

	err := g.Wait()

	// Flatten every open position before the process exits. The parent context
	// is already cancelled, so use a fresh deadline.
	if manager != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), closeAllTimeout)
		defer cancel()
		manager.CloseAll(shutCtx, domain.CloseShutdown)
	}

	return err
}

// buildCollector assembles the record pipeline: a batching recorder feeding
// the CSV writer and, when Postgres is wired, the record store. Rotated CSV
// files are archived to S3 when blob storage is enabled.
func (a *App) buildCollector(deps *Dependencies) (*collector.Recorder, error) {
	var writers []collector.Writer

	var onRotate collector.RotateFunc
	if deps.BlobWriter != nil {
		archiver := collector.NewArchiver(deps.BlobWriter, a.cfg.Trading.Symbol, a.cfg.Collector.ArchiveAfter.Duration, a.logger)
		onRotate = archiver.OnRotate
	}

	csvWriter, err := collector.NewCSVWriter(a.cfg.Collector.Dir, a.cfg.Trading.Symbol, onRotate, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = csvWriter.Close() })
	writers = append(writers, csvWriter)

	if deps.RecordStore != nil {
		writers = append(writers, collector.NewStoreWriter(deps.RecordStore))
	}

	return collector.NewRecorder(
		writers,
		a.cfg.Collector.BatchSize,
		a.cfg.Collector.FlushInterval.Duration,
		a.logger,
	), nil
}

// startAdminServer adds the HTTP server goroutines to the errgroup and shuts
// the listener down when the context is cancelled.
func (a *App) startAdminServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	controller server.Controller,
	fs server.FeedStatus,
) {
	h := server.NewStatusHandler(
		a.cfg.Trading.Symbol,
		a.cfg.Mode,
		controller,
		fs,
		deps.EventLister,
		a.logger,
	)
	srv := server.NewServer(server.Config{
		Port:   a.cfg.Server.Port,
		APIKey: a.cfg.Server.APIKey,
	}, h, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			a.logger.Warn("admin server shutdown", slog.String("error", err.Error()))
		}
		return nil
	})
}
