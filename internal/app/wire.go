package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/scalpbot/internal/blob/s3"
	"github.com/alanyoungcy/scalpbot/internal/cache/redis"
	"github.com/alanyoungcy/scalpbot/internal/config"
	"github.com/alanyoungcy/scalpbot/internal/domain"
	"github.com/alanyoungcy/scalpbot/internal/exchange/binance"
	"github.com/alanyoungcy/scalpbot/internal/predictor"
	"github.com/alanyoungcy/scalpbot/internal/report"
	"github.com/alanyoungcy/scalpbot/internal/server"
	"github.com/alanyoungcy/scalpbot/internal/store/postgres"
)

// EventsChannel is the Redis pub/sub channel order events and stats are
// published on for external dashboards.
const EventsChannel = "scalpbot:events"

// Dependencies bundles every dependency the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	RecordStore domain.RecordStore
	EventStore  domain.EventStore
	EventLister server.EventLister

	// Caches
	PriceCache domain.PriceCache
	CommandBus domain.CommandBus

	// Blob storage
	BlobWriter domain.BlobWriter

	// Exchange
	Exchange *binance.Client
	Gateway  domain.ExecutionGateway
	Dialer   *binance.StreamDialer

	// Model
	Predictor domain.Predictor

	// Reporting
	Reporter *report.Fanout

	// Hot-reloadable configuration. Nil when refresh is disabled.
	Refresher *config.Refresher
}

// needsPostgres returns true for modes that persist records or events.
func needsPostgres(mode string) bool {
	switch mode {
	case "trade", "collect", "full":
		return true
	default:
		return false
	}
}

// needsModel returns true for modes that evaluate the signal gate.
func needsModel(mode string) bool {
	switch mode {
	case "trade", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	if needsPostgres(cfg.Mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.RecordStore = postgres.NewRecordStore(pool)
		events := postgres.NewEventStore(pool)
		deps.EventStore = events
		deps.EventLister = events
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.CommandBus = redis.NewCommandBus(redisClient)
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	// --- Binance ---
	deps.Exchange = binance.NewClient(
		cfg.Binance.RestHost,
		cfg.Binance.ApiKey,
		cfg.Binance.SecretKey,
	).WithRecvWindow(cfg.Binance.RecvWindow)
	deps.Gateway = binance.NewGateway(deps.Exchange)
	deps.Dialer = binance.NewStreamDialer(cfg.Binance.WsHost)

	// --- Model ---
	if needsModel(cfg.Mode) {
		onnx, err := predictor.NewONNX(cfg.Model.Path, cfg.Model.LibraryPath)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: predictor: %w", err)
		}
		closers = append(closers, onnx.Close)
		deps.Predictor = onnx
	}

	// --- Reporting ---
	sinks := []domain.Sink{report.NewLogSink(logger)}
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		sinks = append(sinks, report.NewTelegramSink(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		sinks = append(sinks, report.NewDiscordSink(cfg.Notify.DiscordWebhookURL))
	}
	if cfg.Notify.BackendURL != "" {
		sinks = append(sinks, report.NewBackendSink(cfg.Notify.BackendURL, cfg.Notify.BackendKey).
			WithBotID(cfg.Notify.BotID))
	}
	if deps.EventStore != nil {
		sinks = append(sinks, report.NewStoreSink(deps.EventStore))
	}
	if deps.CommandBus != nil {
		sinks = append(sinks, report.NewPubSubSink(deps.CommandBus, EventsChannel))
	}
	deps.Reporter = report.NewFanout(sinks, logger).WithEvents(cfg.Notify.Events)

	// --- Config refresher ---
	if cfg.Refresh.Enabled && cfg.ConfigPath != "" {
		deps.Refresher = config.NewRefresher(
			config.FileProvider{Path: cfg.ConfigPath},
			cfg,
			cfg.Refresh.Interval.Duration,
			logger,
		)
	}

	return deps, cleanup, nil
}
