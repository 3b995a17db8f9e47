package report

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/scalpbot/internal/domain"
)

// LogSink writes every event to the structured log. It is always registered
// so there is a durable record even when all other sinks are disabled.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink on the given logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With(slog.String("component", "report_log"))}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) OnOrderEvent(ctx context.Context, ev domain.OrderEvent) error {
	s.logger.InfoContext(ctx, "order event",
		slog.String("id", ev.ID),
		slog.String("kind", string(ev.Kind)),
		slog.String("symbol", ev.Symbol),
		slog.Int("slot", ev.Slot),
		slog.Float64("entry", ev.EntryPrice),
		slog.Float64("qty", ev.Quantity),
		slog.Float64("confidence", ev.Confidence),
		slog.Float64("pnl", ev.PnL),
		slog.String("reason", string(ev.Reason)),
	)
	return nil
}

func (s *LogSink) OnStats(ctx context.Context, stats domain.StatsEvent) error {
	s.logger.InfoContext(ctx, "session stats",
		slog.String("symbol", stats.Symbol),
		slog.Int("wins", stats.Wins),
		slog.Int("losses", stats.Losses),
		slog.Int("breakevens", stats.Breakevens),
		slog.Int("unfilled", stats.Unfilled),
		slog.Float64("total_pnl", stats.TotalPnL),
		slog.Float64("win_rate", stats.WinRate),
	)
	return nil
}

func (s *LogSink) OnStatus(ctx context.Context, text string) error {
	s.logger.InfoContext(ctx, "status", slog.String("text", text))
	return nil
}

func (s *LogSink) OnError(ctx context.Context, kind, message string) error {
	s.logger.ErrorContext(ctx, "reported error",
		slog.String("kind", kind),
		slog.String("message", message),
	)
	return nil
}

var _ domain.Sink = (*LogSink)(nil)
