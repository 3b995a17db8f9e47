// Package report fans lifecycle and status events out to registered sinks
// (log, Telegram, Discord, backend API, event store). Delivery is best-effort:
// a failing or panicking sink is logged and skipped, and never disturbs the
// other sinks or the trading core.
package report

import (
	"context"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/scalpbot/internal/domain"
)

// Fanout dispatches each event to every registered sink in order.
type Fanout struct {
	sinks  []domain.Sink
	events map[string]bool // allowed event kinds; empty allows everything
	logger *slog.Logger
}

// NewFanout creates a Fanout over the given sinks. A nil or empty sink list is
// valid; events are then dropped silently.
func NewFanout(sinks []domain.Sink, logger *slog.Logger) *Fanout {
	return &Fanout{
		sinks:  sinks,
		logger: logger.With(slog.String("component", "report")),
	}
}

// WithEvents restricts delivery to the listed event kinds ("quoted", "filled",
// "expired", "closed", "error"). Stats and status lines are never filtered. An
// empty list leaves everything allowed.
func (f *Fanout) WithEvents(events []string) *Fanout {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	f.events = allowed
	return f
}

func (f *Fanout) allowed(kind string) bool {
	return len(f.events) == 0 || f.events[kind]
}

// OrderEvent delivers a lifecycle event to all sinks.
func (f *Fanout) OrderEvent(ctx context.Context, ev domain.OrderEvent) {
	if !f.allowed(string(ev.Kind)) {
		return
	}
	f.each(ctx, "order_event", func(s domain.Sink) error {
		return s.OnOrderEvent(ctx, ev)
	})
}

// Stats delivers a statistics snapshot to all sinks.
func (f *Fanout) Stats(ctx context.Context, stats domain.StatsEvent) {
	f.each(ctx, "stats", func(s domain.Sink) error {
		return s.OnStats(ctx, stats)
	})
}

// Status delivers a free-form status line to all sinks.
func (f *Fanout) Status(ctx context.Context, text string) {
	f.each(ctx, "status", func(s domain.Sink) error {
		return s.OnStatus(ctx, text)
	})
}

// Error delivers an operational error notice to all sinks.
func (f *Fanout) Error(ctx context.Context, kind, message string) {
	if !f.allowed("error") {
		return
	}
	f.each(ctx, "error", func(s domain.Sink) error {
		return s.OnError(ctx, kind, message)
	})
}

func (f *Fanout) each(ctx context.Context, what string, deliver func(domain.Sink) error) {
	for _, s := range f.sinks {
		f.deliverOne(ctx, what, s, deliver)
	}
}

// deliverOne isolates a single sink call: an error is logged, a panic is
// recovered and logged. One broken sink must not take down the rest.
func (f *Fanout) deliverOne(ctx context.Context, what string, s domain.Sink, deliver func(domain.Sink) error) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.ErrorContext(ctx, "sink panicked",
				slog.String("sink", s.Name()),
				slog.String("event", what),
				slog.Any("panic", r),
			)
		}
	}()

	if err := deliver(s); err != nil {
		f.logger.WarnContext(ctx, "sink delivery failed",
			slog.String("sink", s.Name()),
			slog.String("event", what),
			slog.String("error", err.Error()),
		)
	}
}
