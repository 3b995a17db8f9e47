package report

import (
	"context"

	"github.com/alanyoungcy/scalpbot/internal/domain"
)

// StoreSink persists order events and stats snapshots to the event store.
type StoreSink struct {
	store domain.EventStore
}

// NewStoreSink creates a StoreSink over the given event store.
func NewStoreSink(store domain.EventStore) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) OnOrderEvent(ctx context.Context, ev domain.OrderEvent) error {
	return s.store.InsertOrderEvent(ctx, ev)
}

func (s *StoreSink) OnStats(ctx context.Context, stats domain.StatsEvent) error {
	return s.store.InsertStats(ctx, stats)
}

// Status lines and transient errors are not persisted.
func (s *StoreSink) OnStatus(ctx context.Context, text string) error { return nil }

func (s *StoreSink) OnError(ctx context.Context, kind, message string) error { return nil }

var _ domain.Sink = (*StoreSink)(nil)
