package report

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alanyoungcy/scalpbot/internal/domain"
)

type countingSink struct {
	name   string
	orders int
	stats  int
	status int
	errsIn int
	fail   error
	panics bool
}

func (s *countingSink) Name() string { return s.name }

func (s *countingSink) OnOrderEvent(ctx context.Context, ev domain.OrderEvent) error {
	if s.panics {
		panic("sink exploded")
	}
	s.orders++
	return s.fail
}

func (s *countingSink) OnStats(ctx context.Context, stats domain.StatsEvent) error {
	s.stats++
	return s.fail
}

func (s *countingSink) OnStatus(ctx context.Context, text string) error {
	s.status++
	return s.fail
}

func (s *countingSink) OnError(ctx context.Context, kind, message string) error {
	s.errsIn++
	return s.fail
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFanoutDeliversToAllSinks(t *testing.T) {
	a := &countingSink{name: "a"}
	b := &countingSink{name: "b"}
	f := NewFanout([]domain.Sink{a, b}, discardLogger())

	ctx := context.Background()
	f.OrderEvent(ctx, domain.OrderEvent{Kind: domain.EventQuoted})
	f.Stats(ctx, domain.StatsEvent{})
	f.Status(ctx, "up")
	f.Error(ctx, "ws", "gone")

	for _, s := range []*countingSink{a, b} {
		if s.orders != 1 || s.stats != 1 || s.status != 1 || s.errsIn != 1 {
			t.Fatalf("sink %s: orders=%d stats=%d status=%d errors=%d, want 1 each",
				s.name, s.orders, s.stats, s.status, s.errsIn)
		}
	}
}

func TestFanoutIsolatesFailingSink(t *testing.T) {
	bad := &countingSink{name: "bad", fail: errors.New("backend: unexpected status 500")}
	good := &countingSink{name: "good"}
	f := NewFanout([]domain.Sink{bad, good}, discardLogger())

	f.OrderEvent(context.Background(), domain.OrderEvent{Kind: domain.EventFilled})

	if good.orders != 1 {
		t.Fatalf("failing sink blocked delivery to the next sink")
	}
}

func TestFanoutRecoversPanickingSink(t *testing.T) {
	bad := &countingSink{name: "bad", panics: true}
	good := &countingSink{name: "good"}
	f := NewFanout([]domain.Sink{bad, good}, discardLogger())

	f.OrderEvent(context.Background(), domain.OrderEvent{Kind: domain.EventClosed})

	if good.orders != 1 {
		t.Fatalf("panicking sink blocked delivery to the next sink")
	}
}

func TestFanoutFiltersDisallowedEventKinds(t *testing.T) {
	s := &countingSink{name: "s"}
	f := NewFanout([]domain.Sink{s}, discardLogger()).WithEvents([]string{"closed"})

	ctx := context.Background()
	f.OrderEvent(ctx, domain.OrderEvent{Kind: domain.EventQuoted})
	f.OrderEvent(ctx, domain.OrderEvent{Kind: domain.EventClosed})
	f.Error(ctx, "ws", "gone")
	f.Stats(ctx, domain.StatsEvent{})

	if s.orders != 1 {
		t.Fatalf("orders = %d, want 1 (only closed allowed)", s.orders)
	}
	if s.errsIn != 0 {
		t.Fatalf("error events should be filtered when not listed")
	}
	if s.stats != 1 {
		t.Fatalf("stats must never be filtered")
	}
}

func TestFanoutWithNoSinksIsNoop(t *testing.T) {
	f := NewFanout(nil, discardLogger())
	f.OrderEvent(context.Background(), domain.OrderEvent{})
	f.Stats(context.Background(), domain.StatsEvent{})
}
