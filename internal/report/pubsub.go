package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/scalpbot/internal/domain"
)

// PubSubSink publishes events as JSON on a command bus channel so external
// dashboards can subscribe without polling the database.
type PubSubSink struct {
	bus     domain.CommandBus
	channel string
}

// NewPubSubSink creates a PubSubSink that publishes on the given channel.
func NewPubSubSink(bus domain.CommandBus, channel string) *PubSubSink {
	return &PubSubSink{bus: bus, channel: channel}
}

func (p *PubSubSink) Name() string { return "pubsub" }

func (p *PubSubSink) OnOrderEvent(ctx context.Context, ev domain.OrderEvent) error {
	return p.publish(ctx, "order", ev)
}

func (p *PubSubSink) OnStats(ctx context.Context, stats domain.StatsEvent) error {
	return p.publish(ctx, "stats", stats)
}

func (p *PubSubSink) OnStatus(ctx context.Context, text string) error {
	return p.publish(ctx, "status", map[string]string{"text": text})
}

func (p *PubSubSink) OnError(ctx context.Context, kind, message string) error {
	return p.publish(ctx, "error", map[string]string{"kind": kind, "message": message})
}

func (p *PubSubSink) publish(ctx context.Context, kind string, payload any) error {
	msg, err := json.Marshal(map[string]any{"type": kind, "payload": payload})
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %w", kind, err)
	}
	if err := p.bus.Publish(ctx, p.channel, msg); err != nil {
		return fmt.Errorf("pubsub: publish %s: %w", kind, err)
	}
	return nil
}

var _ domain.Sink = (*PubSubSink)(nil)
