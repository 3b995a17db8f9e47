package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/scalpbot/internal/domain"
)

// CommandBus implements domain.CommandBus using Redis Pub/Sub. The admin
// loop subscribes to the control channel for pause/resume/status commands;
// sinks publish event JSON for out-of-process dashboards.
type CommandBus struct {
	rdb *redis.Client
}

// NewCommandBus creates a CommandBus backed by the given Client.
func NewCommandBus(c *Client) *CommandBus {
	return &CommandBus{rdb: c.Underlying()}
}

// Publish sends a raw payload to a Pub/Sub channel.
func (b *CommandBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns a channel of raw payloads from a Pub/Sub channel. The
// subscription closes, along with the returned channel, when the context is
// cancelled.
func (b *CommandBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := b.rdb.Subscribe(ctx, channel)

	// Wait for the subscription confirmation before handing out the channel.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

var _ domain.CommandBus = (*CommandBus)(nil)
