package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/scalpbot/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates an EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// InsertOrderEvent persists one lifecycle event. Redelivery of the same event
// ID is a no-op.
func (s *EventStore) InsertOrderEvent(ctx context.Context, ev domain.OrderEvent) error {
	const query = `
		INSERT INTO order_events (
			id, kind, symbol, slot, order_id, quantity,
			entry_price, take_profit, stop_loss, confidence,
			exit_price, pnl, reason, occurred_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14
		) ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		ev.ID, string(ev.Kind), ev.Symbol, ev.Slot, ev.OrderID, ev.Quantity,
		ev.EntryPrice, ev.TakeProfit, ev.StopLoss, ev.Confidence,
		ev.ExitPrice, ev.PnL, string(ev.Reason), ev.At,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert order event %s: %w", ev.ID, err)
	}
	return nil
}

// InsertStats persists one statistics snapshot.
func (s *EventStore) InsertStats(ctx context.Context, stats domain.StatsEvent) error {
	const query = `
		INSERT INTO stats_snapshots (
			symbol, wins, losses, breakevens, unfilled,
			total_trades, total_pnl, win_rate, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		stats.Symbol, stats.Wins, stats.Losses, stats.Breakevens, stats.Unfilled,
		stats.TotalTrades, stats.TotalPnL, stats.WinRate, stats.At,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert stats snapshot: %w", err)
	}
	return nil
}

// ListRecentEvents returns the latest lifecycle events for a symbol, newest
// first.
func (s *EventStore) ListRecentEvents(ctx context.Context, symbol string, limit int) ([]domain.OrderEvent, error) {
	const query = `
		SELECT id, kind, symbol, slot, order_id, quantity,
			entry_price, take_profit, stop_loss, confidence,
			exit_price, pnl, reason, occurred_at
		FROM order_events
		WHERE symbol = $1
		ORDER BY occurred_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list order events: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderEvent
	for rows.Next() {
		var ev domain.OrderEvent
		var kind, reason string
		if err := rows.Scan(
			&ev.ID, &kind, &ev.Symbol, &ev.Slot, &ev.OrderID, &ev.Quantity,
			&ev.EntryPrice, &ev.TakeProfit, &ev.StopLoss, &ev.Confidence,
			&ev.ExitPrice, &ev.PnL, &reason, &ev.At,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan order event: %w", err)
		}
		ev.Kind = domain.OrderEventKind(kind)
		ev.Reason = domain.CloseReason(reason)
		out = append(out, ev)
	}
	return out, rows.Err()
}

var _ domain.EventStore = (*EventStore)(nil)
