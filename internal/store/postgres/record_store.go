package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/scalpbot/internal/domain"
)

// RecordStore implements domain.RecordStore using PostgreSQL.
type RecordStore struct {
	pool *pgxpool.Pool
}

// NewRecordStore creates a RecordStore backed by the given connection pool.
func NewRecordStore(pool *pgxpool.Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

// InsertBatch inserts per-second rows using a pgx batch. Duplicate seconds
// (same symbol, same bucket) are skipped so a flush retried after a partial
// failure stays safe.
func (s *RecordStore) InsertBatch(ctx context.Context, rows []domain.MarketRecord) error {
	if len(rows) == 0 {
		return nil
	}

	const query = `
		INSERT INTO market_records (
			symbol, bucket_second, open, high, low, close,
			buy_volume, sell_volume, buy_count, sell_count,
			best_bid, bid_qty, best_ask, ask_qty,
			spread, imbalance, funding_rate
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17
		) ON CONFLICT (symbol, bucket_second) DO NOTHING`

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(query,
			r.Symbol, r.BucketSecond, r.Open, r.High, r.Low, r.Close,
			r.BuyVolume, r.SellVolume, r.BuyCount, r.SellCount,
			r.BestBid, r.BidQty, r.BestAsk, r.AskQty,
			r.Spread, r.Imbalance, r.FundingRate,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert record batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListRange returns records for a symbol within [from, to] bucket seconds,
// oldest first.
func (s *RecordStore) ListRange(ctx context.Context, symbol string, from, to int64) ([]domain.MarketRecord, error) {
	const query = `
		SELECT symbol, bucket_second, open, high, low, close,
			buy_volume, sell_volume, buy_count, sell_count,
			best_bid, bid_qty, best_ask, ask_qty,
			spread, imbalance, funding_rate
		FROM market_records
		WHERE symbol = $1 AND bucket_second BETWEEN $2 AND $3
		ORDER BY bucket_second ASC`

	rows, err := s.pool.Query(ctx, query, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: list records: %w", err)
	}
	defer rows.Close()

	var out []domain.MarketRecord
	for rows.Next() {
		var r domain.MarketRecord
		if err := rows.Scan(
			&r.Symbol, &r.BucketSecond, &r.Open, &r.High, &r.Low, &r.Close,
			&r.BuyVolume, &r.SellVolume, &r.BuyCount, &r.SellCount,
			&r.BestBid, &r.BidQty, &r.BestAsk, &r.AskQty,
			&r.Spread, &r.Imbalance, &r.FundingRate,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

var _ domain.RecordStore = (*RecordStore)(nil)
