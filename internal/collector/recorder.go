// Package collector persists the per-second market records: buffered batch
// writes to CSV and PostgreSQL, with rotated daily files archived to object
// storage.
package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/scalpbot/internal/domain"
)

// Writer receives flushed batches of records.
type Writer interface {
	WriteRows(ctx context.Context, rows []domain.MarketRecord) error
}

// storeWriter adapts a domain.RecordStore to the Writer interface.
type storeWriter struct {
	store domain.RecordStore
}

func (w storeWriter) WriteRows(ctx context.Context, rows []domain.MarketRecord) error {
	return w.store.InsertBatch(ctx, rows)
}

// NewStoreWriter wraps a record store as a batch writer.
func NewStoreWriter(store domain.RecordStore) Writer {
	return storeWriter{store: store}
}

// Recorder buffers records and flushes them to every writer when the buffer
// reaches batchSize or flushInterval elapses, whichever comes first. Writer
// failures are logged per writer; one slow or broken destination never loses
// rows for the others.
type Recorder struct {
	writers       []Writer
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger

	mu  sync.Mutex
	buf []domain.MarketRecord
}

// NewRecorder creates a Recorder over the given writers.
func NewRecorder(writers []Writer, batchSize int, flushInterval time.Duration, logger *slog.Logger) *Recorder {
	if batchSize <= 0 {
		batchSize = 50
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Recorder{
		writers:       writers,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger.With(slog.String("component", "collector")),
		buf:           make([]domain.MarketRecord, 0, batchSize),
	}
}

// OnRecord buffers one record, flushing when the batch is full.
func (r *Recorder) OnRecord(ctx context.Context, rec domain.MarketRecord) {
	r.mu.Lock()
	r.buf = append(r.buf, rec)
	full := len(r.buf) >= r.batchSize
	r.mu.Unlock()

	if full {
		r.Flush(ctx)
	}
}

// Run flushes on the interval until the context is cancelled, then performs
// one final flush so shutdown never drops buffered rows.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Flush(context.Background())
			return ctx.Err()
		case <-ticker.C:
			r.Flush(ctx)
		}
	}
}

// Flush writes all buffered rows to every writer.
func (r *Recorder) Flush(ctx context.Context) {
	r.mu.Lock()
	if len(r.buf) == 0 {
		r.mu.Unlock()
		return
	}
	rows := r.buf
	r.buf = make([]domain.MarketRecord, 0, r.batchSize)
	r.mu.Unlock()

	for _, w := range r.writers {
		if err := w.WriteRows(ctx, rows); err != nil {
			r.logger.Error("record flush failed",
				slog.Int("rows", len(rows)),
				slog.String("error", err.Error()),
			)
		}
	}
}
