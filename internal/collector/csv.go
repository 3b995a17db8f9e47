package collector

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/alanyoungcy/scalpbot/internal/domain"
)

// csvHeader is the column layout of the per-second data files.
var csvHeader = []string{
	"timestamp", "datetime", "open", "high", "low", "close",
	"buy_volume", "sell_volume", "buy_count", "sell_count",
	"best_bid", "bid_qty", "best_ask", "ask_qty",
	"spread", "imbalance", "funding_rate",
}

// RotateFunc is called with the path of a just-closed daily file.
type RotateFunc func(path string)

// CSVWriter appends records to one CSV file per UTC day, named
// <symbol>_<yyyymmdd>.csv. When the day changes the old file is closed and
// handed to the rotate hook for archiving.
type CSVWriter struct {
	dir      string
	symbol   string
	onRotate RotateFunc
	logger   *slog.Logger

	mu   sync.Mutex
	day  string
	file *os.File
	w    *csv.Writer
}

// NewCSVWriter creates a CSVWriter rooted at dir. onRotate may be nil.
func NewCSVWriter(dir, symbol string, onRotate RotateFunc, logger *slog.Logger) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("collector: create data dir: %w", err)
	}
	return &CSVWriter{
		dir:      dir,
		symbol:   symbol,
		onRotate: onRotate,
		logger:   logger.With(slog.String("component", "csv_writer")),
	}, nil
}

// WriteRows appends rows, rotating files on UTC day boundaries. The day is
// derived from each row's bucket second, not the wall clock, so replays land
// in the right file.
func (c *CSVWriter) WriteRows(ctx context.Context, rows []domain.MarketRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, rec := range rows {
		day := time.Unix(rec.BucketSecond, 0).UTC().Format("20060102")
		if err := c.ensureFile(day); err != nil {
			return err
		}
		if err := c.w.Write(recordToRow(rec)); err != nil {
			return fmt.Errorf("collector: write csv row: %w", err)
		}
	}

	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("collector: flush csv: %w", err)
	}
	return nil
}

// Close flushes and closes the current file without archiving it.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return nil
	}
	c.w.Flush()
	err := c.file.Close()
	c.file = nil
	c.w = nil
	return err
}

func (c *CSVWriter) ensureFile(day string) error {
	if c.file != nil && c.day == day {
		return nil
	}

	if c.file != nil {
		c.w.Flush()
		closed := c.file.Name()
		if err := c.file.Close(); err != nil {
			c.logger.Warn("close rotated file failed", slog.String("error", err.Error()))
		}
		c.file = nil
		if c.onRotate != nil {
			c.onRotate(closed)
		}
	}

	path := filepath.Join(c.dir, fmt.Sprintf("%s_%s.csv", c.symbol, day))
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("collector: open %s: %w", path, err)
	}

	c.file = file
	c.w = csv.NewWriter(file)
	c.day = day

	if fresh {
		if err := c.w.Write(csvHeader); err != nil {
			return fmt.Errorf("collector: write csv header: %w", err)
		}
	}
	return nil
}

func recordToRow(rec domain.MarketRecord) []string {
	ts := time.Unix(rec.BucketSecond, 0).UTC()
	return []string{
		strconv.FormatInt(rec.BucketSecond, 10),
		ts.Format("2006-01-02 15:04:05"),
		formatFloat(rec.Open),
		formatFloat(rec.High),
		formatFloat(rec.Low),
		formatFloat(rec.Close),
		formatFloat(rec.BuyVolume),
		formatFloat(rec.SellVolume),
		strconv.Itoa(rec.BuyCount),
		strconv.Itoa(rec.SellCount),
		formatFloat(rec.BestBid),
		formatFloat(rec.BidQty),
		formatFloat(rec.BestAsk),
		formatFloat(rec.AskQty),
		formatFloat(rec.Spread),
		formatFloat(rec.Imbalance),
		formatFloat(rec.FundingRate),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
