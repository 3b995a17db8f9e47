package collector

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alanyoungcy/scalpbot/internal/domain"
)

// Archiver uploads rotated daily CSV files to object storage under
// raw/<symbol>/<filename>. Uploads run in the background so a slow upload
// never stalls the recorder.
type Archiver struct {
	blob   domain.BlobWriter
	symbol string
	delay  time.Duration
	logger *slog.Logger
}

// NewArchiver creates an Archiver. delay is a grace period between rotation
// and upload so late flushes into the closed file still make the upload.
func NewArchiver(blob domain.BlobWriter, symbol string, delay time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		blob:   blob,
		symbol: symbol,
		delay:  delay,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// OnRotate is the CSVWriter rotate hook.
func (a *Archiver) OnRotate(path string) {
	go func() {
		if a.delay > 0 {
			time.Sleep(a.delay)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := a.Archive(ctx, path); err != nil {
			a.logger.Error("archive failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Archive uploads one file and logs the destination key. The local file is
// kept; cleanup is an operator concern.
func (a *Archiver) Archive(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("collector: read %s: %w", path, err)
	}

	key := fmt.Sprintf("raw/%s/%s", a.symbol, filepath.Base(path))
	if err := a.blob.Put(ctx, key, data, "text/csv"); err != nil {
		return err
	}

	a.logger.Info("daily file archived",
		slog.String("path", path),
		slog.String("key", key),
		slog.Int("bytes", len(data)),
	)
	return nil
}
