package config

import (
	"context"
	"log/slog"
	"reflect"
	"sync/atomic"
	"time"
)

// Provider supplies an immutable configuration snapshot on demand.
type Provider interface {
	Fetch(ctx context.Context) (*Config, error)
}

// FileProvider re-reads a TOML file on every fetch. A read failure is
// returned to the caller; the refresher keeps the previous snapshot.
type FileProvider struct {
	Path string
}

// Fetch loads and validates the config file.
func (p FileProvider) Fetch(ctx context.Context) (*Config, error) {
	cfg, err := Load(p.Path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Refresher polls a Provider on a fixed interval and swaps the active
// configuration snapshot atomically. Readers call Snapshot once per tick and
// use the returned value for the whole evaluation, so they can never observe
// partially-updated fields.
type Refresher struct {
	provider Provider
	interval time.Duration
	current  atomic.Pointer[Config]
	logger   *slog.Logger
}

// NewRefresher creates a Refresher seeded with initial.
func NewRefresher(provider Provider, initial *Config, interval time.Duration, logger *slog.Logger) *Refresher {
	r := &Refresher{
		provider: provider,
		interval: interval,
		logger:   logger.With(slog.String("component", "config_refresher")),
	}
	r.current.Store(initial)
	return r
}

// Snapshot returns the current configuration. The returned pointer must be
// treated as read-only.
func (r *Refresher) Snapshot() *Config {
	return r.current.Load()
}

// Run polls the provider until ctx is cancelled. A fetch failure keeps the
// previous snapshot and is logged, never fatal.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("config refresher started", slog.Duration("interval", r.interval))
	defer r.logger.Info("config refresher stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			next, err := r.provider.Fetch(ctx)
			if err != nil {
				r.logger.Warn("config refresh failed, keeping previous snapshot",
					slog.String("error", err.Error()),
				)
				continue
			}
			if reflect.DeepEqual(next, r.current.Load()) {
				continue
			}
			r.current.Store(next)
			r.logger.Info("configuration reloaded")
		}
	}
}
