// Package server exposes the admin surface: a small HTTP API for health,
// status, and pause/resume, plus a Redis command loop for the same controls.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/scalpbot/internal/domain"
	"github.com/alanyoungcy/scalpbot/internal/feed"
)

// Controller is the slice of the lifecycle manager the admin surface needs.
type Controller interface {
	SetPaused(paused bool)
	Paused() bool
	Stats() domain.RunningStats
	Positions() []domain.Position
	CloseAll(ctx context.Context, reason domain.CloseReason)
}

// FeedStatus reports the connection supervisor's current state.
type FeedStatus interface {
	Status() feed.Status
}

// Config holds the HTTP server configuration.
type Config struct {
	Port   int
	APIKey string // empty disables authentication
}

// Server is the admin HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all admin routes and wires the middleware chain.
func NewServer(cfg Config, h *StatusHandler, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /api/status", h.Status)
	mux.HandleFunc("POST /api/pause", h.Pause)
	mux.HandleFunc("POST /api/resume", h.Resume)
	mux.HandleFunc("POST /api/close-all", h.CloseAll)
	mux.HandleFunc("GET /api/events", h.RecentEvents)

	var handler http.Handler = mux
	handler = auth(cfg.APIKey)(handler)
	handler = logging(logger)(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger.With(slog.String("component", "server")),
	}
}

// Start blocks serving requests until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("admin server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("admin server shutting down")
	return s.httpServer.Shutdown(ctx)
}
