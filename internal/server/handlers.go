package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/scalpbot/internal/domain"
	"github.com/alanyoungcy/scalpbot/internal/feed"
)

// EventLister serves the recent-events endpoint; nil disables it.
type EventLister interface {
	ListRecentEvents(ctx context.Context, symbol string, limit int) ([]domain.OrderEvent, error)
}

// StatusHandler aggregates the live components behind the admin endpoints.
type StatusHandler struct {
	symbol     string
	mode       string
	startedAt  time.Time
	controller Controller
	feed       FeedStatus
	events     EventLister
	logger     *slog.Logger
}

// NewStatusHandler creates a StatusHandler. controller and events may be nil
// in collect-only mode; the corresponding endpoints then degrade gracefully.
func NewStatusHandler(symbol, mode string, controller Controller, fs FeedStatus, events EventLister, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		symbol:     symbol,
		mode:       mode,
		startedAt:  time.Now(),
		controller: controller,
		feed:       fs,
		events:     events,
		logger:     logger.With(slog.String("component", "admin_handler")),
	}
}

type statusResponse struct {
	Symbol        string              `json:"symbol"`
	Mode          string              `json:"mode"`
	UptimeSeconds int64               `json:"uptime_seconds"`
	Paused        bool                `json:"paused"`
	Feed          feed.Status         `json:"feed"`
	OpenPositions []positionView      `json:"open_positions"`
	Stats         domain.RunningStats `json:"stats"`
}

type positionView struct {
	Slot       int     `json:"slot"`
	State      string  `json:"state"`
	EntryPrice float64 `json:"entry_price"`
	Quantity   float64 `json:"quantity"`
	TakeProfit float64 `json:"take_profit"`
	StopLoss   float64 `json:"stop_loss"`
	Confidence float64 `json:"confidence"`
}

// Health is the liveness probe.
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Status reports the full runtime picture: feed state, open slots, stats.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Symbol:        h.symbol,
		Mode:          h.mode,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	}
	if h.feed != nil {
		resp.Feed = h.feed.Status()
	}
	if h.controller != nil {
		resp.Paused = h.controller.Paused()
		resp.Stats = h.controller.Stats()
		for _, p := range h.controller.Positions() {
			resp.OpenPositions = append(resp.OpenPositions, positionView{
				Slot:       p.Slot,
				State:      string(p.State),
				EntryPrice: p.EntryLimitPrice,
				Quantity:   p.Quantity,
				TakeProfit: p.TakeProfitPrice,
				StopLoss:   p.StopLossPrice,
				Confidence: p.Confidence,
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Pause suspends new position admission; open positions keep being managed.
func (h *StatusHandler) Pause(w http.ResponseWriter, r *http.Request) {
	if h.controller == nil {
		writeError(w, http.StatusConflict, "trading is not enabled in this mode")
		return
	}
	h.controller.SetPaused(true)
	h.logger.Info("trading paused via admin api")
	writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

// Resume restores position admission.
func (h *StatusHandler) Resume(w http.ResponseWriter, r *http.Request) {
	if h.controller == nil {
		writeError(w, http.StatusConflict, "trading is not enabled in this mode")
		return
	}
	h.controller.SetPaused(false)
	h.logger.Info("trading resumed via admin api")
	writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

// CloseAll force-closes every open position at market and suspends
// admission until a resume.
func (h *StatusHandler) CloseAll(w http.ResponseWriter, r *http.Request) {
	if h.controller == nil {
		writeError(w, http.StatusConflict, "trading is not enabled in this mode")
		return
	}
	open := len(h.controller.Positions())
	h.controller.SetPaused(true)
	h.controller.CloseAll(r.Context(), domain.CloseManual)
	h.logger.Info("positions closed via admin api", slog.Int("open", open))
	writeJSON(w, http.StatusOK, map[string]any{"closed": open, "paused": true})
}

// RecentEvents returns the latest persisted lifecycle events.
func (h *StatusHandler) RecentEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeError(w, http.StatusNotFound, "event history is not enabled")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be in 1..500")
			return
		}
		limit = n
	}

	events, err := h.events.ListRecentEvents(r.Context(), h.symbol, limit)
	if err != nil {
		h.logger.Error("list events failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "event lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
