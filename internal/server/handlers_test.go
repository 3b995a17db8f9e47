package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alanyoungcy/scalpbot/internal/domain"
	"github.com/alanyoungcy/scalpbot/internal/feed"
)

type fakeController struct {
	paused      bool
	stats       domain.RunningStats
	positions   []domain.Position
	closeReason domain.CloseReason
}

func (c *fakeController) SetPaused(p bool)             { c.paused = p }
func (c *fakeController) Paused() bool                 { return c.paused }
func (c *fakeController) Stats() domain.RunningStats   { return c.stats }
func (c *fakeController) Positions() []domain.Position { return c.positions }

func (c *fakeController) CloseAll(ctx context.Context, reason domain.CloseReason) {
	c.closeReason = reason
	c.positions = nil
}

type fakeFeed struct{ status feed.Status }

func (f *fakeFeed) Status() feed.Status { return f.status }

func newTestServer(t *testing.T, apiKey string, ctrl Controller) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewStatusHandler("BTCUSDT", "trade", ctrl, &fakeFeed{status: feed.Status{State: "streaming"}}, nil, logger)
	srv := NewServer(Config{Port: 0, APIKey: apiKey}, h, logger)
	return httptest.NewServer(srv.httpServer.Handler)
}

func TestHealthzBypassesAuth(t *testing.T) {
	ts := newTestServer(t, "sekrit", &fakeController{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status: got %d", resp.StatusCode)
	}
}

func TestStatusRequiresAuth(t *testing.T) {
	ts := newTestServer(t, "sekrit", &fakeController{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status: got %d want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	req.Header.Set("X-API-Key", "sekrit")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get with key: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated status: got %d want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"state":"streaming"`) {
		t.Fatalf("status body missing feed state: %s", body)
	}
}

func TestPauseAndResumeToggleController(t *testing.T) {
	ctrl := &fakeController{}
	ts := newTestServer(t, "", ctrl)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/pause", "application/json", nil)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !ctrl.paused {
		t.Fatalf("pause: status %d paused %v", resp.StatusCode, ctrl.paused)
	}

	resp, err = http.Post(ts.URL+"/api/resume", "application/json", nil)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || ctrl.paused {
		t.Fatalf("resume: status %d paused %v", resp.StatusCode, ctrl.paused)
	}
}

func TestCloseAllPausesAndDrainsPositions(t *testing.T) {
	ctrl := &fakeController{positions: []domain.Position{
		{Slot: 0, State: domain.PositionActive},
		{Slot: 1, State: domain.PositionQuoted},
	}}
	ts := newTestServer(t, "", ctrl)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/close-all", "application/json", nil)
	if err != nil {
		t.Fatalf("close-all: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("close-all status: got %d want 200", resp.StatusCode)
	}
	if !ctrl.paused {
		t.Fatal("close-all did not pause admission")
	}
	if ctrl.closeReason != domain.CloseManual {
		t.Fatalf("close reason: got %q want %q", ctrl.closeReason, domain.CloseManual)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"closed":2`) {
		t.Fatalf("close-all body: %s", body)
	}
}

func TestPauseWithoutControllerConflicts(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewStatusHandler("BTCUSDT", "collect", nil, nil, nil, logger)
	srv := NewServer(Config{}, h, logger)
	ts := httptest.NewServer(srv.httpServer.Handler)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/pause", "application/json", nil)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("pause in collect mode: got %d want 409", resp.StatusCode)
	}
}
