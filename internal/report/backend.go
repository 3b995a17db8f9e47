package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alanyoungcy/scalpbot/internal/domain"
)

// BackendSink posts events as JSON to an external dashboard API. Order events
// go to /orders, stats snapshots to /stats, everything else is dropped.
type BackendSink struct {
	baseURL string
	apiKey  string
	botID   int
	client  *http.Client
}

// NewBackendSink creates a BackendSink. baseURL should not end with a slash.
func NewBackendSink(baseURL, apiKey string) *BackendSink {
	return &BackendSink{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// WithBotID tags every posted payload with the given bot identifier so one
// backend can aggregate several bot instances.
func (b *BackendSink) WithBotID(id int) *BackendSink {
	b.botID = id
	return b
}

func (b *BackendSink) Name() string { return "backend" }

func (b *BackendSink) OnOrderEvent(ctx context.Context, ev domain.OrderEvent) error {
	return b.post(ctx, "/orders", ev)
}

func (b *BackendSink) OnStats(ctx context.Context, stats domain.StatsEvent) error {
	return b.post(ctx, "/stats", stats)
}

// OnStatus and OnError are not persisted by the backend.
func (b *BackendSink) OnStatus(ctx context.Context, text string) error { return nil }

func (b *BackendSink) OnError(ctx context.Context, kind, message string) error { return nil }

// envelope is the backend wire format: the event itself plus the bot
// identity, so a shared backend can tell instances apart.
type envelope struct {
	BotID int `json:"bot_id,omitempty"`
	Data  any `json:"data"`
}

func (b *BackendSink) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(envelope{BotID: b.botID, Data: payload})
	if err != nil {
		return fmt.Errorf("backend: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("backend: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("backend: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

var _ domain.Sink = (*BackendSink)(nil)
