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

// DiscordSink delivers event summaries via a Discord webhook.
type DiscordSink struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSink creates a DiscordSink for the given webhook URL.
func NewDiscordSink(webhookURL string) *DiscordSink {
	return &DiscordSink{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordSink) Name() string { return "discord" }

func (d *DiscordSink) OnOrderEvent(ctx context.Context, ev domain.OrderEvent) error {
	var text string
	switch ev.Kind {
	case domain.EventClosed:
		text = fmt.Sprintf("**Closed** %s slot %d (%s) exit %.6f pnl %+.4f",
			ev.Symbol, ev.Slot, ev.Reason, ev.ExitPrice, ev.PnL)
	default:
		text = fmt.Sprintf("**%s** %s slot %d entry %.6f qty %.6f",
			ev.Kind, ev.Symbol, ev.Slot, ev.EntryPrice, ev.Quantity)
	}
	return d.send(ctx, text)
}

func (d *DiscordSink) OnStats(ctx context.Context, stats domain.StatsEvent) error {
	text := fmt.Sprintf("**Stats** %s: %d trades, pnl %+.4f, win rate %.1f%%",
		stats.Symbol, stats.TotalTrades, stats.TotalPnL, stats.WinRate)
	return d.send(ctx, text)
}

func (d *DiscordSink) OnStatus(ctx context.Context, text string) error {
	return d.send(ctx, text)
}

func (d *DiscordSink) OnError(ctx context.Context, kind, message string) error {
	return d.send(ctx, fmt.Sprintf("**Error** (%s) %s", kind, message))
}

func (d *DiscordSink) send(ctx context.Context, content string) error {
	payload := map[string]string{"content": content}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	// Discord returns 204 No Content on success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

var _ domain.Sink = (*DiscordSink)(nil)
