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

// TelegramSink delivers event summaries via the Telegram Bot API.
type TelegramSink struct {
	token  string
	chatID string
	client *http.Client
}

// NewTelegramSink creates a TelegramSink for the given bot token and chat ID.
// It uses a default HTTP client with a 10-second timeout.
func NewTelegramSink(token, chatID string) *TelegramSink {
	return &TelegramSink{
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramSink) Name() string { return "telegram" }

func (t *TelegramSink) OnOrderEvent(ctx context.Context, ev domain.OrderEvent) error {
	var text string
	switch ev.Kind {
	case domain.EventQuoted:
		text = fmt.Sprintf("*Quoted* %s slot %d\nentry %.6f qty %.6f conf %.2f",
			ev.Symbol, ev.Slot, ev.EntryPrice, ev.Quantity, ev.Confidence)
	case domain.EventFilled:
		text = fmt.Sprintf("*Filled* %s slot %d\nentry %.6f tp %.6f sl %.6f",
			ev.Symbol, ev.Slot, ev.EntryPrice, ev.TakeProfit, ev.StopLoss)
	case domain.EventExpired:
		text = fmt.Sprintf("*Expired unfilled* %s slot %d\nentry %.6f conf %.2f",
			ev.Symbol, ev.Slot, ev.EntryPrice, ev.Confidence)
	case domain.EventClosed:
		text = fmt.Sprintf("*Closed* %s slot %d (%s)\nexit %.6f pnl %+.4f",
			ev.Symbol, ev.Slot, ev.Reason, ev.ExitPrice, ev.PnL)
	default:
		text = fmt.Sprintf("*%s* %s slot %d", ev.Kind, ev.Symbol, ev.Slot)
	}
	return t.send(ctx, text)
}

func (t *TelegramSink) OnStats(ctx context.Context, stats domain.StatsEvent) error {
	text := fmt.Sprintf("*Session stats* %s\ntrades %d (W %d / L %d / B %d), unfilled %d\npnl %+.4f, win rate %.1f%%",
		stats.Symbol, stats.TotalTrades, stats.Wins, stats.Losses, stats.Breakevens,
		stats.Unfilled, stats.TotalPnL, stats.WinRate)
	return t.send(ctx, text)
}

func (t *TelegramSink) OnStatus(ctx context.Context, text string) error {
	return t.send(ctx, text)
}

func (t *TelegramSink) OnError(ctx context.Context, kind, message string) error {
	return t.send(ctx, fmt.Sprintf("*Error* (%s)\n%s", kind, message))
}

func (t *TelegramSink) send(ctx context.Context, text string) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)

	payload := map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

var _ domain.Sink = (*TelegramSink)(nil)
