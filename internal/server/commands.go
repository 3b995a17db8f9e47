package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/alanyoungcy/scalpbot/internal/domain"
)

// Command channels used on the bus.
const (
	CommandChannel = "scalpbot:commands"
	ReplyChannel   = "scalpbot:replies"
)

// command is the bus control message.
type command struct {
	Command string `json:"command"` // pause | resume | status
}

// CommandLoop mirrors the HTTP pause/resume/status controls over the command
// bus so headless dashboards can drive the bot without network access to the
// admin port.
type CommandLoop struct {
	bus        domain.CommandBus
	controller Controller
	feed       FeedStatus
	logger     *slog.Logger
}

// NewCommandLoop creates a CommandLoop.
func NewCommandLoop(bus domain.CommandBus, controller Controller, fs FeedStatus, logger *slog.Logger) *CommandLoop {
	return &CommandLoop{
		bus:        bus,
		controller: controller,
		feed:       fs,
		logger:     logger.With(slog.String("component", "command_loop")),
	}
}

// Run consumes commands until the context is cancelled.
func (l *CommandLoop) Run(ctx context.Context) error {
	msgs, err := l.bus.Subscribe(ctx, CommandChannel)
	if err != nil {
		return err
	}

	l.logger.Info("command loop listening", slog.String("channel", CommandChannel))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-msgs:
			if !ok {
				return ctx.Err()
			}
			l.handle(ctx, raw)
		}
	}
}

func (l *CommandLoop) handle(ctx context.Context, raw []byte) {
	var cmd command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		l.logger.Warn("unparseable command", slog.String("payload", string(raw)))
		return
	}

	switch cmd.Command {
	case "pause":
		if l.controller != nil {
			l.controller.SetPaused(true)
			l.logger.Info("trading paused via command bus")
		}
		l.reply(ctx, map[string]any{"command": "pause", "paused": true})
	case "resume":
		if l.controller != nil {
			l.controller.SetPaused(false)
			l.logger.Info("trading resumed via command bus")
		}
		l.reply(ctx, map[string]any{"command": "resume", "paused": false})
	case "status":
		status := map[string]any{"command": "status"}
		if l.feed != nil {
			status["feed"] = l.feed.Status()
		}
		if l.controller != nil {
			status["paused"] = l.controller.Paused()
			status["stats"] = l.controller.Stats()
			status["open_positions"] = len(l.controller.Positions())
		}
		l.reply(ctx, status)
	default:
		l.logger.Warn("unknown command", slog.String("command", cmd.Command))
	}
}

func (l *CommandLoop) reply(ctx context.Context, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := l.bus.Publish(ctx, ReplyChannel, data); err != nil {
		l.logger.Warn("reply publish failed", slog.String("error", err.Error()))
	}
}
