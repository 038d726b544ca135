package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lazypower/tabpulse/internal/config"
)

// Priority mirrors the browser notification levels.
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityNormal Priority = 1
	// PriorityHigh notifications stay until dismissed where the sink allows.
	PriorityHigh Priority = 2
)

// Notification is one user-facing alert.
type Notification struct {
	Kind     string   `json:"kind"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority Priority `json:"priority"`
	Sound    bool     `json:"sound,omitempty"`
}

// Notifier is the interface for notification sinks.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
	Name() string
}

// New creates a notifier based on the config provider setting.
func New(cfg config.NotifyConfig, log zerolog.Logger) (Notifier, error) {
	switch cfg.Provider {
	case "", "log":
		return NewLog(log), nil
	case "command":
		command := cfg.Command
		if command == "" {
			command = "notify-send"
		}
		return NewCommand(command), nil
	case "webhook":
		if cfg.WebhookURL == "" {
			return nil, fmt.Errorf("webhook provider requires TABPULSE_WEBHOOK_URL or config")
		}
		return NewWebhook(cfg.WebhookURL), nil
	case "none":
		return Discard{}, nil
	default:
		return nil, fmt.Errorf("unknown notify provider: %q", cfg.Provider)
	}
}

// Send delivers n and logs a failure instead of returning it. Notifications
// are fire-and-forget for callers.
func Send(ctx context.Context, n Notifier, msg Notification, log zerolog.Logger) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, msg); err != nil {
		log.Warn().Err(err).Str("notifier", n.Name()).Str("kind", msg.Kind).Msg("notification failed")
	}
}

// Log writes notifications to the structured log.
type Log struct {
	log zerolog.Logger
}

func NewLog(log zerolog.Logger) *Log {
	return &Log{log: log.With().Str("component", "notify").Logger()}
}

func (l *Log) Notify(_ context.Context, n Notification) error {
	ev := l.log.Info()
	if n.Priority >= PriorityHigh {
		ev = l.log.Warn()
	}
	ev.Str("kind", n.Kind).Str("title", n.Title).Int("priority", int(n.Priority)).Msg(n.Message)
	return nil
}

func (l *Log) Name() string { return "log" }

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(context.Context, Notification) error { return nil }
func (Discard) Name() string { return "none" }
