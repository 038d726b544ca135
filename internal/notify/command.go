package notify

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// Command runs a desktop notifier such as notify-send as a subprocess:
// `<command> --urgency=<level> <title> <message>`.
type Command struct {
	command string
	timeout time.Duration
}

// NewCommand creates a command notifier.
func NewCommand(command string) *Command {
	return &Command{
		command: command,
		timeout: 10 * time.Second,
	}
}

func (c *Command) Notify(ctx context.Context, n Notification) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.command, "--urgency="+urgency(n.Priority), n.Title, n.Message)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w (stderr: %s)", c.command, err, stderr.String())
	}
	return nil
}

func (c *Command) Name() string { return "command:" + c.command }

func urgency(p Priority) string {
	switch {
	case p >= PriorityHigh:
		return "critical"
	case p == PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}
