package hooks

import (
	"fmt"
	"io"
	"os"
	"slices"
)

// Handle reads the agent's payload from stdin, dispatches it to the daemon
// based on the event argument and writes any answer to stdout. Errors go to
// stderr; Handle never fails.
func Handle(event string, stdin io.Reader) {
	if err := Dispatch(NewClient(), event, stdin, os.Stdout); err != nil {
		reportError(err)
	}
}

// Dispatch is Handle with an explicit client and output.
func Dispatch(client *Client, event string, stdin io.Reader, stdout io.Writer) error {
	if !slices.Contains(Events, event) {
		return fmt.Errorf("unknown hook event: %s", event)
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	// Degrade gracefully if the daemon is down.
	if !client.Healthy() {
		if event == EventPlan {
			return WritePlan(stdout, emptyPlan())
		}
		return nil
	}

	switch event {
	case EventSync:
		return handleSync(client, data)
	case EventPlan:
		return handlePlan(client, data, stdout)
	case EventCompleted:
		return handleCompleted(client, data)
	default:
		return handleTab(client, event, data)
	}
}
