package hooks

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/lazypower/tabpulse/internal/engine"
)

// handlePlan asks the daemon which tabs an action applies to. Any failure
// answers an empty plan.
func handlePlan(client *Client, data []byte, stdout io.Writer) error {
	resp, err := client.Post("/api/actions/plan", data)
	if err != nil {
		WritePlan(stdout, emptyPlan())
		return err
	}

	var plan engine.ActionPlan
	if err := json.Unmarshal(resp, &plan); err != nil {
		WritePlan(stdout, emptyPlan())
		return fmt.Errorf("decode plan: %w", err)
	}
	if plan.TabIDs == nil {
		plan.TabIDs = []int{}
	}
	return WritePlan(stdout, plan)
}

func handleCompleted(client *Client, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("decode completion: invalid json")
	}
	_, err := client.Post("/api/actions/completed", data)
	return err
}
