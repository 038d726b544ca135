package hooks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/lazypower/tabpulse/internal/engine"
)

// emptyPlan is answered to a plan request the daemon cannot serve, so the
// agent performs nothing.
func emptyPlan() engine.ActionPlan {
	return engine.ActionPlan{TabIDs: []int{}}
}

// WritePlan writes the plan the agent should carry out.
func WritePlan(w io.Writer, plan engine.ActionPlan) error {
	return json.NewEncoder(w).Encode(plan)
}

// reportError logs to stderr. Hooks never fail the agent that ran them.
func reportError(err error) {
	fmt.Fprintf(os.Stderr, "tabpulse hook: %v\n", err)
}
