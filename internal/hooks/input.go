package hooks

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lazypower/tabpulse/internal/model"
)

// Hook events the browser agent fires. Tab events carry one descriptor on
// stdin, sync carries the full tab list.
const (
	EventSync      = "sync"
	EventCreated   = "created"
	EventUpdated   = "updated"
	EventActivated = "activated"
	EventRemoved   = "removed"
	EventPlan      = "plan"
	EventCompleted = "completed"
)

// Events lists every event Handle accepts.
var Events = []string{EventSync, EventCreated, EventUpdated, EventActivated, EventRemoved, EventPlan, EventCompleted}

// skipSchemes are pages the agent reports but that are not user tabs.
var skipSchemes = []string{"devtools://", "view-source:"}

// ShouldSkipTab returns true if d is not a user tab and should not be
// reported to the daemon.
func ShouldSkipTab(d model.Descriptor) bool {
	for _, s := range skipSchemes {
		if strings.HasPrefix(d.URL, s) {
			return true
		}
	}
	return false
}

// decodeTab parses a single-tab payload. Removal and activation only need
// the id; the daemon fills in the rest from its registry.
func decodeTab(data []byte) (model.Descriptor, error) {
	var d model.Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("decode tab: %w", err)
	}
	if d.ID <= 0 {
		return d, fmt.Errorf("tab id missing")
	}
	return d, nil
}

// decodeTabs parses a sync payload and drops tabs that are not reported.
func decodeTabs(data []byte) ([]model.Descriptor, error) {
	var tabs []model.Descriptor
	if err := json.Unmarshal(data, &tabs); err != nil {
		return nil, fmt.Errorf("decode tabs: %w", err)
	}
	kept := tabs[:0]
	for _, d := range tabs {
		if d.ID > 0 && !ShouldSkipTab(d) {
			kept = append(kept, d)
		}
	}
	return kept, nil
}
