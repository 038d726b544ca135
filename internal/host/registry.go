package host

import (
	"context"
	"sync"
	"time"

	"github.com/lazypower/tabpulse/internal/model"
)

// Registry is the daemon's view of the browser's live tabs, kept current by
// the browser agent. Tabs are listed in the order the agent reported them.
type Registry struct {
	mu    sync.RWMutex
	tabs  map[int]model.Descriptor
	order []int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tabs: make(map[int]model.Descriptor)}
}

// Replace swaps in a full tab list and returns the ids that disappeared.
func (r *Registry) Replace(tabs []model.Descriptor) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[int]model.Descriptor, len(tabs))
	order := make([]int, 0, len(tabs))
	for _, d := range tabs {
		if _, dup := next[d.ID]; !dup {
			order = append(order, d.ID)
		}
		next[d.ID] = d
	}

	var removed []int
	for _, id := range r.order {
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
		}
	}
	r.tabs = next
	r.order = order
	return removed
}

// Upsert adds or replaces one tab and reports whether it was new.
func (r *Registry) Upsert(d model.Descriptor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.tabs[d.ID]
	if !exists {
		r.order = append(r.order, d.ID)
	}
	r.tabs[d.ID] = d
	return !exists
}

// Activate marks id as the active tab of its window at time at. Other tabs
// in the same window lose their active flag. Returns false for an unknown id.
func (r *Registry) Activate(id int, at time.Time) (model.Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.tabs[id]
	if !ok {
		return model.Descriptor{}, false
	}
	for otherID, other := range r.tabs {
		if otherID != id && other.WindowID == d.WindowID && other.Active {
			other.Active = false
			r.tabs[otherID] = other
		}
	}
	d.Active = true
	d.Discarded = false
	d.LastAccessed = at
	r.tabs[id] = d
	return d, true
}

// Remove drops id and reports whether it was present.
func (r *Registry) Remove(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tabs[id]; !ok {
		return false
	}
	delete(r.tabs, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the tab with id.
func (r *Registry) Get(id int) (model.Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tabs[id]
	return d, ok
}

// Len returns the number of live tabs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tabs)
}

// ListTabs returns a consistent copy of the live tabs.
func (r *Registry) ListTabs(_ context.Context) ([]model.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tabs[id])
	}
	return out, nil
}
