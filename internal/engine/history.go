package engine

import "sync"

// ring is a fixed-capacity FIFO of samples. Its backing array is allocated
// once and never grows.
type ring struct {
	buf   []float64
	start int
	n     int
}

func (r *ring) push(v float64) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = v
		r.n++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

// values copies the samples out, oldest first.
func (r *ring) values() []float64 {
	out := make([]float64, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// History keeps a bounded sample window per tab id.
type History struct {
	mu       sync.Mutex
	capacity int
	rings    map[int]*ring
}

// NewHistory creates an empty arena whose windows hold capacity samples.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{capacity: capacity, rings: make(map[int]*ring)}
}

// Capacity returns the per-tab window size.
func (h *History) Capacity() int {
	return h.capacity
}

// Record appends sample to the window for id, evicting the oldest sample
// when full, and returns a copy of the updated window.
func (h *History) Record(id int, sample float64) []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rings[id]
	if !ok {
		r = &ring{buf: make([]float64, h.capacity)}
		h.rings[id] = r
	}
	r.push(sample)
	return r.values()
}

// Get returns a copy of the window for id, nil if none is tracked.
func (h *History) Get(id int) []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rings[id]
	if !ok {
		return nil
	}
	return r.values()
}

// Delete drops the window for id.
func (h *History) Delete(id int) {
	h.mu.Lock()
	delete(h.rings, id)
	h.mu.Unlock()
}

// Prune drops every window whose id is not in live and returns how many
// were removed.
func (h *History) Prune(live map[int]struct{}) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for id := range h.rings {
		if _, ok := live[id]; !ok {
			delete(h.rings, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked tabs.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rings)
}

// Reset drops all windows.
func (h *History) Reset() {
	h.mu.Lock()
	h.rings = make(map[int]*ring)
	h.mu.Unlock()
}
