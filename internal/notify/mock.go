package notify

import (
	"context"
	"sync"
)

// Mock is a test double for the Notifier interface.
type Mock struct {
	Err error

	mu    sync.Mutex
	calls []Notification
}

// Notify records the notification and returns the mock error.
func (m *Mock) Notify(_ context.Context, n Notification) error {
	m.mu.Lock()
	m.calls = append(m.calls, n)
	m.mu.Unlock()
	return m.Err
}

func (m *Mock) Name() string { return "mock" }

// Calls returns a copy of every notification received.
func (m *Mock) Calls() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.calls...)
}

// Kinds returns the Kind of every notification received, in order.
func (m *Mock) Kinds() []string {
	var kinds []string
	for _, n := range m.Calls() {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}
