package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/gridpulse/gridpulse/internal/timing/patch"
)

// Memory is an in-process publisher used by tests and by the daemon when no
// Redis address is configured.
type Memory struct {
	mu      sync.Mutex
	updates []*patch.Update
	failing bool
}

// NewMemory creates an empty in-process publisher.
func NewMemory() *Memory {
	return &Memory{}
}

// PublishUpdate records the update.
func (m *Memory) PublishUpdate(_ context.Context, _, _ int, u *patch.Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return fmt.Errorf("transport: memory publisher failing")
	}
	m.updates = append(m.updates, u)
	return nil
}

// Updates returns everything published so far.
func (m *Memory) Updates() []*patch.Update {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*patch.Update(nil), m.updates...)
}

// SetFailing toggles simulated transport failure.
func (m *Memory) SetFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = failing
}
