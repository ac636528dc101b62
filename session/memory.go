package session

import (
	"context"
	"sync"
)

// MemoryPersistence keeps slots in process memory. It survives nothing and suits tests and
// short-lived tools.
type MemoryPersistence struct {
	mu    sync.Mutex
	slots map[string]string
}

// NewMemoryPersistence returns an empty [MemoryPersistence].
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{slots: make(map[string]string)}
}

func (m *MemoryPersistence) Load(_ context.Context, slots ...string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(slots))
	for _, slot := range slots {
		if v, ok := m.slots[slot]; ok {
			out[slot] = v
		}
	}
	return out, nil
}

func (m *MemoryPersistence) Save(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.slots[k] = v
	}
	return nil
}

func (m *MemoryPersistence) Erase(_ context.Context, slots ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, slot := range slots {
		delete(m.slots, slot)
	}
	return nil
}
