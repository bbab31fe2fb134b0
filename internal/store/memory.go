package store

import (
	"context"
	"sync"

	"github.com/sells-group/fedresearch-cli/internal/model"
)

// MemoryStore is an in-memory ProfileStore used in tests and dry runs.
// Entities must be registered with AddEntity before profiles can be attached,
// mirroring the not-found semantics of the real adapters.
type MemoryStore struct {
	mu       sync.Mutex
	entities map[string]bool
	profiles map[string]model.Profile
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		entities: make(map[string]bool),
		profiles: make(map[string]model.Profile),
	}
}

// AddEntity registers an entity key so profile writes to it succeed.
func (m *MemoryStore) AddEntity(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[key] = true
}

func (m *MemoryStore) Get(_ context.Context, key string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[key]
	if !ok {
		return nil, nil
	}
	cp := p
	return &cp, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, profile *model.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.entities[key] {
		return ErrEntityNotFound
	}
	m.profiles[key] = *profile
	return nil
}

func (m *MemoryStore) Close() error { return nil }
