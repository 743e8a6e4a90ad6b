package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store used by tests and local development.
// Records are deep-copied through JSON on the way in and out so callers
// cannot alias the stored state.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]string)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, teamID string) (*Installation, error) {
	s.mu.RLock()
	record, ok := s.items[teamID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, teamID)
	}

	inst := &Installation{}
	if err := json.Unmarshal([]byte(record), inst); err != nil {
		return nil, fmt.Errorf("store: decode record %s: %w", teamID, err)
	}
	return inst, nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, inst *Installation) error {
	if inst.TeamID == "" {
		return fmt.Errorf("store: installation has no team id")
	}
	record, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("store: encode record %s: %w", inst.TeamID, err)
	}

	s.mu.Lock()
	s.items[inst.TeamID] = string(record)
	s.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)
