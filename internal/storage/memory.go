package storage

import (
	"sync"

	"github.com/nearlyhq/nearly-go/internal/model"
)

// MemoryStore is an in-memory ToggleStore for tests and ephemeral use.
// It satisfies the same contract as SQLiteStore minus durability.
type MemoryStore struct {
	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sets: make(map[string]map[string]struct{}),
	}
}

// Has reports whether id is a member of the kind's set.
func (s *MemoryStore) Has(kind model.ToggleKind, id string) bool {
	key, err := kind.StorageKey()
	if err != nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sets[key][id]
	return ok
}

// Add inserts id into the kind's set.
func (s *MemoryStore) Add(kind model.ToggleKind, id string) error {
	key, err := kind.StorageKey()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sets[key] == nil {
		s.sets[key] = make(map[string]struct{})
	}
	s.sets[key][id] = struct{}{}
	return nil
}

// Remove deletes id from the kind's set.
func (s *MemoryStore) Remove(kind model.ToggleKind, id string) error {
	key, err := kind.StorageKey()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets[key], id)
	return nil
}

// All returns the kind's members sorted ascending.
func (s *MemoryStore) All(kind model.ToggleKind) []string {
	key, err := kind.StorageKey()
	if err != nil {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedIDs(s.sets[key])
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
