package content

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu          sync.RWMutex
	entries     map[Key]*Entry
	order       map[string][]string // collection -> ids in insertion order
	collections []string            // collections in insertion order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[Key]*Entry),
		order:   make(map[string][]string),
	}
}

// AddCollection registers an (initially empty) collection.
func (s *MemoryStore) AddCollection(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addCollection(name)
}

// addCollection must be called with s.mu held.
func (s *MemoryStore) addCollection(name string) {
	if _, ok := s.order[name]; ok {
		return
	}
	s.order[name] = []string{}
	s.collections = append(s.collections, name)
}

// Add inserts entries. Re-adding an existing key replaces its data
// but keeps its original position.
func (s *MemoryStore) Add(entries ...*Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.addCollection(e.Collection)
		k := e.Key()
		if _, exists := s.entries[k]; !exists {
			s.order[e.Collection] = append(s.order[e.Collection], e.ID)
		}
		s.entries[k] = e
	}
}

// Collections implements Store.
func (s *MemoryStore) Collections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.collections))
	copy(out, s.collections)
	return out, nil
}

// ListEntries implements Store.
func (s *MemoryStore) ListEntries(ctx context.Context, collection string) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, ok := s.order[collection]
	if !ok {
		return nil, fmt.Errorf("list %q: %w", collection, ErrUnknownCollection)
	}
	out := make([]*Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.entries[Key{Collection: collection, ID: id}])
	}
	return out, nil
}

// GetEntry implements Store.
func (s *MemoryStore) GetEntry(ctx context.Context, collection, id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[Key{Collection: collection, ID: id}], nil
}

// Verify interface compliance at compile time.
var _ Store = (*MemoryStore)(nil)
