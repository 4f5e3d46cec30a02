package docstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store used in tests and local development.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]Document)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Put(_ context.Context, collection, id string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[collection]
	if !ok {
		col = make(map[string]Document)
		s.collections[collection] = col
	}
	col[id] = cloneDocument(doc)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDocument(doc), nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections[collection], id)
	return nil
}

// Len reports the number of documents in a collection.
func (s *MemoryStore) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

// Callers keep references to the maps they pass in; copy so later edits on
// either side stay invisible to the other.
func cloneDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
