package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/loom/pkg/domain"
)

// Store implements ports.DocumentStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string][]byte),
	}
}

// Save persists the document in memory. Documents are kept serialized so
// neither side can mutate the other through shared pointers.
func (s *Store) Save(ctx context.Context, doc *domain.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document id is required")
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", doc.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[doc.ID] = data
	return nil
}

// Load retrieves the document from memory.
func (s *Store) Load(ctx context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	data, ok := s.data[id]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrDocumentNotFound
	}

	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	return &doc, nil
}

// Delete removes the document.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// List returns the stored document IDs in sorted order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
