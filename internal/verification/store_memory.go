package verification

import (
	"context"
	"sync"

	id "edueasy/pkg/domain"
	"edueasy/pkg/platform/sentinel"
)

// InMemoryStore is a map-backed RecordStore for tests and single-node
// development.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.UserID]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.UserID]Record)}
}

func (s *InMemoryStore) Get(_ context.Context, userID id.UserID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &r, nil
}

func (s *InMemoryStore) Create(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[r.UserID]; exists {
		return sentinel.ErrConflict
	}
	s.records[r.UserID] = r
	return nil
}
