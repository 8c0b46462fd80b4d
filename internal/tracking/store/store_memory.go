package store

import (
	"context"
	"sync"

	"edueasy/internal/tracking"
	id "edueasy/pkg/domain"
	"edueasy/pkg/platform/sentinel"
)

// InMemoryCounter is a process-local CounterStore for tests and single-node
// development. Production deployments are multi-instance and must use the
// Postgres counter.
type InMemoryCounter struct {
	mu    sync.Mutex
	value int64
}

// NewInMemoryCounter starts the counter at start (0 for a fresh system).
func NewInMemoryCounter(start int64) *InMemoryCounter {
	return &InMemoryCounter{value: start}
}

func (c *InMemoryCounter) Next(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value++
	return c.value, nil
}

func (c *InMemoryCounter) Current(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, nil
}

func (c *InMemoryCounter) AdvanceTo(_ context.Context, seq int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq > c.value {
		c.value = seq
	}
	return nil
}

// InMemoryAssignments is a map-backed AssignmentStore enforcing the same
// uniqueness rules as the Postgres schema.
type InMemoryAssignments struct {
	mu     sync.RWMutex
	byUser map[id.UserID]tracking.Assignment
	taken  map[tracking.ID]struct{}
}

func NewInMemoryAssignments() *InMemoryAssignments {
	return &InMemoryAssignments{
		byUser: make(map[id.UserID]tracking.Assignment),
		taken:  make(map[tracking.ID]struct{}),
	}
}

func (s *InMemoryAssignments) Get(_ context.Context, userID id.UserID) (*tracking.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byUser[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &a, nil
}

func (s *InMemoryAssignments) Create(_ context.Context, a tracking.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byUser[a.UserID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.taken[a.TrackingID]; exists {
		return sentinel.ErrConflict
	}
	s.byUser[a.UserID] = a
	s.taken[a.TrackingID] = struct{}{}
	return nil
}
