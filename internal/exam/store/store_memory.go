package store

import (
	"context"
	"errors"
	"sync"

	"proctor/internal/exam/models"
	id "proctor/pkg/domain"
)

// ErrNotFound is returned when no test record exists for the ID.
var ErrNotFound = errors.New("test not found")

// InMemoryTestStore holds test records keyed by test ID.
type InMemoryTestStore struct {
	mu    sync.RWMutex
	tests map[id.TestID]*models.Test
}

func NewInMemoryTestStore() *InMemoryTestStore {
	return &InMemoryTestStore{tests: make(map[id.TestID]*models.Test)}
}

func (s *InMemoryTestStore) FindByID(_ context.Context, testID id.TestID) (*models.Test, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tests[testID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (s *InMemoryTestStore) Save(_ context.Context, t *models.Test) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *t
	s.tests[t.ID] = &clone
	return nil
}

// ReplaceConfig installs a catalog snapshot. Issued OTPs of tests that stay in
// the catalog survive the swap; tests absent from the snapshot are removed.
func (s *InMemoryTestStore) ReplaceConfig(_ context.Context, tests []*models.Test) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[id.TestID]*models.Test, len(tests))
	for _, t := range tests {
		clone := *t
		if existing, ok := s.tests[t.ID]; ok {
			clone.OTPHash = existing.OTPHash
			clone.OTPExpiresAt = existing.OTPExpiresAt
		}
		next[t.ID] = &clone
	}
	s.tests = next
	return nil
}

func (s *InMemoryTestStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tests)
}
