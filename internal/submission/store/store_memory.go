package store

import (
	"context"
	"errors"
	"slices"
	"sync"

	"proctor/internal/submission/models"
	id "proctor/pkg/domain"
)

var ErrNotFound = errors.New("submission not found")

// InMemoryStore keeps submissions keyed by attempt ID.
type InMemoryStore struct {
	mu          sync.RWMutex
	submissions map[id.AttemptID]*models.Submission
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{submissions: make(map[id.AttemptID]*models.Submission)}
}

func (s *InMemoryStore) FindByAttempt(_ context.Context, attemptID id.AttemptID) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[attemptID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(sub), nil
}

// CreateIfAbsent stores sub unless its attempt already exists, in which case
// the existing record is returned with created == false.
func (s *InMemoryStore) CreateIfAbsent(_ context.Context, sub *models.Submission) (*models.Submission, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.submissions[sub.AttemptID]; ok {
		return clone(existing), false, nil
	}
	s.submissions[sub.AttemptID] = clone(sub)
	return clone(sub), true, nil
}

func clone(sub *models.Submission) *models.Submission {
	c := *sub
	c.Violations = slices.Clone(sub.Violations)
	return &c
}
