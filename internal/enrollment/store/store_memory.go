package store

import (
	"context"
	"errors"
	"sync"

	"proctor/internal/enrollment/models"
	id "proctor/pkg/domain"
)

var (
	ErrNotFound      = errors.New("enrollment not found")
	ErrAlreadyExists = errors.New("enrollment already exists")
)

// InMemoryStore keeps one enrollment per user.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.UserID]*models.Enrollment
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.UserID]*models.Enrollment)}
}

func (s *InMemoryStore) FindByUser(_ context.Context, userID id.UserID) (*models.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.records[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(e), nil
}

// Create stores e unless the user is already enrolled.
func (s *InMemoryStore) Create(_ context.Context, e *models.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[e.UserID]; ok {
		return ErrAlreadyExists
	}
	s.records[e.UserID] = clone(e)
	return nil
}

func (s *InMemoryStore) Put(_ context.Context, e *models.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[e.UserID] = clone(e)
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[userID]; !ok {
		return ErrNotFound
	}
	delete(s.records, userID)
	return nil
}

func clone(e *models.Enrollment) *models.Enrollment {
	c := *e
	c.Descriptor = e.Descriptor.Clone()
	return &c
}
