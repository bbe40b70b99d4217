package lockout

import (
	"context"
	"sync"

	"proctor/internal/exam/models"
	"proctor/pkg/platform/middleware/requesttime"
)

// InMemoryStore keeps lockout records keyed by "user:test".
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.Lockout
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*models.Lockout)}
}

func (s *InMemoryStore) Get(_ context.Context, key string) (*models.Lockout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.records[key]; ok {
		clone := *record
		return &clone, nil
	}
	return nil, nil
}

func (s *InMemoryStore) RecordFailure(ctx context.Context, key string) (*models.Lockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := requesttime.Now(ctx)
	record, ok := s.records[key]
	if !ok {
		record = &models.Lockout{Key: key}
		s.records[key] = record
	}
	record.FailureCount++
	record.LastFailureAt = now
	clone := *record
	return &clone, nil
}

func (s *InMemoryStore) Update(_ context.Context, record *models.Lockout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	s.records[record.Key] = &clone
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}
