// Package lockout rate limits OTP guesses per student and test with a
// progressive backoff and a hard lock.
package lockout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"proctor/internal/exam/models"
	id "proctor/pkg/domain"
	dErrors "proctor/pkg/domain-errors"
	"proctor/pkg/platform/middleware/requesttime"
	"proctor/pkg/requestcontext"
)

const (
	backoffBase = 250 * time.Millisecond
	backoffMax  = time.Second
)

type Store interface {
	Get(ctx context.Context, key string) (*models.Lockout, error)
	RecordFailure(ctx context.Context, key string) (*models.Lockout, error)
	Update(ctx context.Context, record *models.Lockout) error
	Clear(ctx context.Context, key string) error
}

// Config bounds OTP guessing.
type Config struct {
	MaxAttempts int
	Duration    time.Duration
}

func DefaultConfig() Config {
	return Config{MaxAttempts: 5, Duration: 15 * time.Minute}
}

// Result is the outcome of Check.
type Result struct {
	Allowed      bool
	RetryAfter   time.Duration
	FailureCount int
}

type Service struct {
	store  Store
	config Config
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("lockout store is required")
	}
	svc := &Service{store: store, config: DefaultConfig()}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.config.MaxAttempts <= 0 {
		return nil, fmt.Errorf("lockout max attempts must be positive")
	}
	return svc, nil
}

func key(userID id.UserID, testID id.TestID) string {
	return userID.String() + ":" + testID.String()
}

// Check reports whether the student may try another code now.
func (s *Service) Check(ctx context.Context, userID id.UserID, testID id.TestID) (Result, error) {
	record, err := s.store.Get(ctx, key(userID, testID))
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get lockout record")
	}
	if record == nil {
		return Result{Allowed: true}, nil
	}

	now := requesttime.Now(ctx)
	if record.IsLockedAt(now) {
		return Result{
			Allowed:      false,
			RetryAfter:   record.LockedUntil.Sub(now),
			FailureCount: record.FailureCount,
		}, nil
	}
	if record.LockedUntil != nil {
		// lock expired, start over
		if err := s.store.Clear(ctx, record.Key); err != nil {
			return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear expired lockout")
		}
		return Result{Allowed: true}, nil
	}

	if wait := record.LastFailureAt.Add(Backoff(record.FailureCount)).Sub(now); wait > 0 {
		return Result{Allowed: false, RetryAfter: wait, FailureCount: record.FailureCount}, nil
	}
	return Result{Allowed: true, FailureCount: record.FailureCount}, nil
}

// RecordFailure counts a wrong code and hard-locks at the threshold.
func (s *Service) RecordFailure(ctx context.Context, userID id.UserID, testID id.TestID) (*models.Lockout, error) {
	current, err := s.store.RecordFailure(ctx, key(userID, testID))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record OTP failure")
	}
	if current.FailureCount >= s.config.MaxAttempts {
		lockedUntil := requesttime.Now(ctx).Add(s.config.Duration)
		current.LockedUntil = &lockedUntil
		if err := s.store.Update(ctx, current); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update lockout record")
		}
		s.logAudit(ctx, "otp_lockout_triggered",
			"user_id", userID.String(),
			"test_id", testID.String(),
			"locked_until", lockedUntil,
		)
	}
	return current, nil
}

// Clear forgets failures after a correct code.
func (s *Service) Clear(ctx context.Context, userID id.UserID, testID id.TestID) error {
	if err := s.store.Clear(ctx, key(userID, testID)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear OTP failures")
	}
	return nil
}

// Backoff is 250ms doubled per prior failure, capped at 1s.
func Backoff(failureCount int) time.Duration {
	if failureCount <= 0 {
		return 0
	}
	if failureCount > 3 {
		return backoffMax
	}
	return min(backoffBase*time.Duration(1<<(failureCount-1)), backoffMax)
}

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	args := append(attrs, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
