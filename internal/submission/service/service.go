package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"proctor/internal/platform/privacy"
	"proctor/internal/submission/models"
	"proctor/internal/submission/store"
	id "proctor/pkg/domain"
	dErrors "proctor/pkg/domain-errors"
	"proctor/pkg/platform/middleware/device"
	"proctor/pkg/platform/middleware/requesttime"
	"proctor/pkg/requestcontext"
)

// Store persists submissions.
// Error Contract:
// - FindByAttempt returns store.ErrNotFound when no record exists
type Store interface {
	FindByAttempt(ctx context.Context, attemptID id.AttemptID) (*models.Submission, error)
	CreateIfAbsent(ctx context.Context, sub *models.Submission) (*models.Submission, bool, error)
}

type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("submission store is required")
	}
	svc := &Service{store: store}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Submit records an attempt. Resubmitting the same attempt returns the stored
// record unchanged with created == false; an attempt that belongs to another
// test or student is a conflict.
func (s *Service) Submit(ctx context.Context, userID id.UserID, testID id.TestID, req *models.SubmitRequest, dev device.Info) (*models.Submission, bool, error) {
	attemptID, err := id.ParseAttemptID(req.AttemptID)
	if err != nil {
		return nil, false, err
	}
	sub := &models.Submission{
		AttemptID:               attemptID,
		TestID:                  testID,
		UserID:                  userID,
		ResponsesDigest:         req.ResponsesDigest,
		ViolationCount:          req.ViolationCount,
		Violations:              slices.Clone(req.Violations),
		CancelledDueToViolation: req.CancelledDueToViolation,
		AutoSubmit:              req.AutoSubmit,
		SubmittedAt:             requesttime.Now(ctx),
		Device:                  dev,
	}

	stored, created, err := s.store.CreateIfAbsent(ctx, sub)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save submission")
	}
	if !created {
		if stored.TestID != testID || stored.UserID != userID {
			return nil, false, dErrors.New(dErrors.CodeConflict, "attempt belongs to another submission")
		}
		if stored.Device.Fingerprint != "" && dev.Fingerprint != "" && stored.Device.Fingerprint != dev.Fingerprint {
			s.warn(ctx, "resubmission from a different device",
				"attempt_id", attemptID.String(),
				"original_device", stored.Device.Display,
				"device", dev.Display,
			)
		}
		return stored, false, nil
	}

	s.logAudit(ctx, "attempt_submitted",
		"attempt_id", attemptID.String(),
		"test_id", testID.String(),
		"user_id", userID.String(),
		"violation_count", sub.ViolationCount,
		"cancelled_due_to_violation", sub.CancelledDueToViolation,
	)
	return stored, true, nil
}

// Get returns a submission owned by userID on testID.
func (s *Service) Get(ctx context.Context, userID id.UserID, testID id.TestID, attemptID id.AttemptID) (*models.Submission, error) {
	sub, err := s.store.FindByAttempt(ctx, attemptID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "submission not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load submission")
	}
	if sub.UserID != userID || sub.TestID != testID {
		return nil, dErrors.New(dErrors.CodeNotFound, "submission not found")
	}
	return sub, nil
}

func (s *Service) warn(ctx context.Context, msg string, attrs ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, attrs...)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		attrs = append(attrs, "client_ip", privacy.AnonymizeIP(ip))
	}
	args := append(attrs, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
