package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"proctor/internal/enrollment/models"
	"proctor/internal/enrollment/store"
	"proctor/internal/proctoring/identity"
	pmodels "proctor/internal/proctoring/models"
	id "proctor/pkg/domain"
	dErrors "proctor/pkg/domain-errors"
	"proctor/pkg/platform/middleware/requesttime"
	"proctor/pkg/requestcontext"
)

// Store persists enrollments.
// Error Contract:
// - FindByUser and Delete return store.ErrNotFound when no record exists
// - Create returns store.ErrAlreadyExists when the user is enrolled
type Store interface {
	FindByUser(ctx context.Context, userID id.UserID) (*models.Enrollment, error)
	Create(ctx context.Context, e *models.Enrollment) error
	Put(ctx context.Context, e *models.Enrollment) error
	Delete(ctx context.Context, userID id.UserID) error
}

// Service manages reference face descriptors. Students enroll once; only an
// administrator can replace or remove a descriptor afterwards.
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
		return nil, fmt.Errorf("enrollment store is required")
	}
	svc := &Service{store: store}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Descriptor returns the reference descriptor of userID.
func (s *Service) Descriptor(ctx context.Context, userID id.UserID) (*models.Enrollment, error) {
	e, err := s.store.FindByUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "no face descriptor enrolled")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load face descriptor")
	}
	return e, nil
}

// Enroll saves the student's first descriptor. A second call is a conflict.
func (s *Service) Enroll(ctx context.Context, userID id.UserID, descriptor pmodels.Embedding) (*models.Enrollment, error) {
	if err := identity.ValidateDescriptor(descriptor); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	now := requesttime.Now(ctx)
	e := &models.Enrollment{
		UserID:     userID,
		Descriptor: descriptor.Clone(),
		Source:     models.SourceSelf,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := s.store.Create(ctx, e)
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil, dErrors.New(dErrors.CodeConflict, "face descriptor already enrolled")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save face descriptor")
	}
	s.logAudit(ctx, "face_descriptor_enrolled", "user_id", userID.String())
	return e, nil
}

// Override replaces or creates a descriptor on behalf of an administrator.
func (s *Service) Override(ctx context.Context, userID id.UserID, descriptor pmodels.Embedding, actor string) (*models.Enrollment, error) {
	if err := identity.ValidateDescriptor(descriptor); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	now := requesttime.Now(ctx)
	e := &models.Enrollment{UserID: userID, CreatedAt: now}
	existing, err := s.store.FindByUser(ctx, userID)
	switch {
	case err == nil:
		e.CreatedAt = existing.CreatedAt
	case !errors.Is(err, store.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load face descriptor")
	}
	e.Descriptor = descriptor.Clone()
	e.Source = models.SourceAdmin
	e.UpdatedAt = now
	if err := s.store.Put(ctx, e); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save face descriptor")
	}
	s.logAudit(ctx, "face_descriptor_overridden", "user_id", userID.String(), "actor", actor)
	return e, nil
}

// Remove deletes a descriptor so the student can enroll again.
func (s *Service) Remove(ctx context.Context, userID id.UserID, actor string) error {
	err := s.store.Delete(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "no face descriptor enrolled")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete face descriptor")
	}
	s.logAudit(ctx, "face_descriptor_removed", "user_id", userID.String(), "actor", actor)
	return nil
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
