package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"proctor/internal/enrollment/models"
	"proctor/internal/enrollment/store"
	pmodels "proctor/internal/proctoring/models"
	id "proctor/pkg/domain"
	dErrors "proctor/pkg/domain-errors"
	"proctor/pkg/platform/middleware/requesttime"
)

func descriptor(first float32) pmodels.Embedding {
	d := make(pmodels.Embedding, 128)
	d[0] = first
	return d
}

type ServiceSuite struct {
	suite.Suite
	ctx    context.Context
	now    time.Time
	svc    *Service
	userID id.UserID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)
	s.ctx = requesttime.WithTime(context.Background(), s.now)
	var err error
	s.svc, err = New(store.NewInMemoryStore())
	s.Require().NoError(err)
	s.userID = id.UserID(uuid.New())
}

func (s *ServiceSuite) TestEnrollOnce() {
	e, err := s.svc.Enroll(s.ctx, s.userID, descriptor(0.1))
	s.Require().NoError(err)
	s.Equal(models.SourceSelf, e.Source)

	_, err = s.svc.Enroll(s.ctx, s.userID, descriptor(0.2))
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	got, err := s.svc.Descriptor(s.ctx, s.userID)
	s.Require().NoError(err)
	s.InDelta(0.1, got.Descriptor[0], 1e-6)
}

func (s *ServiceSuite) TestEnrollRejectsMalformedDescriptor() {
	_, err := s.svc.Enroll(s.ctx, s.userID, pmodels.Embedding{0.1, 0.2})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestDescriptorNotEnrolled() {
	_, err := s.svc.Descriptor(s.ctx, s.userID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestOverride() {
	_, err := s.svc.Enroll(s.ctx, s.userID, descriptor(0.1))
	s.Require().NoError(err)

	later := requesttime.WithTime(context.Background(), s.now.Add(time.Hour))
	e, err := s.svc.Override(later, s.userID, descriptor(0.7), "registrar")
	s.Require().NoError(err)
	s.Equal(models.SourceAdmin, e.Source)
	s.Equal(s.now, e.CreatedAt)
	s.Equal(s.now.Add(time.Hour), e.UpdatedAt)

	s.Run("creates when absent", func() {
		other := id.UserID(uuid.New())
		e, err := s.svc.Override(s.ctx, other, descriptor(0.3), "registrar")
		s.Require().NoError(err)
		s.Equal(s.now, e.CreatedAt)
	})
}

func (s *ServiceSuite) TestRemoveAllowsReenrollment() {
	_, err := s.svc.Enroll(s.ctx, s.userID, descriptor(0.1))
	s.Require().NoError(err)
	s.Require().NoError(s.svc.Remove(s.ctx, s.userID, "registrar"))

	_, err = s.svc.Enroll(s.ctx, s.userID, descriptor(0.4))
	s.NoError(err)

	err = s.svc.Remove(s.ctx, id.UserID(uuid.New()), "registrar")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
