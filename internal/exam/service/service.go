package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"proctor/internal/exam/lockout"
	"proctor/internal/exam/metrics"
	"proctor/internal/exam/models"
	"proctor/internal/exam/store"
	"proctor/internal/platform/privacy"
	pmodels "proctor/internal/proctoring/models"
	id "proctor/pkg/domain"
	dErrors "proctor/pkg/domain-errors"
	"proctor/pkg/platform/middleware/requesttime"
	psync "proctor/pkg/platform/sync"
	"proctor/pkg/requestcontext"
)

const (
	defaultOTPTTL = 24 * time.Hour
	otpSpace      = 1_000_000
)

// Store persists test records.
// Error Contract:
// - FindByID returns store.ErrNotFound when no record exists
type Store interface {
	FindByID(ctx context.Context, testID id.TestID) (*models.Test, error)
	Save(ctx context.Context, t *models.Test) error
}

// Lockout rate limits OTP guesses.
type Lockout interface {
	Check(ctx context.Context, userID id.UserID, testID id.TestID) (lockout.Result, error)
	RecordFailure(ctx context.Context, userID id.UserID, testID id.TestID) (*models.Lockout, error)
	Clear(ctx context.Context, userID id.UserID, testID id.TestID) error
}

// Service serves test policies and issues and checks bypass codes.
type Service struct {
	tests      Store
	lockout    Lockout
	metrics    *metrics.Metrics
	logger     *slog.Logger
	otpTTL     time.Duration
	bcryptCost int
	generate   func() (string, error)
	guesses    *psync.ShardedMutex
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithOTPTTL sets how long an issued code stays redeemable.
func WithOTPTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.otpTTL = ttl
		}
	}
}

func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(fn func() (string, error)) Option {
	return func(s *Service) {
		s.generate = fn
	}
}

func New(tests Store, limiter Lockout, opts ...Option) (*Service, error) {
	if tests == nil {
		return nil, fmt.Errorf("test store is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("lockout is required")
	}
	svc := &Service{
		tests:      tests,
		lockout:    limiter,
		otpTTL:     defaultOTPTTL,
		bcryptCost: bcrypt.DefaultCost,
		generate:   randomCode,
		guesses:    psync.NewShardedMutex(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.bcryptCost < bcrypt.MinCost || svc.bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", svc.bcryptCost)
	}
	return svc, nil
}

func (s *Service) find(ctx context.Context, testID id.TestID) (*models.Test, error) {
	t, err := s.tests.FindByID(ctx, testID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "test not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load test")
	}
	return t, nil
}

// Policy returns the tolerance the monitor enforces for testID.
func (s *Service) Policy(ctx context.Context, testID id.TestID) (*models.PolicyResponse, error) {
	t, err := s.find(ctx, testID)
	if err != nil {
		return nil, err
	}
	policy, err := t.Policy()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "stored test has an invalid policy")
	}
	if s.metrics != nil {
		mode := "finite"
		if policy.Unlimited() {
			mode = "practice"
		}
		s.metrics.IncrementPolicyLookup(mode)
	}
	return &models.PolicyResponse{
		TestID:             t.ID.String(),
		Title:              t.Title,
		AllowedTabSwitches: policy.AllowedViolations,
		Practice:           t.Practice,
		BypassAvailable:    t.HasActiveOTP(requesttime.Now(ctx)),
	}, nil
}

// Upsert creates or updates a test record. An issued code is kept.
func (s *Service) Upsert(ctx context.Context, testID id.TestID, req *models.UpsertTestRequest) (*models.Test, error) {
	if _, err := pmodels.PolicyFromTest(req.AllowedTabSwitches); err != nil {
		return nil, err
	}
	t, err := s.find(ctx, testID)
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		t, err = &models.Test{ID: testID}, nil
	}
	if err != nil {
		return nil, err
	}
	t.Title = req.Title
	t.AllowedTabSwitches = req.AllowedTabSwitches
	t.Practice = req.Practice
	t.UpdatedAt = requesttime.Now(ctx)
	if err := s.tests.Save(ctx, t); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save test")
	}
	s.logAudit(ctx, "test_upserted", "test_id", testID.String())
	return t, nil
}

// IssueOTP generates a fresh six-digit code for testID, replacing any earlier
// one. Only the bcrypt hash is stored.
func (s *Service) IssueOTP(ctx context.Context, testID id.TestID) (*models.IssueOTPResponse, error) {
	t, err := s.find(ctx, testID)
	if err != nil {
		return nil, err
	}
	code, err := s.generate()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate OTP")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.bcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash OTP")
	}
	t.OTPHash = hash
	t.OTPExpiresAt = requesttime.Now(ctx).Add(s.otpTTL)
	if err := s.tests.Save(ctx, t); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save OTP")
	}
	if s.metrics != nil {
		s.metrics.IncrementOTPIssued()
	}
	s.logAudit(ctx, "otp_issued",
		"test_id", testID.String(),
		"expires_at", t.OTPExpiresAt,
	)
	return &models.IssueOTPResponse{TestID: testID.String(), OTP: code, ExpiresAt: t.OTPExpiresAt}, nil
}

// VerifyOTP checks a student's code. A wrong, expired or never-issued code
// yields false with a nil error. A locked-out student gets CodeTooManyRequests.
func (s *Service) VerifyOTP(ctx context.Context, userID id.UserID, testID id.TestID, otp string) (bool, error) {
	// Check, compare and record run under one lock per student and test.
	key := userID.String() + "|" + testID.String()
	s.guesses.Lock(key)
	defer s.guesses.Unlock(key)

	res, err := s.lockout.Check(ctx, userID, testID)
	if err != nil {
		return false, err
	}
	if !res.Allowed {
		if s.metrics != nil {
			s.metrics.IncrementOTPLockouts()
		}
		return false, dErrors.New(dErrors.CodeTooManyRequests,
			fmt.Sprintf("too many incorrect codes, retry in %s", res.RetryAfter.Round(time.Second)))
	}

	t, err := s.find(ctx, testID)
	if err != nil {
		return false, err
	}

	valid := t.HasActiveOTP(requesttime.Now(ctx)) &&
		bcrypt.CompareHashAndPassword(t.OTPHash, []byte(otp)) == nil
	if !valid {
		if _, err := s.lockout.RecordFailure(ctx, userID, testID); err != nil {
			return false, err
		}
		s.observeVerification("rejected")
		s.logAudit(ctx, "otp_rejected", "user_id", userID.String(), "test_id", testID.String())
		return false, nil
	}

	if err := s.lockout.Clear(ctx, userID, testID); err != nil {
		return false, err
	}
	s.observeVerification("accepted")
	s.logAudit(ctx, "otp_accepted", "user_id", userID.String(), "test_id", testID.String())
	return true, nil
}

func (s *Service) observeVerification(result string) {
	if s.metrics != nil {
		s.metrics.IncrementOTPVerification(result)
	}
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpace))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
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
