// Package bypass implements the reduced-requirement entry path unlocked by an
// instructor-issued one-time code. Only the entry gate is relaxed: detectors
// and escalation run unchanged once monitoring starts.
package bypass

//go:generate mockgen -source=bypass.go -destination=mocks/mocks.go -package=mocks OTPVerifier

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"proctor/internal/proctoring/models"
	"proctor/internal/proctoring/tracer"
	"proctor/pkg/domain"
	dErrors "proctor/pkg/domain-errors"
)

// OTPLength is the number of digits in a bypass code.
const OTPLength = 6

var (
	ErrInvalidOTP = errors.New("OTP must be exactly 6 digits")
	ErrRejected   = errors.New("OTP is incorrect or expired")
	ErrLocked     = errors.New("too many incorrect OTP attempts, try again later")
	ErrInProgress = errors.New("OTP verification already in progress")
)

// OTPVerifier checks a code with the server for one test. A false result with
// a nil error means the code was wrong.
type OTPVerifier interface {
	VerifyOTP(ctx context.Context, testID domain.TestID, otp string) (bool, error)
}

// Channels is the permission side of the bypass gate.
type Channels interface {
	RequestScreenShare(ctx context.Context) bool
	GrantByBypass()
	State() models.PermissionState
}

// DevToolsProbe reports the live devtools heuristic.
type DevToolsProbe interface {
	Open() bool
}

type Option func(*Path)

// WithLogger sets the logger for the bypass path.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Path) {
		p.logger = logger
	}
}

// WithTracer sets the tracer for the bypass path.
func WithTracer(t tracer.Tracer) Option {
	return func(p *Path) {
		p.tracer = t
	}
}

// Path is the OTP entry path for one test attempt.
type Path struct {
	verifier OTPVerifier
	channels Channels
	devtools DevToolsProbe
	testID   domain.TestID
	logger   *slog.Logger
	tracer   tracer.Tracer

	mu       sync.Mutex
	unlocked bool
	inFlight bool
}

func New(testID domain.TestID, verifier OTPVerifier, channels Channels, devtools DevToolsProbe, opts ...Option) *Path {
	p := &Path{
		verifier: verifier,
		channels: channels,
		devtools: devtools,
		testID:   testID,
		tracer:   tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ValidateOTP checks the code shape before any network call.
func ValidateOTP(otp string) error {
	if len(otp) != OTPLength {
		return ErrInvalidOTP
	}
	for _, r := range otp {
		if r < '0' || r > '9' {
			return ErrInvalidOTP
		}
	}
	return nil
}

// Unlock verifies otp with the server and, on success, marks microphone,
// camera, location and face match as granted by bypass.
func (p *Path) Unlock(ctx context.Context, otp string) error {
	if err := ValidateOTP(otp); err != nil {
		return err
	}
	p.mu.Lock()
	if p.unlocked {
		p.mu.Unlock()
		return nil
	}
	if p.inFlight {
		p.mu.Unlock()
		return ErrInProgress
	}
	p.inFlight = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.inFlight = false
		p.mu.Unlock()
	}()

	ctx, span := p.tracer.Start(ctx, tracer.SpanBypassVerify, tracer.String(tracer.AttrTestID, p.testID.String()))
	ok, err := p.verifier.VerifyOTP(ctx, p.testID, otp)
	span.End(err)
	switch {
	case dErrors.HasCode(err, dErrors.CodeTooManyRequests):
		p.logWarn(ctx, "OTP locked out", err)
		return ErrLocked
	case err != nil:
		p.logWarn(ctx, "OTP verification failed", err)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "verifying OTP")
	case !ok:
		p.logWarn(ctx, "OTP rejected", nil)
		return ErrRejected
	}

	p.mu.Lock()
	p.unlocked = true
	p.mu.Unlock()
	p.channels.GrantByBypass()
	if p.logger != nil {
		p.logger.InfoContext(ctx, "bypass unlocked",
			"test_id", p.testID.String(),
			"event", "bypass_unlocked",
			"log_type", "audit",
		)
	}
	return nil
}

// RequestScreenShare is the one channel the bypass path still acquires.
func (p *Path) RequestScreenShare(ctx context.Context) bool {
	return p.channels.RequestScreenShare(ctx)
}

// Unlocked reports whether a code was accepted.
func (p *Path) Unlocked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unlocked
}

// Ready is the relaxed gate: accepted code, entire-screen share and no devtools.
func (p *Path) Ready() bool {
	if !p.Unlocked() {
		return false
	}
	if !p.channels.State().ScreenShare.Granted() {
		return false
	}
	return p.devtools == nil || !p.devtools.Open()
}

// Reset forgets the accepted code.
func (p *Path) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unlocked = false
}

func (p *Path) logWarn(ctx context.Context, msg string, err error) {
	if p.logger == nil {
		return
	}
	p.logger.WarnContext(ctx, msg, "test_id", p.testID.String(), "error", err)
}
