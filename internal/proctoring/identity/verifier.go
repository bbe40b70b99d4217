package identity

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks DescriptorSource,FrameSource,FaceDetector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"proctor/internal/proctoring/metrics"
	"proctor/internal/proctoring/models"
	"proctor/internal/proctoring/tracer"
)

var (
	// ErrInProgress is returned when CaptureAndVerify is called while a capture is running.
	ErrInProgress = errors.New("identity verification already in progress")
	// ErrLocked is returned once monitoring has started and the outcome is frozen.
	ErrLocked = errors.New("identity verification is locked while monitoring")
)

// DefaultMatchThreshold is the exclusive upper bound on descriptor distance for a match.
const DefaultMatchThreshold = 0.6

// DefaultLadder is tried in order until one pass finds a face: the default
// pass, a larger input for distant subjects, then a smaller input with a lower
// floor for blur and low light.
var DefaultLadder = []DetectOptions{
	{InputSize: 512, ScoreThreshold: 0.3},
	{InputSize: 608, ScoreThreshold: 0.3},
	{InputSize: 320, ScoreThreshold: 0.2},
}

// Student-facing outcome messages.
const (
	MsgNoFace          = "No face detected. Please ensure your face is clearly visible and well lit."
	MsgMismatch        = "Face does not match the registered profile. Please try again."
	MsgNoReference     = "No registered face found for your account. Please complete face enrollment first."
	MsgVerified        = "Identity verified."
	MsgCameraNotActive = "Camera is not active. Please enable your camera first."
)

type Option func(*Verifier)

// WithLogger sets the logger for the verifier.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// WithMetrics sets the metrics instance for the verifier.
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Verifier) {
		v.metrics = m
	}
}

// WithTracer sets the tracer for the verifier.
func WithTracer(t tracer.Tracer) Option {
	return func(v *Verifier) {
		v.tracer = t
	}
}

// WithMatchThreshold overrides the 0.6 distance threshold. Lower is stricter.
func WithMatchThreshold(threshold float64) Option {
	return func(v *Verifier) {
		if threshold > 0 {
			v.threshold = threshold
		}
	}
}

// WithLadder overrides the detection retry ladder.
func WithLadder(ladder []DetectOptions) Option {
	return func(v *Verifier) {
		if len(ladder) > 0 {
			v.ladder = append([]DetectOptions(nil), ladder...)
		}
	}
}

// WithStatusHook registers a callback run on every status transition, so the
// UI can show the verifying state for the span of the ladder.
func WithStatusHook(fn func(models.VerificationStatus)) Option {
	return func(v *Verifier) {
		v.onStatus = fn
	}
}

// Verifier runs the one-shot, student-initiated face match against the
// enrolled reference embedding. The reference is fetched once per session and
// is the only biometric the verifier holds.
type Verifier struct {
	descriptors DescriptorSource
	frames      FrameSource
	detector    FaceDetector
	threshold   float64
	ladder      []DetectOptions
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      tracer.Tracer
	onStatus    func(models.VerificationStatus)

	mu         sync.Mutex
	reference  models.Embedding
	inProgress bool
	locked     bool
	attempts   int
	result     models.VerificationResult
}

func New(descriptors DescriptorSource, frames FrameSource, detector FaceDetector, opts ...Option) *Verifier {
	v := &Verifier{
		descriptors: descriptors,
		frames:      frames,
		detector:    detector,
		threshold:   DefaultMatchThreshold,
		ladder:      DefaultLadder,
		tracer:      tracer.NewNoop(),
		result:      models.VerificationResult{Status: models.VerificationPending},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// LoadReference fetches the reference embedding unless it is already held.
func (v *Verifier) LoadReference(ctx context.Context) error {
	v.mu.Lock()
	loaded := v.reference != nil
	v.mu.Unlock()
	if loaded {
		return nil
	}

	ctx, span := v.tracer.Start(ctx, tracer.SpanLoadReference)
	ref, err := v.descriptors.FetchDescriptor(ctx)
	if err == nil && len(ref) == 0 {
		err = errors.New("empty reference descriptor")
	}
	span.End(err)
	if err != nil {
		return fmt.Errorf("fetching reference descriptor: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.reference == nil {
		v.reference = ref.Clone()
	}
	return nil
}

// HasReference reports whether the reference embedding is loaded.
func (v *Verifier) HasReference() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reference != nil
}

// Status returns the current verification status.
func (v *Verifier) Status() models.VerificationStatus {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.result.Status
}

// Result returns the outcome of the last completed capture.
func (v *Verifier) Result() models.VerificationResult {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.result
}

// CaptureAndVerify grabs the live frame, walks the detection ladder and
// compares the first detected face against the reference. Detector failures
// are treated as "no face" passes. The only errors returned are ErrInProgress
// and ErrLocked; every other outcome is reported through the result.
func (v *Verifier) CaptureAndVerify(ctx context.Context) (models.VerificationResult, error) {
	v.mu.Lock()
	if v.locked {
		res := v.result
		v.mu.Unlock()
		return res, ErrLocked
	}
	if v.inProgress {
		res := v.result
		v.mu.Unlock()
		return res, ErrInProgress
	}
	v.inProgress = true
	v.attempts++
	attempt := v.attempts
	v.result = models.VerificationResult{Status: models.VerificationVerifying, Attempts: attempt}
	v.mu.Unlock()
	v.notify(models.VerificationVerifying)

	start := time.Now()
	ctx, span := v.tracer.Start(ctx, tracer.SpanVerify, tracer.Int64(tracer.AttrAttempt, int64(attempt)))
	res := v.verify(ctx)
	res.Attempts = attempt
	span.SetAttributes(tracer.Bool(tracer.AttrMatched, res.Status == models.VerificationSuccess))
	span.End(nil)

	v.mu.Lock()
	v.inProgress = false
	v.result = res
	v.mu.Unlock()

	if v.metrics != nil {
		v.metrics.ObserveVerificationLatency(time.Since(start).Seconds())
		v.metrics.IncrementVerificationAttempts(resultLabel(res))
	}
	if v.logger != nil {
		v.logger.InfoContext(ctx, "identity verification completed",
			"status", res.Status,
			"attempt", attempt,
			"distance", res.Distance,
		)
	}
	v.notify(res.Status)
	return res, nil
}

func (v *Verifier) verify(ctx context.Context) models.VerificationResult {
	if err := v.LoadReference(ctx); err != nil {
		if v.logger != nil {
			v.logger.WarnContext(ctx, "reference descriptor unavailable", "error", err)
		}
		return failed(MsgNoReference)
	}
	v.mu.Lock()
	ref := v.reference
	v.mu.Unlock()

	det, framesOK := v.detect(ctx)
	if det == nil {
		if !framesOK && v.logger != nil {
			v.logger.WarnContext(ctx, "no frame captured on any detection pass")
		}
		return failed(MsgNoFace)
	}

	distance, err := EuclideanDistance(det.Descriptor, ref)
	if err != nil {
		if v.logger != nil {
			v.logger.WarnContext(ctx, "descriptor comparison failed", "error", err)
		}
		return failed(MsgMismatch)
	}
	if distance < v.threshold {
		return models.VerificationResult{Status: models.VerificationSuccess, Distance: distance, Message: MsgVerified}
	}
	res := failed(MsgMismatch)
	res.Distance = distance
	return res
}

// detect folds the ladder, returning the first detection. framesOK is false
// when no pass could even capture a frame.
func (v *Verifier) detect(ctx context.Context) (det *Detection, framesOK bool) {
	for _, opts := range v.ladder {
		if ctx.Err() != nil {
			return nil, framesOK
		}
		d, captured := v.attempt(ctx, opts)
		framesOK = framesOK || captured
		if d != nil {
			return d, true
		}
	}
	return nil, framesOK
}

func (v *Verifier) attempt(ctx context.Context, opts DetectOptions) (*Detection, bool) {
	ctx, span := v.tracer.Start(ctx, tracer.SpanDetectAttempt,
		tracer.Int64(tracer.AttrInputSize, int64(opts.InputSize)),
		tracer.Float64(tracer.AttrScoreThreshold, opts.ScoreThreshold),
	)
	frame, err := v.frames.CaptureFrame(ctx)
	if err != nil {
		span.AddEvent(tracer.EventDetectorFailed)
		span.End(err)
		return nil, false
	}
	det, err := v.detector.DetectSingleFace(ctx, frame, opts)
	if err != nil {
		span.AddEvent(tracer.EventDetectorFailed)
		span.End(err)
		return nil, true
	}
	if det != nil && len(det.Descriptor) == 0 {
		det = nil
	}
	span.SetAttributes(tracer.Bool(tracer.AttrFaceFound, det != nil))
	span.End(nil)
	return det, true
}

// Lock freezes the outcome once monitoring starts. There is no continuous re-verification.
func (v *Verifier) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.locked = true
}

// Reset returns the status to pending for a new session. The reference stays loaded.
func (v *Verifier) Reset() {
	v.mu.Lock()
	v.locked = false
	v.attempts = 0
	v.result = models.VerificationResult{Status: models.VerificationPending}
	v.mu.Unlock()
	v.notify(models.VerificationPending)
}

func (v *Verifier) notify(status models.VerificationStatus) {
	if v.onStatus != nil {
		v.onStatus(status)
	}
}

func failed(msg string) models.VerificationResult {
	return models.VerificationResult{Status: models.VerificationFailed, Message: msg}
}

func resultLabel(res models.VerificationResult) string {
	switch {
	case res.Status == models.VerificationSuccess:
		return "success"
	case res.Message == MsgMismatch:
		return "mismatch"
	case res.Message == MsgNoFace:
		return "no_face"
	default:
		return "error"
	}
}
