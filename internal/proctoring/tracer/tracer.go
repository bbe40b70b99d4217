// Package tracer provides a small tracing abstraction for the exam monitor.
//
// Components emit spans through the Tracer interface instead of calling
// OpenTelemetry directly, so tests run against NoopTracer or Recorder
// while production wires OTelTracer.
//
// Implementations:
//   - NoopTracer: does nothing
//   - Recorder: keeps finished spans in memory for assertions
//   - OTelTracer: OpenTelemetry adapter
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks it failed.
	// End must be called exactly once, typically via defer.
	End(err error)

	SetAttributes(attrs ...Attribute)

	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	// Start creates a span and returns a context carrying it.
	//
	// Example:
	//   ctx, span := t.Start(ctx, tracer.SpanVerify,
	//       tracer.Int64(tracer.AttrAttempt, 1),
	//   )
	//   defer span.End(nil)
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanVerify        = "identity.verify"
	SpanDetectAttempt = "identity.detect_attempt"
	SpanLoadReference = "identity.load_reference"
	SpanAutoSubmit    = "escalation.auto_submit"
	SpanBypassVerify  = "bypass.verify_otp"
)

// Attribute keys.
const (
	AttrAttempt        = "attempt"
	AttrInputSize      = "detector.input_size"
	AttrScoreThreshold = "detector.score_threshold"
	AttrFaceFound      = "face.found"
	AttrDistance       = "face.distance"
	AttrMatched        = "face.matched"
	AttrTestID         = "test_id"
	AttrViolationCount = "violation_count"
)

// Event names.
const (
	EventDetectorFailed = "detector.failed"
)
