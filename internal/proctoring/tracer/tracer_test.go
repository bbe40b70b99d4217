package tracer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"proctor/internal/proctoring/tracer"
)

func TestNoopTracer_Start(t *testing.T) {
	tr := tracer.NewNoop()
	ctx := context.Background()

	newCtx, span := tr.Start(ctx, tracer.SpanVerify, tracer.Int64(tracer.AttrAttempt, 1))

	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)
	span.SetAttributes(tracer.Bool(tracer.AttrMatched, true))
	span.AddEvent(tracer.EventDetectorFailed)
	span.End(errors.New("ignored"))
}

func TestRecorder(t *testing.T) {
	rec := tracer.NewRecorder()
	failure := errors.New("no face")

	_, outer := rec.Start(context.Background(), tracer.SpanVerify, tracer.String(tracer.AttrTestID, "t-1"))
	_, inner := rec.Start(context.Background(), tracer.SpanDetectAttempt, tracer.Int64(tracer.AttrInputSize, 512))
	inner.AddEvent(tracer.EventDetectorFailed)
	inner.End(failure)
	outer.SetAttributes(tracer.Bool(tracer.AttrMatched, false))
	outer.End(nil)

	spans := rec.Spans()
	require.Len(t, spans, 2)
	assert.Equal(t, tracer.SpanDetectAttempt, spans[0].Name)
	assert.Equal(t, int64(512), spans[0].Attributes[tracer.AttrInputSize])
	assert.Equal(t, []string{tracer.EventDetectorFailed}, spans[0].Events)
	assert.ErrorIs(t, spans[0].Err, failure)

	verify := rec.Named(tracer.SpanVerify)
	require.Len(t, verify, 1)
	assert.Equal(t, false, verify[0].Attributes[tracer.AttrMatched])
	assert.Equal(t, "t-1", verify[0].Attributes[tracer.AttrTestID])
}

func TestOTelTracer_WithInjectedTracer(t *testing.T) {
	tr := tracer.NewOTel(tracer.WithOTelTracer(noop.NewTracerProvider().Tracer("test")))

	ctx, span := tr.Start(context.Background(), tracer.SpanAutoSubmit,
		tracer.Int64(tracer.AttrViolationCount, 3),
		tracer.Float64(tracer.AttrDistance, 0.42),
		tracer.Duration("grace", 2*time.Second),
	)
	require.NotNil(t, ctx)
	span.SetAttributes(tracer.String("k", "v"))
	span.AddEvent("submitted")
	span.End(errors.New("rejected"))
}

func TestAttributeConstructors(t *testing.T) {
	t.Run("Duration", func(t *testing.T) {
		attr := tracer.Duration("latency", 150*time.Millisecond)
		assert.Equal(t, "latency", attr.Key)
		assert.Equal(t, int64(150), attr.Value)
	})

	t.Run("Float64", func(t *testing.T) {
		attr := tracer.Float64(tracer.AttrDistance, 0.5)
		assert.Equal(t, 0.5, attr.Value)
	})
}
