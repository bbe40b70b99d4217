package tracer

import (
	"context"
	"sync"
)

// FinishedSpan is a span captured by Recorder.
type FinishedSpan struct {
	Name       string
	Attributes map[string]any
	Events     []string
	Err        error
}

// Recorder keeps every ended span in memory.
type Recorder struct {
	mu    sync.Mutex
	spans []FinishedSpan
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	s := &recordedSpan{rec: r, span: FinishedSpan{Name: name, Attributes: map[string]any{}}}
	s.SetAttributes(attrs...)
	return ctx, s
}

// Spans returns the ended spans in end order.
func (r *Recorder) Spans() []FinishedSpan {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]FinishedSpan(nil), r.spans...)
}

// Named returns the ended spans called name.
func (r *Recorder) Named(name string) []FinishedSpan {
	var out []FinishedSpan
	for _, s := range r.Spans() {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

type recordedSpan struct {
	rec  *Recorder
	mu   sync.Mutex
	span FinishedSpan
}

func (s *recordedSpan) End(err error) {
	s.mu.Lock()
	s.span.Err = err
	finished := s.span
	s.mu.Unlock()

	s.rec.mu.Lock()
	s.rec.spans = append(s.rec.spans, finished)
	s.rec.mu.Unlock()
}

func (s *recordedSpan) SetAttributes(attrs ...Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range attrs {
		s.span.Attributes[a.Key] = a.Value
	}
}

func (s *recordedSpan) AddEvent(name string, attrs ...Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.span.Events = append(s.span.Events, name)
}

var (
	_ Tracer = (*Recorder)(nil)
	_ Span   = (*recordedSpan)(nil)
)
