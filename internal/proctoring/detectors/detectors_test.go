package detectors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"proctor/internal/proctoring/models"
	"proctor/pkg/platform/scheduler"
)

type listener struct {
	fn      func(*Event)
	capture bool
	removed bool
}

type fakeWindow struct {
	listeners    map[EventKind][]*listener
	visible      bool
	focused      bool
	fullscreen   bool
	outer        Size
	inner        Size
	requestErr   error
	requestCalls int
	exitCalls    int
}

func newFakeWindow() *fakeWindow {
	return &fakeWindow{
		listeners:  map[EventKind][]*listener{},
		visible:    true,
		focused:    true,
		fullscreen: true,
		outer:      Size{Width: 1280, Height: 800},
		inner:      Size{Width: 1280, Height: 720},
	}
}

func (w *fakeWindow) AddListener(kind EventKind, fn func(*Event), opts ListenOptions) func() {
	l := &listener{fn: fn, capture: opts.Capture}
	w.listeners[kind] = append(w.listeners[kind], l)
	return func() { l.removed = true }
}

func (w *fakeWindow) active(kind EventKind) int {
	n := 0
	for _, l := range w.listeners[kind] {
		if !l.removed {
			n++
		}
	}
	return n
}

func (w *fakeWindow) dispatch(e *Event) *Event {
	for _, phase := range []bool{true, false} {
		for _, l := range w.listeners[e.Kind] {
			if l.removed || l.capture != phase {
				continue
			}
			l.fn(e)
			if e.PropagationStopped() {
				return e
			}
		}
	}
	return e
}

func (w *fakeWindow) Visible() bool    { return w.visible }
func (w *fakeWindow) Focused() bool    { return w.focused }
func (w *fakeWindow) Fullscreen() bool { return w.fullscreen }
func (w *fakeWindow) OuterSize() Size  { return w.outer }
func (w *fakeWindow) InnerSize() Size  { return w.inner }

func (w *fakeWindow) RequestFullscreen(context.Context) error {
	w.requestCalls++
	if w.requestErr != nil {
		return w.requestErr
	}
	w.fullscreen = true
	return nil
}

func (w *fakeWindow) ExitFullscreen(context.Context) error {
	w.exitCalls++
	w.fullscreen = false
	return nil
}

type record struct {
	violationType models.ViolationType
	details       string
	cooldown      time.Duration
}

// cooldownRecorder applies the shared cooldown the way the engine does.
type cooldownRecorder struct {
	clock    scheduler.Scheduler
	last     time.Time
	accepted []record
	rejected int
}

func (r *cooldownRecorder) Record(vt models.ViolationType, details string, cooldown time.Duration) bool {
	now := r.clock.Now()
	if !r.last.IsZero() && now.Sub(r.last) < cooldown {
		r.rejected++
		return false
	}
	r.last = now
	r.accepted = append(r.accepted, record{violationType: vt, details: details, cooldown: cooldown})
	return true
}

func (r *cooldownRecorder) types() []models.ViolationType {
	out := make([]models.ViolationType, 0, len(r.accepted))
	for _, a := range r.accepted {
		out = append(out, a.violationType)
	}
	return out
}

type fakeGate struct {
	active     bool
	submitting bool
}

func (g *fakeGate) Active() bool     { return g.active }
func (g *fakeGate) Submitting() bool { return g.submitting }

type DetectorSuite struct {
	suite.Suite
	clock *scheduler.Manual
	win   *fakeWindow
	rec   *cooldownRecorder
	gate  *fakeGate
}

func TestDetectorSuite(t *testing.T) {
	suite.Run(t, new(DetectorSuite))
}

func (s *DetectorSuite) SetupTest() {
	s.clock = scheduler.NewManual(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	s.win = newFakeWindow()
	s.rec = &cooldownRecorder{clock: s.clock}
	s.gate = &fakeGate{active: true}
}

func (s *DetectorSuite) hide() {
	s.win.visible = false
	s.win.dispatch(&Event{Kind: EventVisibilityChange})
}

func (s *DetectorSuite) blur() {
	s.win.focused = false
	s.win.dispatch(&Event{Kind: EventBlur})
}

func (s *DetectorSuite) restore() {
	s.win.visible = true
	s.win.focused = true
	s.win.dispatch(&Event{Kind: EventVisibilityChange})
	s.win.dispatch(&Event{Kind: EventFocus})
}

func (s *DetectorSuite) TestVisibilityFocus() {
	s.Run("hidden then blur in the same tick counts once", func() {
		s.SetupTest()
		d := NewVisibilityFocus(s.win, s.clock, s.rec, s.gate)
		stop := d.Start()
		defer stop()

		s.hide()
		s.blur()

		s.Equal([]models.ViolationType{models.ViolationTabSwitch}, s.rec.types())
		s.Equal(1, s.rec.rejected)
	})

	s.Run("edges after the cooldown are separate violations", func() {
		s.SetupTest()
		d := NewVisibilityFocus(s.win, s.clock, s.rec, s.gate)
		stop := d.Start()
		defer stop()

		s.blur()
		s.clock.Advance(200 * time.Millisecond)
		s.restore()
		s.blur()
		s.Len(s.rec.accepted, 1, "200ms apart is inside the cooldown")

		s.clock.Advance(2 * time.Second)
		s.restore()
		s.hide()
		s.Equal([]models.ViolationType{models.ViolationWindowSwitch, models.ViolationTabSwitch}, s.rec.types())
	})

	s.Run("poll never records", func() {
		s.SetupTest()
		d := NewVisibilityFocus(s.win, s.clock, s.rec, s.gate)
		stop := d.Start()
		defer stop()

		s.win.visible = false
		s.win.focused = false
		s.clock.Advance(5 * time.Second)
		s.Empty(s.rec.accepted)

		s.win.dispatch(&Event{Kind: EventVisibilityChange})
		s.Len(s.rec.accepted, 1, "the pending edge is still seen by the handler")
	})

	s.Run("poll notices recovery", func() {
		s.SetupTest()
		recovered := 0
		d := NewVisibilityFocus(s.win, s.clock, s.rec, s.gate)
		d.OnRecover = func() { recovered++ }
		stop := d.Start()
		defer stop()

		s.blur()
		s.win.focused = true
		s.clock.Advance(500 * time.Millisecond)
		s.Equal(1, recovered)
		s.clock.Advance(time.Second)
		s.Equal(1, recovered)
	})

	s.Run("inactive gate suppresses", func() {
		s.SetupTest()
		s.gate.active = false
		d := NewVisibilityFocus(s.win, s.clock, s.rec, s.gate)
		stop := d.Start()
		defer stop()

		s.hide()
		s.Empty(s.rec.accepted)
	})

	s.Run("dispose removes listeners and the poll", func() {
		s.SetupTest()
		d := NewVisibilityFocus(s.win, s.clock, s.rec, s.gate)
		stop := d.Start()
		stop()
		stop()

		s.Equal(0, s.win.active(EventVisibilityChange))
		s.Equal(0, s.win.active(EventBlur))
		s.Equal(0, s.clock.Pending())
		s.hide()
		s.Empty(s.rec.accepted)
	})
}

func (s *DetectorSuite) TestFullscreen() {
	ctx := context.Background()

	s.Run("exit records a violation and re-entry restores silently", func() {
		s.SetupTest()
		reentry := NewReentry(s.win, s.clock, nil, nil)
		d := NewFullscreen(ctx, s.win, s.clock, s.rec, s.gate, reentry)
		stop := d.Start()
		defer stop()

		s.win.fullscreen = false
		s.win.dispatch(&Event{Kind: EventFullscreenChange})
		s.Equal([]models.ViolationType{models.ViolationFullscreenExit}, s.rec.types())

		s.clock.Advance(500 * time.Millisecond)
		s.True(s.win.fullscreen)
		s.Equal(1, s.win.requestCalls)
		s.Len(s.rec.accepted, 1)
	})

	s.Run("exit while submitting is not a violation", func() {
		s.SetupTest()
		s.gate.submitting = true
		d := NewFullscreen(ctx, s.win, s.clock, s.rec, s.gate, NewReentry(s.win, s.clock, nil, nil))
		stop := d.Start()
		defer stop()

		s.win.fullscreen = false
		s.win.dispatch(&Event{Kind: EventFullscreenChange})
		s.clock.Advance(2 * time.Second)

		s.Empty(s.rec.accepted)
		s.Zero(s.win.requestCalls)
	})

	s.Run("entering fullscreen is not a violation", func() {
		s.SetupTest()
		s.win.fullscreen = false
		d := NewFullscreen(ctx, s.win, s.clock, s.rec, s.gate, nil)
		stop := d.Start()
		defer stop()

		s.win.fullscreen = true
		s.win.dispatch(&Event{Kind: EventFullscreenChange})
		s.Empty(s.rec.accepted)
	})

	s.Run("refused re-entry backs off and a click resets", func() {
		s.SetupTest()
		s.win.requestErr = errors.New("requires user gesture")
		reentry := NewReentry(s.win, s.clock, nil, nil)
		d := NewFullscreen(ctx, s.win, s.clock, s.rec, s.gate, reentry)
		stop := d.Start()
		defer stop()

		s.win.fullscreen = false
		s.win.dispatch(&Event{Kind: EventFullscreenChange})

		s.clock.Advance(500 * time.Millisecond) // attempt 1 fails, backoff 500ms
		s.clock.Advance(500 * time.Millisecond) // attempt 2 fails, backoff 1s
		s.clock.Advance(500 * time.Millisecond) // throttled
		s.Equal(2, s.win.requestCalls)
		s.Equal(time.Second, reentry.Backoff())

		s.win.requestErr = nil
		s.win.dispatch(&Event{Kind: EventClick})
		s.Equal(3, s.win.requestCalls)
		s.True(s.win.fullscreen)
		s.Zero(reentry.Backoff())
	})
}

func TestReentryBackoffCaps(t *testing.T) {
	clock := scheduler.NewManual(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	win := newFakeWindow()
	win.fullscreen = false
	win.requestErr = errors.New("denied")
	r := NewReentry(win, clock, nil, nil)

	var backoffs []time.Duration
	for i := range 6 {
		require.False(t, r.Attempt(context.Background()))
		backoffs = append(backoffs, r.Backoff())
		if i < 5 {
			clock.Advance(r.Backoff())
		}
	}
	assert.Equal(t, []time.Duration{
		500 * time.Millisecond, time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second,
	}, backoffs)

	assert.False(t, r.Attempt(context.Background()), "throttled immediately after a failure")
	assert.Equal(t, 6, win.requestCalls)
}

func (s *DetectorSuite) TestDevTools() {
	s.Run("closed devtools never records", func() {
		s.SetupTest()
		d := NewDevTools(s.win, s.clock, s.rec, s.gate)
		stop := d.Start()
		defer stop()

		s.clock.Advance(10 * time.Second)
		s.Empty(s.rec.accepted)
		s.False(d.Open())
	})

	s.Run("open devtools records every two seconds", func() {
		s.SetupTest()
		d := NewDevTools(s.win, s.clock, s.rec, s.gate)
		stop := d.Start()
		defer stop()

		s.win.outer = Size{Width: 1280 + DevToolsThreshold + 1, Height: 800}
		s.win.inner = Size{Width: 1280, Height: 800}
		s.True(d.Open())

		s.clock.Advance(4 * time.Second)
		s.Len(s.rec.accepted, 2)
		for _, a := range s.rec.accepted {
			s.Equal(models.ViolationDevToolsOpened, a.violationType)
			s.Equal(DevToolsCooldown, a.cooldown)
		}
	})

	s.Run("delta at the threshold is not open", func() {
		s.SetupTest()
		d := NewDevTools(s.win, s.clock, s.rec, s.gate)
		s.win.outer = Size{Width: 1000, Height: 900 + DevToolsThreshold}
		s.win.inner = Size{Width: 1000, Height: 900}
		s.False(d.Open())
	})

	s.Run("detection is independent of fullscreen", func() {
		s.SetupTest()
		s.win.fullscreen = false
		d := NewDevTools(s.win, s.clock, s.rec, s.gate)
		stop := d.Start()
		defer stop()

		s.win.outer = Size{Width: 1280, Height: 1000}
		s.win.inner = Size{Width: 1280, Height: 600}
		s.clock.Advance(time.Second)
		s.Len(s.rec.accepted, 1)
	})
}

func (s *DetectorSuite) TestClipboardGuard() {
	g := NewClipboardGuard(s.win)
	stop := g.Start()

	for _, kind := range []EventKind{EventCopy, EventCut, EventPaste, EventContextMenu} {
		s.True(s.win.dispatch(&Event{Kind: kind}).DefaultPrevented(), kind)
	}
	s.Empty(s.rec.accepted)

	stop()
	s.False(s.win.dispatch(&Event{Kind: EventPaste}).DefaultPrevented())
}

func (s *DetectorSuite) TestKeyboardRunsInCapturePhase() {
	targetSaw := false
	s.win.AddListener(EventKeyDown, func(*Event) { targetSaw = true }, ListenOptions{})
	stop := NewKeyboard(s.win).Start()
	defer stop()

	e := s.win.dispatch(&Event{Kind: EventKeyDown, Key: "Escape", Target: TargetEditor})
	s.True(e.DefaultPrevented())
	s.False(targetSaw)

	e = s.win.dispatch(&Event{Kind: EventKeyDown, Key: "a", Target: TargetEditor})
	s.False(e.DefaultPrevented())
	s.True(targetSaw)
}

func TestShouldBlock(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  bool
	}{
		{"escape anywhere", Event{Kind: EventKeyDown, Key: "Escape"}, true},
		{"escape in editor", Event{Kind: EventKeyDown, Key: "Escape", Target: TargetEditor}, true},
		{"f11 in text input", Event{Kind: EventKeyDown, Key: "F11", Target: TargetTextInput}, true},
		{"f12 in editor", Event{Kind: EventKeyDown, Key: "F12", Target: TargetEditor}, true},
		{"f5 keyup in editor", Event{Kind: EventKeyUp, Key: "F5", Target: TargetEditor}, true},
		{"ctrl shift i in editor", Event{Kind: EventKeyDown, Key: "I", Ctrl: true, Shift: true, Target: TargetEditor}, true},
		{"ctrl shift j lowercase", Event{Kind: EventKeyDown, Key: "j", Ctrl: true, Shift: true, Target: TargetEditor}, true},
		{"cmd option c", Event{Kind: EventKeyDown, Key: "c", Meta: true, Alt: true, Target: TargetEditor}, true},
		{"ctrl c copy in editor", Event{Kind: EventKeyDown, Key: "c", Ctrl: true, Target: TargetEditor}, false},
		{"typing in editor", Event{Kind: EventKeyDown, Key: "x", Target: TargetEditor}, false},
		{"enter in text input", Event{Kind: EventKeyDown, Key: "Enter", Target: TargetTextInput}, false},
		{"tab outside editor", Event{Kind: EventKeyDown, Key: "Tab"}, false},
		{"letter outside editor", Event{Kind: EventKeyDown, Key: "a"}, true},
		{"keyup outside editor", Event{Kind: EventKeyUp, Key: "a"}, false},
		{"not a key event", Event{Kind: EventClick}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.event
			assert.Equal(t, tt.want, ShouldBlock(&e))
		})
	}
}

func TestTeardownRunsInReverse(t *testing.T) {
	var order []int
	var td Teardown
	td.Add(func() { order = append(order, 1) })
	td.Add(nil)
	td.Add(func() { order = append(order, 2) })
	require.Equal(t, 2, td.Len())

	td.Run()
	td.Run()

	assert.Equal(t, []int{2, 1}, order)
	assert.Zero(t, td.Len())
}
