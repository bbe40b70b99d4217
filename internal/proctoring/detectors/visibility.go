package detectors

import (
	"sync"
	"time"

	"proctor/internal/proctoring/models"
	"proctor/pkg/platform/scheduler"
)

const defaultTrackInterval = 500 * time.Millisecond

// VisibilityFocus records tab_switch on a visible to hidden transition and
// window_switch on a focused to unfocused transition. Violations come only
// from the transition handlers. The poll only notices recovery.
type VisibilityFocus struct {
	win      Window
	sched    scheduler.Scheduler
	rec      Recorder
	gate     Gate
	interval time.Duration
	// OnRecover, if set, runs when the page becomes visible and focused again.
	OnRecover func()

	mu      sync.Mutex
	visible bool
	focused bool
}

func NewVisibilityFocus(win Window, sched scheduler.Scheduler, rec Recorder, gate Gate) *VisibilityFocus {
	return &VisibilityFocus{win: win, sched: sched, rec: rec, gate: gate, interval: defaultTrackInterval}
}

func (d *VisibilityFocus) Name() string { return "visibility_focus" }

// SetInterval overrides the 500ms recovery poll. Call before Start.
func (d *VisibilityFocus) SetInterval(interval time.Duration) {
	if interval > 0 {
		d.interval = interval
	}
}

func (d *VisibilityFocus) Start() Disposer {
	d.mu.Lock()
	d.visible = d.win.Visible()
	d.focused = d.win.Focused()
	d.mu.Unlock()

	removeVis := d.win.AddListener(EventVisibilityChange, func(*Event) { d.onVisibilityChange() }, ListenOptions{})
	removeBlur := d.win.AddListener(EventBlur, func(*Event) { d.onBlur() }, ListenOptions{})
	removeFocus := d.win.AddListener(EventFocus, func(*Event) { d.track() }, ListenOptions{})
	poll := d.sched.Every(d.interval, d.track)

	return once(removeVis, removeBlur, removeFocus, func() { poll.Stop() })
}

func (d *VisibilityFocus) onVisibilityChange() {
	now := d.win.Visible()
	d.mu.Lock()
	was := d.visible
	d.visible = now
	d.mu.Unlock()

	if was && !now && d.gate.Active() {
		d.rec.Record(models.ViolationTabSwitch, "", BehavioralCooldown)
		return
	}
	if now {
		d.track()
	}
}

func (d *VisibilityFocus) onBlur() {
	now := d.win.Focused()
	d.mu.Lock()
	was := d.focused
	d.focused = now
	d.mu.Unlock()

	if was && !now && d.gate.Active() {
		d.rec.Record(models.ViolationWindowSwitch, "", BehavioralCooldown)
	}
}

// track only ever moves state back to visible or focused, so it can never
// swallow the edge a transition handler is about to see.
func (d *VisibilityFocus) track() {
	visible, focused := d.win.Visible(), d.win.Focused()
	d.mu.Lock()
	recovered := (visible && !d.visible) || (focused && !d.focused)
	if visible {
		d.visible = true
	}
	if focused {
		d.focused = true
	}
	restored := d.visible && d.focused
	d.mu.Unlock()

	if recovered && restored && d.OnRecover != nil && d.gate.Active() {
		d.OnRecover()
	}
}
