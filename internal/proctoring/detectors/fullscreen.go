package detectors

import (
	"context"
	"sync"
	"time"

	"proctor/internal/proctoring/models"
	"proctor/pkg/platform/scheduler"
)

const defaultReentryInterval = 500 * time.Millisecond

// Fullscreen records fullscreen_exit when the page leaves fullscreen while no
// submission is under way. Its periodic and gesture-driven re-entry is purely
// corrective.
type Fullscreen struct {
	win      Window
	sched    scheduler.Scheduler
	rec      Recorder
	gate     Gate
	reentry  *Reentry
	ctx      context.Context
	interval time.Duration

	mu  sync.Mutex
	was bool
}

func NewFullscreen(ctx context.Context, win Window, sched scheduler.Scheduler, rec Recorder, gate Gate, reentry *Reentry) *Fullscreen {
	return &Fullscreen{
		win:      win,
		sched:    sched,
		rec:      rec,
		gate:     gate,
		reentry:  reentry,
		ctx:      ctx,
		interval: defaultReentryInterval,
	}
}

func (d *Fullscreen) Name() string { return "fullscreen" }

// SetInterval overrides the 500ms re-entry poll. Call before Start.
func (d *Fullscreen) SetInterval(interval time.Duration) {
	if interval > 0 {
		d.interval = interval
	}
}

func (d *Fullscreen) Start() Disposer {
	d.mu.Lock()
	d.was = d.win.Fullscreen()
	d.mu.Unlock()

	removeChange := d.win.AddListener(EventFullscreenChange, func(*Event) { d.onChange() }, ListenOptions{})
	removeClick := d.win.AddListener(EventClick, func(*Event) { d.onGesture() }, ListenOptions{})
	removeFocus := d.win.AddListener(EventFocus, func(*Event) { d.tryReenter() }, ListenOptions{})
	poll := d.sched.Every(d.interval, d.tryReenter)

	return once(removeChange, removeClick, removeFocus, func() { poll.Stop() })
}

func (d *Fullscreen) onChange() {
	now := d.win.Fullscreen()
	d.mu.Lock()
	was := d.was
	d.was = now
	d.mu.Unlock()

	if was && !now && !d.gate.Submitting() && d.gate.Active() {
		d.rec.Record(models.ViolationFullscreenExit, "", BehavioralCooldown)
	}
}

func (d *Fullscreen) onGesture() {
	if d.reentry == nil {
		return
	}
	d.reentry.Reset()
	d.tryReenter()
}

func (d *Fullscreen) tryReenter() {
	if d.reentry == nil || d.gate.Submitting() || !d.gate.Active() {
		return
	}
	d.reentry.Attempt(d.ctx)
}
