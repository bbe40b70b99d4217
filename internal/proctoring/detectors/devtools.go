package detectors

import (
	"fmt"
	"time"

	"proctor/internal/proctoring/models"
	"proctor/pkg/platform/scheduler"
)

const (
	defaultDevToolsInterval = time.Second
	// DevToolsThreshold is the outer/inner dimension delta treated as a docked devtools panel.
	DevToolsThreshold = 160
)

// DevTools polls the outer/inner window size delta. While the delta exceeds
// the threshold on either axis each poll reports devtools_opened, gated by the
// dedicated 2s cooldown.
type DevTools struct {
	win       Window
	sched     scheduler.Scheduler
	rec       Recorder
	gate      Gate
	interval  time.Duration
	threshold int
}

func NewDevTools(win Window, sched scheduler.Scheduler, rec Recorder, gate Gate) *DevTools {
	return &DevTools{
		win:       win,
		sched:     sched,
		rec:       rec,
		gate:      gate,
		interval:  defaultDevToolsInterval,
		threshold: DevToolsThreshold,
	}
}

func (d *DevTools) Name() string { return "devtools" }

// SetInterval overrides the 1s poll. Call before Start.
func (d *DevTools) SetInterval(interval time.Duration) {
	if interval > 0 {
		d.interval = interval
	}
}

// SetThreshold overrides the 160px dimension delta.
func (d *DevTools) SetThreshold(px int) {
	if px > 0 {
		d.threshold = px
	}
}

func (d *DevTools) Start() Disposer {
	poll := d.sched.Every(d.interval, d.check)
	return once(func() { poll.Stop() })
}

// Open reports whether the heuristic currently sees devtools.
func (d *DevTools) Open() bool {
	_, open := d.delta()
	return open
}

func (d *DevTools) check() {
	if !d.gate.Active() {
		return
	}
	delta, open := d.delta()
	if !open {
		return
	}
	d.rec.Record(models.ViolationDevToolsOpened,
		fmt.Sprintf("Developer tools opened (window delta %dx%d)", delta.Width, delta.Height),
		DevToolsCooldown)
}

func (d *DevTools) delta() (Size, bool) {
	outer, inner := d.win.OuterSize(), d.win.InnerSize()
	delta := Size{Width: outer.Width - inner.Width, Height: outer.Height - inner.Height}
	return delta, delta.Width > d.threshold || delta.Height > d.threshold
}
