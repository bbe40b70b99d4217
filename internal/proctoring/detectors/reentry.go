package detectors

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"proctor/internal/proctoring/metrics"
	"proctor/pkg/platform/scheduler"
)

const (
	reentryMinBackoff = 500 * time.Millisecond
	reentryMaxBackoff = 8 * time.Second
)

// Reentry is the best-effort corrective fullscreen request. It never raises
// violations or surfaces errors. Attempts are skipped while one is in flight,
// and failures back off from 500ms doubling up to 8s so the page does not
// fight browser dialogs. Success or a user gesture resets the backoff.
type Reentry struct {
	win     Window
	sched   scheduler.Scheduler
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu          sync.Mutex
	inFlight    bool
	backoff     time.Duration
	nextAllowed time.Time
}

func NewReentry(win Window, sched scheduler.Scheduler, logger *slog.Logger, m *metrics.Metrics) *Reentry {
	return &Reentry{win: win, sched: sched, logger: logger, metrics: m}
}

// Attempt requests fullscreen unless already fullscreen, throttled, or in flight.
// Returns true only when a request was made and succeeded.
func (r *Reentry) Attempt(ctx context.Context) bool {
	if r.win.Fullscreen() {
		return false
	}
	r.mu.Lock()
	now := r.sched.Now()
	if r.inFlight || now.Before(r.nextAllowed) {
		r.mu.Unlock()
		r.observe("skipped")
		return false
	}
	r.inFlight = true
	r.mu.Unlock()

	err := r.win.RequestFullscreen(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight = false
	if err != nil {
		if r.backoff == 0 {
			r.backoff = reentryMinBackoff
		} else {
			r.backoff = min(r.backoff*2, reentryMaxBackoff)
		}
		r.nextAllowed = r.sched.Now().Add(r.backoff)
		r.observe("failed")
		if r.logger != nil {
			r.logger.DebugContext(ctx, "fullscreen re-entry refused", "error", err, "backoff", r.backoff)
		}
		return false
	}
	r.backoff = 0
	r.nextAllowed = time.Time{}
	r.observe("succeeded")
	return true
}

// Reset clears the backoff, e.g. on a user gesture or an explicit host request.
func (r *Reentry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backoff = 0
	r.nextAllowed = time.Time{}
}

// Backoff returns the current delay before the next allowed attempt.
func (r *Reentry) Backoff() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backoff
}

func (r *Reentry) observe(result string) {
	if r.metrics != nil {
		r.metrics.IncrementFullscreenReentries(result)
	}
}
