// Package scheduler provides the single-writer execution context the exam monitor
// runs on. Every listener callback and timer tick is delivered through a Scheduler,
// so monitor state is only ever touched from one logical thread.
//
// Implementations:
//   - Loop: a goroutine draining a task queue, driven by the wall clock
//   - Manual: a deterministic fake clock for tests; tasks run inline and timers
//     fire only when Advance is called
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a handle to a scheduled one-shot or repeating callback.
type Timer interface {
	// Stop prevents any further invocation of the callback. It reports whether
	// the timer was still active. Stop is safe to call more than once.
	Stop() bool
}

// Scheduler serializes callbacks and owns the notion of "now".
type Scheduler interface {
	Now() time.Time
	// Post queues fn for execution on the scheduler.
	Post(fn func())
	// AfterFunc runs fn once after d.
	AfterFunc(d time.Duration, fn func()) Timer
	// Every runs fn every d until the returned Timer is stopped.
	Every(d time.Duration, fn func()) Timer
}

const defaultQueueSize = 256

// Loop is the production Scheduler. Tasks posted before Run is called are
// buffered; tasks posted after the loop stops are dropped.
type Loop struct {
	tasks chan func()
	done  chan struct{}
	once  sync.Once
}

// NewLoop creates a loop with the given queue size. Zero or negative uses the default.
func NewLoop(queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Loop{
		tasks: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
}

// Run drains the task queue until ctx is cancelled. Blocks.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			fn()
		}
	}
}

func (l *Loop) Now() time.Time { return time.Now() }

func (l *Loop) Post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.stopped.CompareAndSwap(false, true) {
				fn()
			}
		})
	})
	return t
}

func (l *Loop) Every(d time.Duration, fn func()) Timer {
	t := &loopTicker{quit: make(chan struct{})}
	ticker := time.NewTicker(d)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Post(func() {
					if !t.stopped.Load() {
						fn()
					}
				})
			case <-t.quit:
				return
			case <-l.done:
				return
			}
		}
	}()
	return t
}

type loopTimer struct {
	timer   *time.Timer
	stopped atomic.Bool
}

// Stop also covers the window where the timer already fired and its task is
// queued but not yet run: the queued task checks the flag before calling fn.
func (t *loopTimer) Stop() bool {
	t.timer.Stop()
	return t.stopped.CompareAndSwap(false, true)
}

type loopTicker struct {
	quit    chan struct{}
	stopped atomic.Bool
}

func (t *loopTicker) Stop() bool {
	if !t.stopped.CompareAndSwap(false, true) {
		return false
	}
	close(t.quit)
	return true
}
