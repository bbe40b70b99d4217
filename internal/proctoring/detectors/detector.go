// Package detectors contains the independent integrity signal sources. Every
// detector only observes the platform and reports through a shared Recorder;
// none of them touch the violation ledger directly.
package detectors

import "time"

// Shared cooldowns applied through the recorder.
const (
	BehavioralCooldown = 1500 * time.Millisecond
	DevToolsCooldown   = 2 * time.Second
)

// Disposer uninstalls everything a detector installed. Calling it twice is safe.
type Disposer func()

// Detector is one signal source with an explicit install lifecycle.
type Detector interface {
	Name() string
	Start() Disposer
}

// Teardown collects disposers and runs them in reverse install order.
type Teardown struct {
	disposers []Disposer
}

func (t *Teardown) Add(d Disposer) {
	if d != nil {
		t.disposers = append(t.disposers, d)
	}
}

// Run disposes everything collected so far and empties the list.
func (t *Teardown) Run() {
	for i := len(t.disposers) - 1; i >= 0; i-- {
		t.disposers[i]()
	}
	t.disposers = nil
}

func (t *Teardown) Len() int { return len(t.disposers) }

// once wraps fns into a Disposer that only runs the first time.
func once(fns ...func()) Disposer {
	done := false
	return func() {
		if done {
			return
		}
		done = true
		for _, fn := range fns {
			if fn != nil {
				fn()
			}
		}
	}
}
