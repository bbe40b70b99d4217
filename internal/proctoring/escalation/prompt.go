package escalation

import (
	"errors"
	"sync"
	"time"

	"proctor/internal/proctoring/models"
	"proctor/pkg/platform/scheduler"
)

var (
	// ErrConditionPersists is returned when the student tries to continue while
	// the violating condition (devtools open, fullscreen left) is still present.
	ErrConditionPersists = errors.New("violating condition still present")
	// ErrAutoSubmitPending is returned when the student tries to dismiss the auto_submit warning.
	ErrAutoSubmitPending = errors.New("test is being submitted")
)

// Presenter renders warnings and errors to the student.
type Presenter interface {
	ShowWarning(w models.Warning)
	HideWarning()
	ShowError(msg string)
}

// ConditionProbe reads the live state behind condition-gated warnings.
type ConditionProbe interface {
	DevToolsOpen() bool
	Fullscreen() bool
}

const defaultRepollInterval = 500 * time.Millisecond

// Prompt is the warning modal. For devtools_opened and fullscreen_exit warnings
// it re-polls the probe while visible and keeps Continue disabled until the
// condition clears.
type Prompt struct {
	sched     scheduler.Scheduler
	presenter Presenter
	probe     ConditionProbe
	interval  time.Duration
	onResume  func()

	mu      sync.Mutex
	visible bool
	warning models.Warning
	poll    scheduler.Timer
}

// NewPrompt builds a modal. probe may be nil, in which case no warning is condition-gated.
func NewPrompt(sched scheduler.Scheduler, presenter Presenter, probe ConditionProbe) *Prompt {
	return &Prompt{
		sched:     sched,
		presenter: presenter,
		probe:     probe,
		interval:  defaultRepollInterval,
	}
}

// SetRepollInterval overrides the 500ms condition re-poll.
func (p *Prompt) SetRepollInterval(d time.Duration) {
	if d > 0 {
		p.interval = d
	}
}

// OnResume registers a hook run after a successful Continue.
func (p *Prompt) OnResume(fn func()) {
	p.onResume = fn
}

// Show replaces whatever warning is visible with w.
func (p *Prompt) Show(w models.Warning) {
	gated := p.gated(w)
	w.ContinueEnabled = w.Tier != models.TierAutoSubmit && !(gated && p.conditionPersists(w.ViolationType))

	p.mu.Lock()
	if p.poll != nil {
		p.poll.Stop()
		p.poll = nil
	}
	p.visible = true
	p.warning = w
	if gated {
		p.poll = p.sched.Every(p.interval, p.repoll)
	}
	p.mu.Unlock()

	if p.presenter != nil {
		p.presenter.ShowWarning(w)
	}
}

// Current returns the visible warning, if any.
func (p *Prompt) Current() (models.Warning, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.warning, p.visible
}

// Continue dismisses the warning when allowed.
func (p *Prompt) Continue() error {
	p.mu.Lock()
	if !p.visible {
		p.mu.Unlock()
		return nil
	}
	w := p.warning
	p.mu.Unlock()

	if w.Tier == models.TierAutoSubmit {
		return ErrAutoSubmitPending
	}
	if p.gated(w) && p.conditionPersists(w.ViolationType) {
		return ErrConditionPersists
	}

	p.hide()
	if p.onResume != nil {
		p.onResume()
	}
	return nil
}

// Close hides the modal and stops polling without running the resume hook.
func (p *Prompt) Close() {
	p.hide()
}

func (p *Prompt) hide() {
	p.mu.Lock()
	wasVisible := p.visible
	p.visible = false
	p.warning = models.Warning{}
	if p.poll != nil {
		p.poll.Stop()
		p.poll = nil
	}
	p.mu.Unlock()

	if wasVisible && p.presenter != nil {
		p.presenter.HideWarning()
	}
}

func (p *Prompt) repoll() {
	p.mu.Lock()
	if !p.visible {
		p.mu.Unlock()
		return
	}
	w := p.warning
	p.mu.Unlock()

	enabled := !p.conditionPersists(w.ViolationType)
	if enabled == w.ContinueEnabled {
		return
	}
	w.ContinueEnabled = enabled

	p.mu.Lock()
	if !p.visible || p.warning.Count != w.Count {
		p.mu.Unlock()
		return
	}
	p.warning = w
	p.mu.Unlock()

	if p.presenter != nil {
		p.presenter.ShowWarning(w)
	}
}

func (p *Prompt) gated(w models.Warning) bool {
	if p.probe == nil || w.Tier == models.TierAutoSubmit {
		return false
	}
	return w.ViolationType == models.ViolationDevToolsOpened || w.ViolationType == models.ViolationFullscreenExit
}

func (p *Prompt) conditionPersists(t models.ViolationType) bool {
	if p.probe == nil {
		return false
	}
	switch t {
	case models.ViolationDevToolsOpened:
		return p.probe.DevToolsOpen()
	case models.ViolationFullscreenExit:
		return !p.probe.Fullscreen()
	default:
		return false
	}
}
