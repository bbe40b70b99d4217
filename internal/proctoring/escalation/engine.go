package escalation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"proctor/internal/proctoring/metrics"
	"proctor/internal/proctoring/models"
	"proctor/pkg/platform/scheduler"
)

// Host receives ledger flushes and submit requests. It is the Session Host's
// side of the callback contract.
type Host interface {
	OnViolation(ctx context.Context, report models.Report)
	OnSubmit(ctx context.Context, cancelledDueToViolation bool) error
}

// SubmissionErrorMessage is the generic text shown when the host rejects a submit.
const SubmissionErrorMessage = "Failed to submit the test. Please try again."

const defaultGraceDelay = 2 * time.Second

type Option func(*Engine)

// WithLogger sets the logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics sets the metrics instance for the engine.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithGraceDelay overrides the 2s window between the auto_submit warning and the submit callback.
func WithGraceDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.graceDelay = d
		}
	}
}

// WithHistory seeds the ledger when resuming an in-progress attempt. count may
// exceed len(history) when the host only kept the tally.
func WithHistory(count int, history []models.Violation) Option {
	return func(e *Engine) {
		if count < len(history) {
			count = len(history)
		}
		e.count = count
		e.violations = append([]models.Violation(nil), history...)
	}
}

// WithWarningHook registers a callback run after a warning is shown.
func WithWarningHook(fn func(models.Warning)) Option {
	return func(e *Engine) {
		e.onWarning = fn
	}
}

// Engine is the single ViolationRecorder shared by every detector. It owns the
// ledger, the count, the CooldownClock and the escalation state. Detectors never
// mutate any of these directly; they only call Record.
type Engine struct {
	sched      scheduler.Scheduler
	host       Host
	prompt     *Prompt
	logger     *slog.Logger
	metrics    *metrics.Metrics
	graceDelay time.Duration
	onWarning  func(models.Warning)

	mu              sync.Mutex
	ctx             context.Context
	policy          models.Policy
	enabled         bool
	hostSubmitting  bool
	lastViolationAt time.Time
	count           int
	violations      []models.Violation
	state           models.EscalationState
	submitTimer     scheduler.Timer
	submitErr       error
}

// NewEngine builds a disabled engine. Call Enable before detectors start.
func NewEngine(sched scheduler.Scheduler, host Host, prompt *Prompt, policy models.Policy, opts ...Option) *Engine {
	e := &Engine{
		sched:      sched,
		host:       host,
		prompt:     prompt,
		policy:     policy,
		graceDelay: defaultGraceDelay,
		state:      models.StateClean,
		ctx:        context.Background(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.count > 0 {
		e.state = resumedState(policy, e.count)
	}
	return e
}

// resumedState replays the classification of the last carried-over violation.
func resumedState(policy models.Policy, count int) models.EscalationState {
	state := models.StateClean
	for i := 1; i <= count; i++ {
		d := Classify(policy, i)
		if d.Outcome == OutcomeAutoSubmit {
			// A resumed attempt is never auto-submitted retroactively.
			return models.StateFinalWarned
		}
		state = Next(state, d)
	}
	return state
}

// Enable starts accepting violations. ctx is passed to host callbacks.
func (e *Engine) Enable(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ctx != nil {
		e.ctx = ctx
	}
	e.enabled = true
}

// Disable stops accepting violations and cancels a pending auto-submit. Any
// timer callback that still fires after Disable is a no-op.
func (e *Engine) Disable() {
	e.mu.Lock()
	e.enabled = false
	if e.submitTimer != nil {
		e.submitTimer.Stop()
		e.submitTimer = nil
	}
	e.mu.Unlock()
	if e.prompt != nil {
		e.prompt.Close()
	}
}

// Enabled reports whether Record currently accepts violations.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// SetPolicy swaps the tolerance, e.g. after the test record is refreshed.
func (e *Engine) SetPolicy(policy models.Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy = policy
}

// SetSubmitting marks a host-initiated submission in progress. While set, no
// auto-submit is scheduled and fullscreen exits are not violations.
func (e *Engine) SetSubmitting(submitting bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hostSubmitting = submitting
}

// Submitting reports whether any submission, host-initiated or automatic, is under way.
func (e *Engine) Submitting() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hostSubmitting || e.state == models.StateAutoSubmitting || e.state == models.StateTerminated
}

// Record is the single entry point for violation candidates. The cooldown clock
// is updated before anything is reported, so a second detector firing in the
// same tick always observes the new timestamp. Returns false when rejected.
func (e *Engine) Record(violationType models.ViolationType, details string, cooldown time.Duration) bool {
	if details == "" {
		details = violationType.DefaultDetails()
	}

	e.mu.Lock()
	if !e.enabled {
		e.mu.Unlock()
		return false
	}
	now := e.sched.Now()
	if !e.lastViolationAt.IsZero() && now.Sub(e.lastViolationAt) < cooldown {
		e.mu.Unlock()
		if e.metrics != nil {
			e.metrics.IncrementViolationsSuppressed(string(violationType))
		}
		return false
	}

	e.lastViolationAt = now
	e.count++
	violation := models.Violation{
		Timestamp:     now,
		ViolationType: violationType,
		Details:       details,
		SequenceCount: e.count,
	}
	e.violations = append(e.violations, violation)
	report := models.Report{
		ViolationCount: e.count,
		Violation:      violation,
		Violations:     append([]models.Violation(nil), e.violations...),
	}

	policy := e.policy
	decision := Classify(policy, e.count)
	previous := e.state
	e.state = Next(e.state, decision)
	scheduleSubmit := decision.Outcome == OutcomeAutoSubmit &&
		previous != models.StateAutoSubmitting && previous != models.StateTerminated &&
		!e.hostSubmitting
	if decision.Outcome == OutcomeAutoSubmit && !scheduleSubmit {
		// Already submitting: keep recording, no second modal or submit.
		decision = Decision{Outcome: OutcomeNone}
		e.state = previous
	}
	if scheduleSubmit {
		e.submitTimer = e.sched.AfterFunc(e.graceDelay, e.fireSubmit)
	}
	ctx := e.ctx
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.IncrementViolationsRecorded(string(violationType))
	}
	if e.logger != nil {
		e.logger.InfoContext(ctx, "violation recorded",
			"violation_type", violationType,
			"violation_count", violation.SequenceCount,
			"policy", policy.String(),
			"outcome", decision.Outcome.String(),
			"event", "violation_recorded",
			"log_type", "audit",
		)
	}

	if e.host != nil {
		e.host.OnViolation(ctx, report)
	}

	if decision.Outcome != OutcomeNone {
		warning := BuildWarning(decision, policy, violation)
		if e.prompt != nil {
			e.prompt.Show(warning)
		}
		if e.metrics != nil {
			e.metrics.IncrementWarningsShown(string(warning.Tier))
		}
		if e.onWarning != nil {
			e.onWarning(warning)
		}
	}
	return true
}

func (e *Engine) fireSubmit() {
	e.mu.Lock()
	if !e.enabled || e.state != models.StateAutoSubmitting {
		e.mu.Unlock()
		return
	}
	e.submitTimer = nil
	ctx := e.ctx
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.IncrementAutoSubmits()
	}
	var err error
	if e.host != nil {
		err = e.host.OnSubmit(ctx, true)
	}

	e.mu.Lock()
	e.submitErr = err
	if err == nil {
		e.state = models.StateTerminated
	}
	e.mu.Unlock()

	if err == nil {
		return
	}
	if e.metrics != nil {
		e.metrics.IncrementSubmitFailures()
	}
	if e.logger != nil {
		e.logger.ErrorContext(ctx, "auto-submit rejected by session host", "error", err)
	}
	if e.prompt != nil && e.prompt.presenter != nil {
		e.prompt.presenter.ShowError(SubmissionErrorMessage)
	}
}

// Reset clears the ledger between attempts and cancels any pending auto-submit.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.count = 0
	e.violations = nil
	e.lastViolationAt = time.Time{}
	e.state = models.StateClean
	e.submitErr = nil
	e.hostSubmitting = false
	if e.submitTimer != nil {
		e.submitTimer.Stop()
		e.submitTimer = nil
	}
	e.mu.Unlock()
	if e.prompt != nil {
		e.prompt.Close()
	}
}

func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

// Violations returns a copy of the ordered ledger.
func (e *Engine) Violations() []models.Violation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Violation(nil), e.violations...)
}

func (e *Engine) State() models.EscalationState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SubmitError returns the last error returned by the host submit callback.
func (e *Engine) SubmitError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submitErr
}
