// Package monitor owns the lifecycle of one proctored exam attempt: the
// permission phase, the entry gate, the detector set and the imperative
// handle the session host drives.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"proctor/internal/proctoring/bypass"
	"proctor/internal/proctoring/detectors"
	"proctor/internal/proctoring/escalation"
	"proctor/internal/proctoring/identity"
	"proctor/internal/proctoring/metrics"
	"proctor/internal/proctoring/models"
	"proctor/internal/proctoring/permission"
	"proctor/internal/proctoring/tracer"
	"proctor/pkg/domain"
	dErrors "proctor/pkg/domain-errors"
	"proctor/pkg/platform/scheduler"
)

var (
	// ErrSubmissionFailed wraps any error the host returns from OnSubmit.
	ErrSubmissionFailed = errors.New("submission failed")
	// ErrGateNotMet is returned by EnterMonitoring while neither entry path is satisfied.
	ErrGateNotMet = dErrors.New(dErrors.CodePolicyViolation, "entry requirements not met")
	// ErrDisabled is returned when an operation needs the monitor enabled.
	ErrDisabled = dErrors.New(dErrors.CodeConflict, "monitor is disabled")
	// ErrNoBypass is returned when no OTP verifier was configured.
	ErrNoBypass = dErrors.New(dErrors.CodeForbidden, "bypass entry is not available for this test")
	// ErrAttemptSubmitted is returned by EnterMonitoring after an auto-submit until ResetViolations.
	ErrAttemptSubmitted = dErrors.New(dErrors.CodeConflict, "attempt already submitted")
)

// Phase is the coarse lifecycle position.
type Phase string

const (
	PhaseDisabled    Phase = "disabled"
	PhasePermissions Phase = "permissions"
	PhaseMonitoring  Phase = "monitoring"
	// PhaseSubmitted follows a successful auto-submit. Detectors are torn down;
	// ResetViolations returns the monitor to PhasePermissions for the next attempt.
	PhaseSubmitted Phase = "submitted"
)

// Host is the session host's callback contract.
type Host interface {
	escalation.Host
	// OnExitFullscreen runs after every programmatic fullscreen exit.
	OnExitFullscreen(ctx context.Context)
}

// Deps are the platform ports and collaborators of one monitor.
type Deps struct {
	Scheduler    scheduler.Scheduler
	Window       detectors.Window
	Devices      permission.MediaDevices
	Geolocator   permission.Geolocator
	Preview      permission.PreviewSink
	Descriptors  identity.DescriptorSource
	Frames       identity.FrameSource
	FaceDetector identity.FaceDetector
	// OTP is optional. Without it the bypass path is unavailable.
	OTP       bypass.OTPVerifier
	Host      Host
	Presenter escalation.Presenter
}

func (d Deps) validate() error {
	switch {
	case d.Scheduler == nil:
		return dErrors.New(dErrors.CodeValidation, "scheduler is required")
	case d.Window == nil:
		return dErrors.New(dErrors.CodeValidation, "window is required")
	case d.Devices == nil || d.Geolocator == nil:
		return dErrors.New(dErrors.CodeValidation, "media devices and geolocator are required")
	case d.Descriptors == nil || d.Frames == nil || d.FaceDetector == nil:
		return dErrors.New(dErrors.CodeValidation, "identity ports are required")
	case d.Host == nil:
		return dErrors.New(dErrors.CodeValidation, "host is required")
	}
	return nil
}

// Session is the per-attempt input from the host.
type Session struct {
	TestID domain.TestID
	Policy models.Policy
	// InitialViolationCount and InitialViolations resume an attempt in progress.
	InitialViolationCount int
	InitialViolations     []models.Violation
}

type Option func(*Monitor)

// WithLogger sets the logger for the monitor and everything it builds.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithMetrics sets the metrics instance for the monitor and everything it builds.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) {
		m.metrics = mt
	}
}

// WithTracer sets the tracer passed to the identity verifier and bypass path.
func WithTracer(t tracer.Tracer) Option {
	return func(m *Monitor) {
		m.tracer = t
	}
}

// Monitor composes the acquirer, verifier, bypass path, detectors and
// escalation engine for one attempt.
type Monitor struct {
	deps    Deps
	session Session
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer

	acquirer *permission.Acquirer
	verifier *identity.Verifier
	bypass   *bypass.Path
	engine   *escalation.Engine
	prompt   *escalation.Prompt
	devtools *detectors.DevTools
	reentry  *detectors.Reentry

	mu          sync.Mutex
	ctx         context.Context
	enabled     bool
	phase       Phase
	modalOpen   bool
	teardown    detectors.Teardown
	counted     bool
	exitTimer   scheduler.Timer
	resumeTimer scheduler.Timer
}

// New wires one monitor. It starts disabled.
func New(deps Deps, session Session, cfg Config, opts ...Option) (*Monitor, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	m := &Monitor{
		deps:    deps,
		session: session,
		cfg:     cfg.withDefaults(),
		tracer:  tracer.NewNoop(),
		ctx:     context.Background(),
		phase:   PhaseDisabled,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.acquirer = permission.New(deps.Devices, deps.Geolocator, deps.Preview,
		permission.WithLogger(m.logger),
		permission.WithMetrics(m.metrics),
		permission.WithGeolocationTimeout(m.cfg.GeolocationTimeout),
	)
	m.verifier = identity.New(deps.Descriptors, deps.Frames, deps.FaceDetector,
		identity.WithLogger(m.logger),
		identity.WithMetrics(m.metrics),
		identity.WithTracer(m.tracer),
		identity.WithMatchThreshold(m.cfg.MatchThreshold),
		identity.WithStatusHook(m.onVerificationStatus),
	)

	m.reentry = detectors.NewReentry(deps.Window, deps.Scheduler, m.logger, m.metrics)

	if deps.OTP != nil {
		m.bypass = bypass.New(session.TestID, deps.OTP, m.acquirer, probe{m: m},
			bypass.WithLogger(m.logger),
			bypass.WithTracer(m.tracer),
		)
	}

	m.prompt = escalation.NewPrompt(deps.Scheduler, deps.Presenter, probe{m: m})
	m.prompt.SetRepollInterval(m.cfg.RepollInterval)
	m.prompt.OnResume(m.onResume)

	engineOpts := []escalation.Option{
		escalation.WithLogger(m.logger),
		escalation.WithMetrics(m.metrics),
		escalation.WithGraceDelay(m.cfg.GraceDelay),
		escalation.WithWarningHook(m.onWarning),
	}
	if session.InitialViolationCount > 0 || len(session.InitialViolations) > 0 {
		engineOpts = append(engineOpts, escalation.WithHistory(session.InitialViolationCount, session.InitialViolations))
	}
	m.engine = escalation.NewEngine(deps.Scheduler, submitHost{m: m}, m.prompt, session.Policy, engineOpts...)

	m.devtools = detectors.NewDevTools(deps.Window, deps.Scheduler, m.engine, m)
	m.devtools.SetThreshold(m.cfg.DevToolsThreshold)
	m.devtools.SetInterval(m.cfg.DevToolsInterval)
	m.acquirer.SetRecorder(m.engine)
	return m, nil
}

// SetEnabled gates the whole monitor. Disabling tears down every listener and
// timer, releases every stream and resets permissions and verification.
func (m *Monitor) SetEnabled(ctx context.Context, enabled bool) {
	m.mu.Lock()
	if enabled == m.enabled {
		m.mu.Unlock()
		return
	}
	m.enabled = enabled
	if ctx != nil {
		m.ctx = ctx
	}
	if enabled {
		m.phase = PhasePermissions
		m.mu.Unlock()
		return
	}
	m.phase = PhaseDisabled
	m.mu.Unlock()

	m.stopDetectors()
	m.engine.Disable()
	m.acquirer.Reset()
	m.verifier.Reset()
	if m.bypass != nil {
		m.bypass.Reset()
	}
}

// Phase returns the lifecycle position.
func (m *Monitor) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// SetPermissionModalOpen pauses violation detection while a permission prompt is showing.
func (m *Monitor) SetPermissionModalOpen(open bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modalOpen = open
}

// Active implements detectors.Gate.
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled && m.phase == PhaseMonitoring && !m.modalOpen
}

// Submitting implements detectors.Gate.
func (m *Monitor) Submitting() bool {
	return m.engine.Submitting()
}

// Permission phase.

func (m *Monitor) RequestScreenShare(ctx context.Context) bool {
	return m.acquirer.RequestScreenShare(ctx)
}

func (m *Monitor) RequestMicrophone(ctx context.Context) bool {
	return m.acquirer.RequestMicrophone(ctx)
}

func (m *Monitor) RequestCamera(ctx context.Context) bool {
	return m.acquirer.RequestCamera(ctx)
}

func (m *Monitor) RequestLocation(ctx context.Context) bool {
	return m.acquirer.RequestLocation(ctx)
}

// Permissions returns the current channel snapshot.
func (m *Monitor) Permissions() models.PermissionState {
	return m.acquirer.State()
}

// CaptureAndVerify runs the identity check. The camera must be granted first.
func (m *Monitor) CaptureAndVerify(ctx context.Context) (models.VerificationResult, error) {
	if !m.acquirer.State().Camera.Granted() {
		res := models.VerificationResult{Status: models.VerificationFailed, Message: identity.MsgCameraNotActive}
		return res, nil
	}
	res, err := m.verifier.CaptureAndVerify(ctx)
	if err != nil {
		return res, err
	}
	m.acquirer.SetFaceMatch(res)
	return res, nil
}

// VerificationStatus returns the identity status.
func (m *Monitor) VerificationStatus() models.VerificationStatus {
	return m.verifier.Status()
}

// UnlockBypass submits an OTP for the reduced entry path.
func (m *Monitor) UnlockBypass(ctx context.Context, otp string) error {
	if m.bypass == nil {
		return ErrNoBypass
	}
	return m.bypass.Unlock(ctx, otp)
}

// CanEnter reports whether either entry path is satisfied.
func (m *Monitor) CanEnter() bool {
	if m.acquirer.Ready(m.verifier.Status()) {
		return true
	}
	return m.bypass != nil && m.bypass.Ready()
}

// EnterMonitoring leaves the permission phase, freezes the identity outcome,
// enables the engine and installs every detector.
func (m *Monitor) EnterMonitoring(ctx context.Context) error {
	m.mu.Lock()
	if !m.enabled {
		m.mu.Unlock()
		return ErrDisabled
	}
	switch m.phase {
	case PhaseMonitoring:
		m.mu.Unlock()
		return nil
	case PhaseSubmitted:
		m.mu.Unlock()
		return ErrAttemptSubmitted
	}
	m.mu.Unlock()

	if !m.CanEnter() {
		return ErrGateNotMet
	}
	viaBypass := !m.acquirer.Ready(m.verifier.Status())

	m.verifier.Lock()
	m.engine.Enable(ctx)

	fullscreen := detectors.NewFullscreen(ctx, m.deps.Window, m.deps.Scheduler, m.engine, m, m.reentry)
	fullscreen.SetInterval(m.cfg.ReentryInterval)
	set := []detectors.Detector{
		m.visibility(),
		fullscreen,
		m.devtools,
		detectors.NewClipboardGuard(m.deps.Window),
		detectors.NewKeyboard(m.deps.Window),
	}

	m.mu.Lock()
	m.phase = PhaseMonitoring
	m.ctx = ctx
	m.mu.Unlock()

	var td detectors.Teardown
	for _, d := range set {
		td.Add(d.Start())
	}
	m.mu.Lock()
	m.teardown = td
	m.counted = m.metrics != nil
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.IncrementActiveMonitors()
	}
	if m.logger != nil {
		m.logger.InfoContext(ctx, "monitoring started",
			"test_id", m.session.TestID.String(),
			"policy", m.session.Policy.String(),
			"via_bypass", viaBypass,
			"detectors", td.Len(),
			"event", "monitoring_started",
			"log_type", "audit",
		)
	}
	return nil
}

func (m *Monitor) visibility() *detectors.VisibilityFocus {
	d := detectors.NewVisibilityFocus(m.deps.Window, m.deps.Scheduler, m.engine, m)
	d.SetInterval(m.cfg.TrackInterval)
	d.OnRecover = func() { m.reentry.Attempt(m.context()) }
	return d
}

func (m *Monitor) stopDetectors() {
	m.mu.Lock()
	counted := m.counted
	m.counted = false
	td := m.teardown
	m.teardown = detectors.Teardown{}
	timers := []scheduler.Timer{m.exitTimer, m.resumeTimer}
	m.exitTimer, m.resumeTimer = nil, nil
	m.mu.Unlock()

	td.Run()
	for _, t := range timers {
		if t != nil {
			t.Stop()
		}
	}
	if counted {
		m.metrics.DecrementActiveMonitors()
	}
}

// Imperative handle.

// RequestFullscreen enters fullscreen on behalf of the host and clears the re-entry backoff.
func (m *Monitor) RequestFullscreen(ctx context.Context) error {
	m.reentry.Reset()
	if m.deps.Window.Fullscreen() {
		return nil
	}
	return m.deps.Window.RequestFullscreen(ctx)
}

// ExitFullscreen leaves fullscreen and always notifies the host, even when the
// platform call fails.
func (m *Monitor) ExitFullscreen(ctx context.Context) error {
	var err error
	if m.deps.Window.Fullscreen() {
		err = m.deps.Window.ExitFullscreen(ctx)
	}
	m.deps.Host.OnExitFullscreen(ctx)
	if err != nil && m.logger != nil {
		m.logger.WarnContext(ctx, "fullscreen exit failed", "error", err)
	}
	return err
}

// ResetViolations clears the ledger between attempts. After an auto-submit it
// also returns the monitor to the permission phase so EnterMonitoring
// reinstalls the detectors.
func (m *Monitor) ResetViolations() {
	m.engine.Reset()
	m.engine.SetPolicy(m.session.Policy)
	m.mu.Lock()
	if m.phase == PhaseSubmitted {
		m.phase = PhasePermissions
	}
	m.mu.Unlock()
}

func (m *Monitor) ViolationCount() int {
	return m.engine.Count()
}

func (m *Monitor) Violations() []models.Violation {
	return m.engine.Violations()
}

func (m *Monitor) EscalationState() models.EscalationState {
	return m.engine.State()
}

// CurrentWarning returns the visible warning, if any.
func (m *Monitor) CurrentWarning() (models.Warning, bool) {
	return m.prompt.Current()
}

// ContinueWarning dismisses the visible warning when its condition has cleared.
func (m *Monitor) ContinueWarning() error {
	return m.prompt.Continue()
}

// MarkSubmitting is set by the host around a manual submission so fullscreen
// exits are not counted and no auto-submit is scheduled.
func (m *Monitor) MarkSubmitting(submitting bool) {
	m.engine.SetSubmitting(submitting)
}

// SubmitError returns the last error from an automatic submission.
func (m *Monitor) SubmitError() error {
	return m.engine.SubmitError()
}

// Record exposes the shared recorder, e.g. for host-observed violations.
func (m *Monitor) Record(violationType models.ViolationType, details string) bool {
	return m.engine.Record(violationType, details, detectors.BehavioralCooldown)
}

func (m *Monitor) onWarning(w models.Warning) {
	if w.ViolationType != models.ViolationFullscreenExit || w.Tier == models.TierAutoSubmit {
		return
	}
	timer := m.deps.Scheduler.AfterFunc(m.cfg.ExitReentryDelay, func() {
		if m.Active() && !m.Submitting() {
			m.reentry.Attempt(m.context())
		}
	})
	m.mu.Lock()
	if m.exitTimer != nil {
		m.exitTimer.Stop()
	}
	m.exitTimer = timer
	m.mu.Unlock()
}

func (m *Monitor) onResume() {
	timer := m.deps.Scheduler.AfterFunc(m.cfg.ResumeReentryDelay, func() {
		if !m.Active() || m.Submitting() {
			return
		}
		m.reentry.Reset()
		m.reentry.Attempt(m.context())
	})
	m.mu.Lock()
	if m.resumeTimer != nil {
		m.resumeTimer.Stop()
	}
	m.resumeTimer = timer
	m.mu.Unlock()
}

func (m *Monitor) onVerificationStatus(status models.VerificationStatus) {
	if m.logger != nil {
		m.logger.Debug("verification status changed", "status", status)
	}
}

func (m *Monitor) context() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx
}

// submitHost wraps host submit errors and stops detection after a successful auto-submit.
type submitHost struct {
	m *Monitor
}

func (h submitHost) OnViolation(ctx context.Context, report models.Report) {
	h.m.deps.Host.OnViolation(ctx, report)
}

func (h submitHost) OnSubmit(ctx context.Context, cancelled bool) error {
	ctx, span := h.m.tracer.Start(ctx, tracer.SpanAutoSubmit,
		tracer.Int64(tracer.AttrViolationCount, int64(h.m.engine.Count())),
		tracer.String(tracer.AttrTestID, h.m.session.TestID.String()),
	)
	err := h.m.deps.Host.OnSubmit(ctx, cancelled)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
		span.End(err)
		return err
	}
	span.End(nil)
	h.m.stopDetectors()
	h.m.mu.Lock()
	if h.m.phase == PhaseMonitoring {
		h.m.phase = PhaseSubmitted
	}
	h.m.mu.Unlock()
	return nil
}

// probe reads live conditions for the warning modal and the bypass gate.
type probe struct {
	m *Monitor
}

func (p probe) DevToolsOpen() bool { return p.m.devtools.Open() }
func (p probe) Open() bool         { return p.m.devtools.Open() }
func (p probe) Fullscreen() bool   { return p.m.deps.Window.Fullscreen() }
