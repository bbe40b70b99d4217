package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"proctor/internal/proctoring/detectors"
	"proctor/internal/proctoring/metrics"
	"proctor/internal/proctoring/models"
	"proctor/internal/proctoring/monitor"
	"proctor/internal/proctoring/permission"
	"proctor/pkg/domain"
	"proctor/pkg/platform/scheduler"
)

// Scenario is a scripted exam attempt.
type Scenario struct {
	Name string `yaml:"name"`
	// AllowedTabSwitches mirrors the test record field. Nil means the default of 2.
	AllowedTabSwitches *int   `yaml:"allowedTabSwitches"`
	OTP                string `yaml:"otp"`
	// Surface is what the student picks in the share dialog.
	Surface permission.SurfaceKind `yaml:"surface"`
	// Faces maps a detector input size to the distance of the detected face.
	Faces             map[int]float32 `yaml:"faces"`
	RefuseFullscreen  bool            `yaml:"refuseFullscreen"`
	InitialViolations int             `yaml:"initialViolations"`
	Steps             []Step          `yaml:"steps"`
	Expect            Expect          `yaml:"expect"`
}

// Step is one scripted action. Only the fields the action needs are read.
type Step struct {
	Action string        `yaml:"action"`
	For    time.Duration `yaml:"for"`
	OTP    string        `yaml:"otp"`
	Key    string        `yaml:"key"`
	Target string        `yaml:"target"`
	Ctrl   bool          `yaml:"ctrl"`
	Shift  bool          `yaml:"shift"`
	Pixels int           `yaml:"pixels"`
	Value  bool          `yaml:"value"`
}

// Expect is checked after the last step. Nil fields are not checked.
type Expect struct {
	Violations *int                      `yaml:"violations"`
	Submits    *int                      `yaml:"submits"`
	State      models.EscalationState    `yaml:"state"`
	Warnings   []string                  `yaml:"warnings"`
	Phase      monitor.Phase             `yaml:"phase"`
	Verified   models.VerificationStatus `yaml:"verified"`
}

// Result is what a scenario run observed.
type Result struct {
	Name       string
	Violations []models.Violation
	Submits    []bool
	State      models.EscalationState
	Phase      monitor.Phase
	Verified   models.VerificationStatus
	Warnings   []string
	Errors     []string
	Failures   []string
}

// Passed reports whether every expectation held.
func (r Result) Passed() bool { return len(r.Failures) == 0 }

// LoadScenario decodes a YAML scenario.
func LoadScenario(r io.Reader) (Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return Scenario{}, fmt.Errorf("decoding scenario: %w", err)
	}
	if sc.Name == "" {
		return Scenario{}, errors.New("scenario name is required")
	}
	for i, st := range sc.Steps {
		if _, ok := actions[st.Action]; !ok {
			return Scenario{}, fmt.Errorf("step %d: unknown action %q", i+1, st.Action)
		}
	}
	return sc, nil
}

// Platform is every scripted port of one run.
type Platform struct {
	Clock       *scheduler.Manual
	Window      *Window
	Devices     *Devices
	Geolocator  *Geolocator
	Preview     *Preview
	Faces       *Faces
	Descriptors *Descriptors
	OTP         *OTP
	Host        *Host
	Presenter   *Presenter
}

// NewPlatform builds a platform where every capability succeeds.
func NewPlatform(start time.Time) *Platform {
	return &Platform{
		Clock:       scheduler.NewManual(start),
		Window:      NewWindow(),
		Devices:     NewDevices(),
		Geolocator:  &Geolocator{Position: permission.Position{Latitude: 51.5072, Longitude: -0.1276, Accuracy: 15}},
		Preview:     &Preview{},
		Faces:       &Faces{ByInputSize: map[int]float32{512: 0.3}},
		Descriptors: &Descriptors{Reference: Descriptor(0)},
		Host:        &Host{},
		Presenter:   &Presenter{},
	}
}

// Deps exposes the platform as monitor dependencies.
func (p *Platform) Deps() monitor.Deps {
	deps := monitor.Deps{
		Scheduler:    p.Clock,
		Window:       p.Window,
		Devices:      p.Devices,
		Geolocator:   p.Geolocator,
		Preview:      p.Preview,
		Descriptors:  p.Descriptors,
		Frames:       p.Preview,
		FaceDetector: p.Faces,
		Host:         p.Host,
		Presenter:    p.Presenter,
	}
	if p.OTP != nil {
		deps.OTP = p.OTP
	}
	return deps
}

type run struct {
	ctx      context.Context
	platform *Platform
	monitor  *monitor.Monitor
}

type action func(r *run, st Step) error

var actions = map[string]action{
	"enable":               func(r *run, _ Step) error { r.monitor.SetEnabled(r.ctx, true); return nil },
	"disable":              func(r *run, _ Step) error { r.monitor.SetEnabled(r.ctx, false); return nil },
	"request_screen_share": func(r *run, _ Step) error { r.monitor.RequestScreenShare(r.ctx); return nil },
	"request_microphone":   func(r *run, _ Step) error { r.monitor.RequestMicrophone(r.ctx); return nil },
	"request_camera":       func(r *run, _ Step) error { r.monitor.RequestCamera(r.ctx); return nil },
	"request_location":     func(r *run, _ Step) error { r.monitor.RequestLocation(r.ctx); return nil },
	"grant_all": func(r *run, _ Step) error {
		r.monitor.RequestScreenShare(r.ctx)
		r.monitor.RequestMicrophone(r.ctx)
		r.monitor.RequestCamera(r.ctx)
		r.monitor.RequestLocation(r.ctx)
		return nil
	},
	"verify": func(r *run, _ Step) error {
		_, err := r.monitor.CaptureAndVerify(r.ctx)
		return err
	},
	"unlock_bypass": func(r *run, st Step) error { return r.monitor.UnlockBypass(r.ctx, st.OTP) },
	"enter": func(r *run, _ Step) error {
		if err := r.monitor.EnterMonitoring(r.ctx); err != nil {
			return err
		}
		return r.monitor.RequestFullscreen(r.ctx)
	},
	"wait":               func(r *run, st Step) error { r.platform.Clock.Advance(st.For); return nil },
	"hide_tab":           func(r *run, _ Step) error { r.platform.Window.HideTab(); return nil },
	"show_tab":           func(r *run, _ Step) error { r.platform.Window.ShowTab(); return nil },
	"blur":               func(r *run, _ Step) error { r.platform.Window.Blur(); return nil },
	"focus":              func(r *run, _ Step) error { r.platform.Window.Focus(); return nil },
	"click":              func(r *run, _ Step) error { r.platform.Window.Click(); return nil },
	"leave_fullscreen":   func(r *run, _ Step) error { r.platform.Window.LeaveFullscreen(); return nil },
	"request_fullscreen": func(r *run, _ Step) error { return r.monitor.RequestFullscreen(r.ctx) },
	"exit_fullscreen":    func(r *run, _ Step) error { return r.monitor.ExitFullscreen(r.ctx) },
	"open_devtools": func(r *run, st Step) error {
		px := st.Pixels
		if px == 0 {
			px = detectors.DevToolsThreshold + 100
		}
		r.platform.Window.OpenDevTools(px)
		return nil
	},
	"close_devtools": func(r *run, _ Step) error { r.platform.Window.CloseDevTools(); return nil },
	"stop_sharing":   func(r *run, _ Step) error { r.platform.Devices.StopSharing(); return nil },
	"key": func(r *run, st Step) error {
		r.platform.Window.Key(st.Key, parseTarget(st.Target), st.Ctrl, st.Shift)
		return nil
	},
	"paste":           func(r *run, _ Step) error { r.platform.Window.Clipboard(detectors.EventPaste); return nil },
	"continue":        func(r *run, _ Step) error { return r.monitor.ContinueWarning() },
	"mark_submitting": func(r *run, st Step) error { r.monitor.MarkSubmitting(st.Value); return nil },
	"reset":           func(r *run, _ Step) error { r.monitor.ResetViolations(); return nil },
}

func parseTarget(s string) detectors.TargetKind {
	switch s {
	case "editor":
		return detectors.TargetEditor
	case "input":
		return detectors.TargetTextInput
	default:
		return detectors.TargetOther
	}
}

// Run replays sc against a fresh platform on a manual clock. Step errors are
// recorded in Result.Errors and do not stop the run. extra is applied after the
// logger and a private metrics registry.
func Run(ctx context.Context, sc Scenario, logger *slog.Logger, extra ...monitor.Option) (Result, error) {
	platform := NewPlatform(time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC))
	platform.Window.RefuseFullscreen = sc.RefuseFullscreen
	if sc.Surface != "" {
		platform.Devices.Surface = sc.Surface
	}
	if sc.Faces != nil {
		platform.Faces.ByInputSize = sc.Faces
	}
	if sc.OTP != "" {
		platform.OTP = &OTP{Code: sc.OTP}
	}

	policy, err := models.PolicyFromTest(sc.AllowedTabSwitches)
	if err != nil {
		return Result{}, err
	}
	session := monitor.Session{
		TestID:                domain.NewTestID(),
		Policy:                policy,
		InitialViolationCount: sc.InitialViolations,
	}
	opts := []monitor.Option{monitor.WithMetrics(metrics.New(prometheus.NewRegistry()))}
	if logger != nil {
		opts = append(opts, monitor.WithLogger(logger))
	}
	opts = append(opts, extra...)
	m, err := monitor.New(platform.Deps(), session, monitor.DefaultConfig(), opts...)
	if err != nil {
		return Result{}, err
	}

	r := &run{ctx: ctx, platform: platform, monitor: m}
	res := Result{Name: sc.Name}
	m.SetEnabled(ctx, true)
	for i, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := actions[st.Action](r, st); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("step %d (%s): %v", i+1, st.Action, err))
		}
	}

	res.Violations = m.Violations()
	res.Submits = append([]bool(nil), platform.Host.Submits...)
	res.State = m.EscalationState()
	res.Phase = m.Phase()
	res.Verified = m.VerificationStatus()
	res.Warnings = platform.Presenter.Titles()
	res.Errors = append(res.Errors, platform.Presenter.Errors...)
	res.Failures = check(sc.Expect, res)
	return res, nil
}

func check(exp Expect, res Result) []string {
	var failures []string
	if exp.Violations != nil && *exp.Violations != len(res.Violations) {
		failures = append(failures, fmt.Sprintf("violations: want %d, got %d", *exp.Violations, len(res.Violations)))
	}
	if exp.Submits != nil && *exp.Submits != len(res.Submits) {
		failures = append(failures, fmt.Sprintf("submits: want %d, got %d", *exp.Submits, len(res.Submits)))
	}
	if exp.State != "" && exp.State != res.State {
		failures = append(failures, fmt.Sprintf("state: want %s, got %s", exp.State, res.State))
	}
	if exp.Phase != "" && exp.Phase != res.Phase {
		failures = append(failures, fmt.Sprintf("phase: want %s, got %s", exp.Phase, res.Phase))
	}
	if exp.Verified != "" && exp.Verified != res.Verified {
		failures = append(failures, fmt.Sprintf("verification: want %s, got %s", exp.Verified, res.Verified))
	}
	if exp.Warnings != nil && !slices.Equal(exp.Warnings, dedupe(res.Warnings)) {
		failures = append(failures, fmt.Sprintf("warnings: want %v, got %v", exp.Warnings, dedupe(res.Warnings)))
	}
	return failures
}

// dedupe collapses consecutive repeats, which come from condition re-polls.
func dedupe(titles []string) []string {
	return slices.Compact(slices.Clone(titles))
}
