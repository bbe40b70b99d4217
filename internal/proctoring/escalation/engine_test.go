package escalation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"proctor/internal/proctoring/metrics"
	"proctor/internal/proctoring/models"
	"proctor/pkg/platform/scheduler"
)

const cooldown = 1500 * time.Millisecond

type fakeHost struct {
	reports   []models.Report
	submits   []bool
	submitErr error
}

func (h *fakeHost) OnViolation(_ context.Context, r models.Report) { h.reports = append(h.reports, r) }

func (h *fakeHost) OnSubmit(_ context.Context, cancelled bool) error {
	h.submits = append(h.submits, cancelled)
	return h.submitErr
}

type fakePresenter struct {
	shown  []models.Warning
	hidden int
	errors []string
}

func (p *fakePresenter) ShowWarning(w models.Warning) { p.shown = append(p.shown, w) }
func (p *fakePresenter) HideWarning()                 { p.hidden++ }
func (p *fakePresenter) ShowError(msg string)         { p.errors = append(p.errors, msg) }

func (p *fakePresenter) last() models.Warning { return p.shown[len(p.shown)-1] }

type fakeProbe struct {
	devtools   bool
	fullscreen bool
}

func (p *fakeProbe) DevToolsOpen() bool { return p.devtools }
func (p *fakeProbe) Fullscreen() bool   { return p.fullscreen }

type EngineSuite struct {
	suite.Suite
	clock     *scheduler.Manual
	host      *fakeHost
	presenter *fakePresenter
	probe     *fakeProbe
	metrics   *metrics.Metrics
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.clock = scheduler.NewManual(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	s.host = &fakeHost{}
	s.presenter = &fakePresenter{}
	s.probe = &fakeProbe{fullscreen: true}
	s.metrics = metrics.New(prometheus.NewRegistry())
}

func (s *EngineSuite) newEngine(limit int, opts ...Option) *Engine {
	prompt := NewPrompt(s.clock, s.presenter, s.probe)
	opts = append(opts, WithMetrics(s.metrics))
	e := NewEngine(s.clock, s.host, prompt, models.Policy{AllowedViolations: limit}, opts...)
	e.Enable(context.Background())
	return e
}

// violate records a tab switch and steps past the cooldown.
func (s *EngineSuite) violate(e *Engine) bool {
	ok := e.Record(models.ViolationTabSwitch, "", cooldown)
	s.clock.Advance(cooldown)
	return ok
}

func (s *EngineSuite) TestScenario_TwoAllowed() {
	e := s.newEngine(2)

	s.True(s.violate(e))
	s.Equal("First Warning", s.presenter.last().Title)
	s.Equal(models.StateWarned, e.State())

	s.True(s.violate(e))
	s.Equal("Final Warning", s.presenter.last().Title)
	s.Equal(2, s.presenter.last().Count)
	s.Equal(2, s.presenter.last().Limit)
	s.Equal(models.StateFinalWarned, e.State())

	s.True(e.Record(models.ViolationTabSwitch, "", cooldown))
	s.Equal(models.TierAutoSubmit, s.presenter.last().Tier)
	s.Equal(models.StateAutoSubmitting, e.State())
	s.Empty(s.host.submits, "submit waits for the grace delay")

	s.clock.Advance(1999 * time.Millisecond)
	s.Empty(s.host.submits)
	s.clock.Advance(time.Millisecond)
	s.Equal([]bool{true}, s.host.submits)
	s.Equal(models.StateTerminated, e.State())
	s.InDelta(1, testutil.ToFloat64(s.metrics.AutoSubmits), 0)
}

func (s *EngineSuite) TestScenario_Unlimited() {
	e := s.newEngine(models.UnlimitedViolations)
	for i := 0; i < 6; i++ {
		s.True(s.violate(e))
	}
	s.Len(s.presenter.shown, 2, "only the first two violations show a modal")
	s.clock.Advance(10 * time.Second)
	s.Empty(s.host.submits)
	s.Len(s.host.reports, 6, "every violation still reaches the host")
	s.NotEqual(models.StateAutoSubmitting, e.State())
}

func (s *EngineSuite) TestScenario_ZeroTolerance() {
	e := s.newEngine(0)
	s.True(e.Record(models.ViolationWindowSwitch, "", cooldown))
	s.Equal(models.TierAutoSubmit, s.presenter.last().Tier)
	s.False(s.presenter.last().ContinueEnabled)
	s.clock.Advance(2 * time.Second)
	s.Equal([]bool{true}, s.host.submits)
}

func (s *EngineSuite) TestCooldown_DedupAcrossDetectors() {
	e := s.newEngine(5)
	s.True(e.Record(models.ViolationFullscreenExit, "", cooldown))
	s.clock.Advance(200 * time.Millisecond)
	s.False(e.Record(models.ViolationWindowSwitch, "", cooldown))
	s.clock.Advance(1299 * time.Millisecond)
	s.False(e.Record(models.ViolationTabSwitch, "", cooldown))

	s.Equal(1, e.Count())
	s.Len(s.host.reports, 1)
	s.InDelta(1, testutil.ToFloat64(s.metrics.ViolationsSuppressed.WithLabelValues("window_switch")), 0)

	s.clock.Advance(time.Millisecond)
	s.True(e.Record(models.ViolationTabSwitch, "", cooldown))
	s.Equal(2, e.Count())
}

func (s *EngineSuite) TestCooldown_SameTickBurstRecordsOnce() {
	e := s.newEngine(5)
	accepted := 0
	for _, vt := range []models.ViolationType{models.ViolationFullscreenExit, models.ViolationWindowSwitch, models.ViolationTabSwitch} {
		if e.Record(vt, "", cooldown) {
			accepted++
		}
	}
	s.Equal(1, accepted)
}

func (s *EngineSuite) TestLedgerIsOrderedAndReported() {
	e := s.newEngine(5)
	s.violate(e)
	s.False(e.Record(models.ViolationDevToolsOpened, "", 2*time.Second), "the longer cooldown is measured from the last violation")
	s.clock.Advance(500 * time.Millisecond)
	s.Require().True(e.Record(models.ViolationDevToolsOpened, "", 2*time.Second))

	ledger := e.Violations()
	s.Require().Len(ledger, 2)
	s.Equal(1, ledger[0].SequenceCount)
	s.Equal(models.ViolationDevToolsOpened, ledger[1].ViolationType)
	s.Equal("Developer tools opened", ledger[1].Details)

	last := s.host.reports[len(s.host.reports)-1]
	s.Equal(2, last.ViolationCount)
	s.Len(last.Violations, 2)

	ledger[0].Details = "mutated"
	s.Equal("Tab switched", e.Violations()[0].Details, "ledger copies are independent")
}

func (s *EngineSuite) TestDisable_CancelsPendingSubmitAndRejects() {
	e := s.newEngine(0)
	s.True(e.Record(models.ViolationTabSwitch, "", cooldown))
	e.Disable()
	s.clock.Advance(5 * time.Second)
	s.Empty(s.host.submits)
	s.False(e.Record(models.ViolationTabSwitch, "", cooldown))
	s.Equal(1, e.Count())
}

func (s *EngineSuite) TestSubmitFailure_SurfacesGenericErrorKeepsLedger() {
	s.host.submitErr = errors.New("network down")
	e := s.newEngine(0)
	e.Record(models.ViolationTabSwitch, "", cooldown)
	s.clock.Advance(2 * time.Second)

	s.Equal([]string{SubmissionErrorMessage}, s.presenter.errors)
	s.Equal(1, e.Count())
	s.Error(e.SubmitError())
	s.Equal(models.StateAutoSubmitting, e.State())
}

func (s *EngineSuite) TestViolationsAfterAutoSubmitDoNotResubmit() {
	e := s.newEngine(0)
	s.violate(e)
	s.violate(e)
	s.clock.Advance(5 * time.Second)
	s.Equal([]bool{true}, s.host.submits)
	s.Equal(2, e.Count())
}

func (s *EngineSuite) TestHostSubmittingSuppressesAutoSubmit() {
	e := s.newEngine(0)
	e.SetSubmitting(true)
	s.True(e.Record(models.ViolationTabSwitch, "", cooldown))
	s.clock.Advance(5 * time.Second)
	s.Empty(s.host.submits)
	s.True(e.Submitting())
}

func (s *EngineSuite) TestResumeContinuesSequence() {
	history := []models.Violation{{ViolationType: models.ViolationTabSwitch, SequenceCount: 1}}
	e := s.newEngine(2, WithHistory(1, history))
	s.Equal(models.StateWarned, e.State())

	s.True(e.Record(models.ViolationTabSwitch, "", cooldown))
	s.Equal("Final Warning", s.presenter.last().Title)
	s.Equal(2, e.Violations()[1].SequenceCount)
}

func (s *EngineSuite) TestReset() {
	e := s.newEngine(0)
	e.Record(models.ViolationTabSwitch, "", cooldown)
	e.Reset()
	s.clock.Advance(5 * time.Second)
	s.Empty(s.host.submits)
	s.Zero(e.Count())
	s.Empty(e.Violations())
	s.Equal(models.StateClean, e.State())
	s.True(e.Record(models.ViolationTabSwitch, "", cooldown), "cooldown clock is cleared too")
}

func TestPrompt_ConditionGatedContinue(t *testing.T) {
	clock := scheduler.NewManual(time.Now())
	presenter := &fakePresenter{}
	probe := &fakeProbe{devtools: true, fullscreen: true}
	resumed := 0
	prompt := NewPrompt(clock, presenter, probe)
	prompt.OnResume(func() { resumed++ })

	prompt.Show(models.Warning{Tier: models.TierFirst, ViolationType: models.ViolationDevToolsOpened, Count: 1})
	require.False(t, presenter.last().ContinueEnabled)
	assert.ErrorIs(t, prompt.Continue(), ErrConditionPersists)

	probe.devtools = false
	clock.Advance(500 * time.Millisecond)
	assert.True(t, presenter.last().ContinueEnabled, "re-poll enables continue once the condition clears")

	require.NoError(t, prompt.Continue())
	assert.Equal(t, 1, resumed)
	_, visible := prompt.Current()
	assert.False(t, visible)
	assert.Zero(t, clock.Pending(), "re-poll stops when hidden")
}

func TestPrompt_FullscreenGate(t *testing.T) {
	clock := scheduler.NewManual(time.Now())
	presenter := &fakePresenter{}
	probe := &fakeProbe{fullscreen: false}
	prompt := NewPrompt(clock, presenter, probe)

	prompt.Show(models.Warning{Tier: models.TierFinal, ViolationType: models.ViolationFullscreenExit, Count: 2})
	assert.ErrorIs(t, prompt.Continue(), ErrConditionPersists)
	probe.fullscreen = true
	assert.NoError(t, prompt.Continue())
}

func TestPrompt_UngatedAndAutoSubmit(t *testing.T) {
	clock := scheduler.NewManual(time.Now())
	presenter := &fakePresenter{}
	prompt := NewPrompt(clock, presenter, &fakeProbe{devtools: true})

	prompt.Show(models.Warning{Tier: models.TierFirst, ViolationType: models.ViolationTabSwitch, Count: 1})
	assert.True(t, presenter.last().ContinueEnabled)
	assert.Zero(t, clock.Pending(), "tab switch warnings are not re-polled")
	assert.NoError(t, prompt.Continue())

	prompt.Show(models.Warning{Tier: models.TierAutoSubmit, ViolationType: models.ViolationTabSwitch, Count: 3})
	assert.ErrorIs(t, prompt.Continue(), ErrAutoSubmitPending)
}
