package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the exam monitor.
type Metrics struct {
	ViolationsRecorded   *prometheus.CounterVec
	ViolationsSuppressed *prometheus.CounterVec
	WarningsShown        *prometheus.CounterVec
	AutoSubmits          prometheus.Counter
	SubmitFailures       prometheus.Counter
	PermissionRequests   *prometheus.CounterVec
	VerificationAttempts *prometheus.CounterVec
	VerificationLatency  prometheus.Histogram
	FullscreenReentries  *prometheus.CounterVec
	ActiveMonitors       prometheus.Gauge
}

// New registers the monitor collectors on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ViolationsRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_violations_recorded_total",
			Help: "Total number of accepted integrity violations, labeled by type",
		}, []string{"type"}),
		ViolationsSuppressed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_violations_suppressed_total",
			Help: "Violation candidates rejected by the shared cooldown, labeled by type",
		}, []string{"type"}),
		WarningsShown: f.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_warnings_shown_total",
			Help: "Warnings displayed to students, labeled by tier",
		}, []string{"tier"}),
		AutoSubmits: f.NewCounter(prometheus.CounterOpts{
			Name: "proctor_auto_submits_total",
			Help: "Attempts submitted automatically after exceeding the violation policy",
		}),
		SubmitFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "proctor_submit_failures_total",
			Help: "Session host submit callbacks that returned an error",
		}),
		PermissionRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_permission_requests_total",
			Help: "Channel acquisition attempts, labeled by channel and result",
		}, []string{"channel", "result"}),
		VerificationAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_verification_attempts_total",
			Help: "Identity verification outcomes, labeled by result",
		}, []string{"result"}),
		VerificationLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "proctor_verification_latency_seconds",
			Help:    "Duration of the full face detection retry ladder",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		FullscreenReentries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_fullscreen_reentries_total",
			Help: "Corrective fullscreen re-entry attempts, labeled by result",
		}, []string{"result"}),
		ActiveMonitors: f.NewGauge(prometheus.GaugeOpts{
			Name: "proctor_active_monitors",
			Help: "Monitors currently in the monitoring phase",
		}),
	}
}

func (m *Metrics) IncrementViolationsRecorded(violationType string) {
	m.ViolationsRecorded.WithLabelValues(violationType).Inc()
}

func (m *Metrics) IncrementViolationsSuppressed(violationType string) {
	m.ViolationsSuppressed.WithLabelValues(violationType).Inc()
}

func (m *Metrics) IncrementWarningsShown(tier string) {
	m.WarningsShown.WithLabelValues(tier).Inc()
}

func (m *Metrics) IncrementAutoSubmits() {
	m.AutoSubmits.Inc()
}

func (m *Metrics) IncrementSubmitFailures() {
	m.SubmitFailures.Inc()
}

func (m *Metrics) IncrementPermissionRequests(channel, result string) {
	m.PermissionRequests.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) IncrementVerificationAttempts(result string) {
	m.VerificationAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveVerificationLatency(durationSeconds float64) {
	m.VerificationLatency.Observe(durationSeconds)
}

func (m *Metrics) IncrementFullscreenReentries(result string) {
	m.FullscreenReentries.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementActiveMonitors() {
	m.ActiveMonitors.Inc()
}

func (m *Metrics) DecrementActiveMonitors() {
	m.ActiveMonitors.Dec()
}
