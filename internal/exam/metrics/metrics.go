package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for test configuration and OTP operations.
type Metrics struct {
	OTPIssued        prometheus.Counter
	OTPVerifications *prometheus.CounterVec
	OTPLockouts      prometheus.Counter
	PolicyLookups    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OTPIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "proctor_otp_issued_total",
			Help: "Total number of bypass codes issued by instructors",
		}),
		OTPVerifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_otp_verifications_total",
			Help: "Bypass code verifications, labeled by result",
		}, []string{"result"}),
		OTPLockouts: f.NewCounter(prometheus.CounterOpts{
			Name: "proctor_otp_lockouts_total",
			Help: "Verification attempts rejected by the lockout",
		}),
		PolicyLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_policy_lookups_total",
			Help: "Test policy lookups, labeled by mode (practice, finite)",
		}, []string{"mode"}),
	}
}

func (m *Metrics) IncrementOTPIssued() {
	m.OTPIssued.Inc()
}

func (m *Metrics) IncrementOTPVerification(result string) {
	m.OTPVerifications.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementOTPLockouts() {
	m.OTPLockouts.Inc()
}

func (m *Metrics) IncrementPolicyLookup(mode string) {
	m.PolicyLookups.WithLabelValues(mode).Inc()
}
