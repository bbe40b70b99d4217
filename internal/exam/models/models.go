package models

import (
	"time"

	pmodels "proctor/internal/proctoring/models"
	id "proctor/pkg/domain"
)

// Test is the configuration record of one exam.
type Test struct {
	ID    id.TestID
	Title string
	// AllowedTabSwitches is nil when the record does not set a tolerance.
	AllowedTabSwitches *int
	Practice           bool
	OTPHash            []byte
	OTPExpiresAt       time.Time
	UpdatedAt          time.Time
}

// Policy resolves the tolerance the monitor enforces. Practice tests never
// auto-submit.
func (t *Test) Policy() (pmodels.Policy, error) {
	if t.Practice {
		return pmodels.Policy{AllowedViolations: pmodels.UnlimitedViolations}, nil
	}
	return pmodels.PolicyFromTest(t.AllowedTabSwitches)
}

// HasActiveOTP reports whether a bypass code can currently be redeemed.
func (t *Test) HasActiveOTP(now time.Time) bool {
	return len(t.OTPHash) > 0 && now.Before(t.OTPExpiresAt)
}

// Lockout tracks failed OTP attempts for one student on one test.
type Lockout struct {
	Key           string
	FailureCount  int
	LastFailureAt time.Time
	LockedUntil   *time.Time
}

// IsLockedAt reports whether the record blocks attempts at now.
func (l *Lockout) IsLockedAt(now time.Time) bool {
	return l.LockedUntil != nil && now.Before(*l.LockedUntil)
}
