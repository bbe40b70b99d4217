package models

import (
	"fmt"

	dErrors "proctor/pkg/domain-errors"
)

const (
	// UnlimitedViolations marks practice-mode tests: warnings only, never auto-submit.
	UnlimitedViolations = -1
	// MaxAllowedViolations bounds a finite tolerance.
	MaxAllowedViolations = 100
	// DefaultAllowedViolations applies when a test record carries no tolerance.
	DefaultAllowedViolations = 2
)

// Policy is the violation tolerance of a single test.
//
//   - AllowedViolations == -1: unlimited, warnings for the first two violations only
//   - AllowedViolations == 0: zero tolerance, the first violation auto-submits
//   - AllowedViolations == N: violations 1..N warn, violation N+1 auto-submits
type Policy struct {
	AllowedViolations int `json:"allowedTabSwitches" yaml:"allowedTabSwitches"`
}

// NewPolicy validates the raw tolerance value supplied by the test record.
func NewPolicy(allowed int) (Policy, error) {
	if allowed != UnlimitedViolations && (allowed < 0 || allowed > MaxAllowedViolations) {
		return Policy{}, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("allowedTabSwitches must be -1 (unlimited) or between 0 and %d", MaxAllowedViolations))
	}
	return Policy{AllowedViolations: allowed}, nil
}

// PolicyFromTest resolves the policy for an optional tolerance field.
func PolicyFromTest(allowed *int) (Policy, error) {
	if allowed == nil {
		return Policy{AllowedViolations: DefaultAllowedViolations}, nil
	}
	return NewPolicy(*allowed)
}

func (p Policy) Unlimited() bool     { return p.AllowedViolations == UnlimitedViolations }
func (p Policy) ZeroTolerance() bool { return p.AllowedViolations == 0 }

func (p Policy) String() string {
	if p.Unlimited() {
		return "unlimited"
	}
	return fmt.Sprintf("%d", p.AllowedViolations)
}
