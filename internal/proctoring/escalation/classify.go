package escalation

import (
	"fmt"

	"proctor/internal/proctoring/models"
)

// Outcome is what the engine must do after accepting a violation.
type Outcome int

const (
	// OutcomeNone records silently.
	OutcomeNone Outcome = iota
	// OutcomeWarn shows a dismissible warning.
	OutcomeWarn
	// OutcomeAutoSubmit shows the auto_submit warning and submits after the grace delay.
	OutcomeAutoSubmit
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWarn:
		return "warn"
	case OutcomeAutoSubmit:
		return "auto_submit"
	default:
		return "none"
	}
}

// Decision is the pure classification of one accepted violation.
type Decision struct {
	Outcome Outcome
	Tier    models.WarningTier
}

// unlimitedWarnings is how many violations get a modal in practice mode.
const unlimitedWarnings = 2

// Classify maps the accepted-violation count against the policy.
// count is the violation's 1-based sequence number.
func Classify(policy models.Policy, count int) Decision {
	if count <= 0 {
		return Decision{Outcome: OutcomeNone}
	}

	switch {
	case policy.Unlimited():
		switch {
		case count == 1:
			return Decision{Outcome: OutcomeWarn, Tier: models.TierFirst}
		case count == unlimitedWarnings:
			return Decision{Outcome: OutcomeWarn, Tier: models.TierFinal}
		default:
			return Decision{Outcome: OutcomeNone}
		}
	case policy.ZeroTolerance():
		return Decision{Outcome: OutcomeAutoSubmit, Tier: models.TierAutoSubmit}
	}

	limit := policy.AllowedViolations
	switch {
	case count < limit && count == 1:
		return Decision{Outcome: OutcomeWarn, Tier: models.TierFirst}
	case count < limit:
		return Decision{Outcome: OutcomeWarn, Tier: models.TierIncremental}
	case count == limit:
		return Decision{Outcome: OutcomeWarn, Tier: models.TierFinal}
	default:
		return Decision{Outcome: OutcomeAutoSubmit, Tier: models.TierAutoSubmit}
	}
}

// Next returns the escalation state after applying d to current.
func Next(current models.EscalationState, d Decision) models.EscalationState {
	if current == models.StateAutoSubmitting || current == models.StateTerminated {
		return current
	}
	switch d.Outcome {
	case OutcomeAutoSubmit:
		return models.StateAutoSubmitting
	case OutcomeWarn:
		if d.Tier == models.TierFinal {
			return models.StateFinalWarned
		}
		return models.StateWarned
	default:
		return current
	}
}

// BuildWarning renders the modal content for a warn or auto-submit decision.
func BuildWarning(d Decision, policy models.Policy, v models.Violation) models.Warning {
	w := models.Warning{
		Tier:          d.Tier,
		ViolationType: v.ViolationType,
		Count:         v.SequenceCount,
		Limit:         policy.AllowedViolations,
	}
	switch d.Tier {
	case models.TierFirst:
		w.Title = "First Warning"
		w.Message = "Please remain focused on the test."
	case models.TierIncremental:
		w.Title = fmt.Sprintf("Warning #%d", v.SequenceCount)
		w.Message = fmt.Sprintf("%d of %d allowed violations used.", v.SequenceCount, policy.AllowedViolations)
	case models.TierFinal:
		w.Title = "Final Warning"
		w.Message = "This is your last allowed violation."
	case models.TierAutoSubmit:
		w.Title = "Test Auto-Submitted"
		w.Message = fmt.Sprintf("Test cancelled due to violations (%d violations detected, limit: %d).",
			v.SequenceCount, policy.AllowedViolations)
	}
	if policy.Unlimited() {
		w.Message = "This is a practice test - switching away is allowed but monitored."
	}
	return w
}
