package models

// WarningTier is the escalation level shown to the student.
type WarningTier string

const (
	TierFirst       WarningTier = "first"
	TierIncremental WarningTier = "incremental"
	TierFinal       WarningTier = "final"
	TierAutoSubmit  WarningTier = "auto_submit"
)

// Warning is the content of the warning modal.
type Warning struct {
	Tier            WarningTier   `json:"tier"`
	ViolationType   ViolationType `json:"violationType"`
	Title           string        `json:"title"`
	Message         string        `json:"message"`
	Count           int           `json:"count"`
	Limit           int           `json:"limit"`
	ContinueEnabled bool          `json:"continueEnabled"`
}

// EscalationState is the position of an attempt in the escalation state machine.
type EscalationState string

const (
	StateClean          EscalationState = "clean"
	StateWarned         EscalationState = "warned"
	StateFinalWarned    EscalationState = "final_warned"
	StateAutoSubmitting EscalationState = "auto_submitting"
	StateTerminated     EscalationState = "terminated"
)
