package models

import "time"

// ViolationType is the closed set of integrity breaches the monitor can record.
type ViolationType string

const (
	ViolationTabSwitch          ViolationType = "tab_switch"
	ViolationWindowSwitch       ViolationType = "window_switch"
	ViolationFullscreenExit     ViolationType = "fullscreen_exit"
	ViolationDevToolsOpened     ViolationType = "devtools_opened"
	ViolationScreenShareStopped ViolationType = "screen_share_stopped"
)

// ValidViolationTypes is the single source of truth for all violation kinds.
var ValidViolationTypes = map[ViolationType]bool{
	ViolationTabSwitch:          true,
	ViolationWindowSwitch:       true,
	ViolationFullscreenExit:     true,
	ViolationDevToolsOpened:     true,
	ViolationScreenShareStopped: true,
}

// IsValid checks if the violation type is one of the supported enum values.
func (t ViolationType) IsValid() bool {
	return ValidViolationTypes[t]
}

// DefaultDetails is the fixed detail string attached to each violation kind.
func (t ViolationType) DefaultDetails() string {
	switch t {
	case ViolationTabSwitch:
		return "Tab switched"
	case ViolationWindowSwitch:
		return "Window lost focus"
	case ViolationFullscreenExit:
		return "Fullscreen exited"
	case ViolationDevToolsOpened:
		return "Developer tools opened"
	case ViolationScreenShareStopped:
		return "Screen sharing stopped"
	default:
		return string(t)
	}
}

// Violation is one accepted entry in the append-only ledger.
// SequenceCount is the 1-based position of the entry across the whole attempt,
// including violations carried over when a session is resumed.
type Violation struct {
	Timestamp     time.Time     `json:"timestamp" yaml:"timestamp"`
	ViolationType ViolationType `json:"violationType" yaml:"violationType"`
	Details       string        `json:"details" yaml:"details"`
	SequenceCount int           `json:"tabCount" yaml:"sequenceCount"`
}

// Report is what the Session Host receives after every accepted violation.
type Report struct {
	ViolationCount int         `json:"violationCount"`
	Violation      Violation   `json:"violation"`
	Violations     []Violation `json:"violations"`
}
