package models

import "time"

// PolicyResponse is what the monitor reads before an attempt starts.
type PolicyResponse struct {
	TestID             string `json:"testId"`
	Title              string `json:"title"`
	AllowedTabSwitches int    `json:"allowedTabSwitches"`
	Practice           bool   `json:"practice"`
	BypassAvailable    bool   `json:"bypassAvailable"`
}

type VerifyOTPResponse struct {
	Valid bool `json:"valid"`
}

// IssueOTPResponse carries the plaintext code. It is returned exactly once.
type IssueOTPResponse struct {
	TestID    string    `json:"testId"`
	OTP       string    `json:"otp"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type TestResponse struct {
	TestID             string    `json:"testId"`
	Title              string    `json:"title"`
	AllowedTabSwitches *int      `json:"allowedTabSwitches,omitempty"`
	Practice           bool      `json:"practice"`
	UpdatedAt          time.Time `json:"updatedAt"`
}
