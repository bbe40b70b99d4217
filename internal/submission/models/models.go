package models

import (
	"fmt"
	"time"

	pmodels "proctor/internal/proctoring/models"
	id "proctor/pkg/domain"
	dErrors "proctor/pkg/domain-errors"
	"proctor/pkg/platform/middleware/device"
	"proctor/pkg/validation"
)

// Submission is the final record of one attempt, carrying the full ordered
// violation ledger.
type Submission struct {
	AttemptID               id.AttemptID
	TestID                  id.TestID
	UserID                  id.UserID
	ResponsesDigest         string
	ViolationCount          int
	Violations              []pmodels.Violation
	CancelledDueToViolation bool
	AutoSubmit              bool
	SubmittedAt             time.Time
	Device                  device.Info
}

// SubmitRequest is the body of POST /tests/{testID}/submissions.
type SubmitRequest struct {
	AttemptID               string              `json:"attemptId" validate:"required,uuid"`
	ResponsesDigest         string              `json:"responsesDigest" validate:"max=128"`
	ViolationCount          int                 `json:"violationCount" validate:"gte=0"`
	Violations              []pmodels.Violation `json:"violations"`
	CancelledDueToViolation bool                `json:"cancelledDueToViolation"`
	AutoSubmit              bool                `json:"autoSubmit"`
}

// Validate checks the ledger is well formed: known kinds, strictly increasing
// sequence numbers, and a count that covers every entry. The count may exceed
// the entries when the attempt was resumed.
func (r *SubmitRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	if r.ViolationCount < len(r.Violations) {
		return dErrors.New(dErrors.CodeValidation, "violationCount is lower than the number of violations")
	}
	last := 0
	for i, v := range r.Violations {
		if !v.ViolationType.IsValid() {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("violation %d has unknown type %q", i+1, v.ViolationType))
		}
		if v.SequenceCount <= last {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("violation %d is out of order", i+1))
		}
		last = v.SequenceCount
	}
	if last > r.ViolationCount {
		return dErrors.New(dErrors.CodeValidation, "violation sequence exceeds violationCount")
	}
	if r.CancelledDueToViolation && r.ViolationCount == 0 {
		return dErrors.New(dErrors.CodeValidation, "a cancelled attempt must carry violations")
	}
	return nil
}

type SubmissionResponse struct {
	AttemptID               string              `json:"attemptId"`
	TestID                  string              `json:"testId"`
	ResponsesDigest         string              `json:"responsesDigest,omitempty"`
	ViolationCount          int                 `json:"violationCount"`
	Violations              []pmodels.Violation `json:"violations"`
	CancelledDueToViolation bool                `json:"cancelledDueToViolation"`
	AutoSubmit              bool                `json:"autoSubmit"`
	SubmittedAt             time.Time           `json:"submittedAt"`
	Device                  string              `json:"device,omitempty"`
}

func NewSubmissionResponse(s *Submission) SubmissionResponse {
	violations := s.Violations
	if violations == nil {
		violations = []pmodels.Violation{}
	}
	return SubmissionResponse{
		AttemptID:               s.AttemptID.String(),
		TestID:                  s.TestID.String(),
		ResponsesDigest:         s.ResponsesDigest,
		ViolationCount:          s.ViolationCount,
		Violations:              violations,
		CancelledDueToViolation: s.CancelledDueToViolation,
		AutoSubmit:              s.AutoSubmit,
		SubmittedAt:             s.SubmittedAt,
		Device:                  s.Device.Display,
	}
}
