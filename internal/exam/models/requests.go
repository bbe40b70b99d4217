package models

import (
	"strings"

	pmodels "proctor/internal/proctoring/models"
	"proctor/pkg/validation"
)

// VerifyOTPRequest is the body of POST /tests/{testID}/otp/verify.
type VerifyOTPRequest struct {
	OTP string `json:"otp" validate:"required,len=6,digits"`
}

func (r *VerifyOTPRequest) Normalize() {
	r.OTP = strings.TrimSpace(r.OTP)
}

func (r *VerifyOTPRequest) Validate() error {
	return validation.Validate(r)
}

// UpsertTestRequest is the body of PUT /admin/tests/{testID}.
type UpsertTestRequest struct {
	Title              string `json:"title" validate:"required,notblank,max=200"`
	AllowedTabSwitches *int   `json:"allowedTabSwitches"`
	Practice           bool   `json:"practice"`
}

func (r *UpsertTestRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
}

func (r *UpsertTestRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	_, err := pmodels.PolicyFromTest(r.AllowedTabSwitches)
	return err
}
