package models

import (
	"time"

	pmodels "proctor/internal/proctoring/models"
	id "proctor/pkg/domain"
	"proctor/pkg/validation"
)

// Source records who wrote a descriptor.
type Source string

const (
	SourceSelf  Source = "self"
	SourceAdmin Source = "admin"
)

// Enrollment is the stored reference face descriptor of one student.
type Enrollment struct {
	UserID     id.UserID
	Descriptor pmodels.Embedding
	Source     Source
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DescriptorRequest is the body of both the self-service and admin writes.
type DescriptorRequest struct {
	Descriptor []float32 `json:"descriptor" validate:"len=128,dive,finite"`
}

func (r *DescriptorRequest) Validate() error {
	return validation.Validate(r)
}

type DescriptorResponse struct {
	UserID     string    `json:"userId"`
	Descriptor []float32 `json:"descriptor"`
	Source     Source    `json:"source"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func NewDescriptorResponse(e *Enrollment) DescriptorResponse {
	return DescriptorResponse{
		UserID:     e.UserID.String(),
		Descriptor: e.Descriptor,
		Source:     e.Source,
		UpdatedAt:  e.UpdatedAt,
	}
}
