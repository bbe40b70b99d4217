// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "proctor/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a TestID where an AttemptID is expected.
type (
	UserID    uuid.UUID
	TestID    uuid.UUID
	AttemptID uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, API inputs, scenario files).

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user ID")
	return UserID(id), err
}

func ParseTestID(s string) (TestID, error) {
	id, err := parseUUID(s, "test ID")
	return TestID(id), err
}

func ParseAttemptID(s string) (AttemptID, error) {
	id, err := parseUUID(s, "attempt ID")
	return AttemptID(id), err
}

// New functions generate random identifiers.

func NewTestID() TestID       { return TestID(uuid.New()) }
func NewAttemptID() AttemptID { return AttemptID(uuid.New()) }

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id TestID) String() string    { return uuid.UUID(id).String() }
func (id AttemptID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id TestID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id AttemptID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// parseUUID rejects empty, malformed, and nil UUIDs.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "invalid "+label+" format")
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, label+" cannot be nil")
	}
	return id, nil
}
