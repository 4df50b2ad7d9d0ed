package lab

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by repositories when no record matches the id.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique key is already taken or a write
	// carries a stale VersionID.
	ErrConflict = errors.New("conflict")
)

// ValidationError reports malformed or out-of-invariant entity data.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func required(field string) error {
	return &ValidationError{Field: field, Reason: "is required"}
}

// InvalidTransitionError reports a status edge that the entity's state
// machine does not permit.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s for %s", e.From, e.To, e.Entity)
}

// MissingAssignmentError is returned when a sample is collected without a
// technician.
type MissingAssignmentError struct {
	SampleID string
}

func (e *MissingAssignmentError) Error() string {
	if e.SampleID == "" {
		return "technician assignment is required to collect a sample"
	}
	return fmt.Sprintf("sample %s: technician assignment is required to collect", e.SampleID)
}

// MissingReviewerError is returned when a result is completed without a
// reviewing technician.
type MissingReviewerError struct {
	ResultID string
}

func (e *MissingReviewerError) Error() string {
	if e.ResultID == "" {
		return "reviewing technician is required to complete a result"
	}
	return fmt.Sprintf("result %s: reviewing technician is required to complete", e.ResultID)
}
