// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")
	ErrLocked          = errors.New("resource locked")

	// Infrastructure errors
	ErrConstraintViolation = errors.New("constraint violation")
	ErrTimeout             = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "academic", "student", "finance"
	Op      string // Operation that failed, e.g., "Deliberate", "Upsert"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Academic domain errors
var (
	ErrAcademicYearNotFound     = NewDomainError("academic", "Find", ErrNotFound, "academic year not found")
	ErrSemesterNotFound         = NewDomainError("academic", "Find", ErrNotFound, "semester not found")
	ErrCourseNotFound           = NewDomainError("academic", "Find", ErrNotFound, "course not found")
	ErrLevelNotFound            = NewDomainError("academic", "Find", ErrNotFound, "level not found")
	ErrProgramNotFound          = NewDomainError("academic", "Find", ErrNotFound, "program not found")
	ErrReportCardNotFound       = NewDomainError("academic", "FindReportCard", ErrNotFound, "report card not found")
	ErrNoSemestersDefined       = NewDomainError("academic", "Deliberate", ErrInvalidState, "academic year has no semesters defined")
	ErrInvalidExamConfiguration = NewDomainError("academic", "NormalizeScore", ErrInvalidEntity, "exam max score must be positive and weight non-negative")
	ErrInvalidExamResult        = NewDomainError("academic", "NormalizeScore", ErrValueOutOfRange, "exam score outside [0, max score]")
	ErrInvalidCourseGrade       = NewDomainError("academic", "ValidateCourseGrade", ErrValueOutOfRange, "course grade outside the grade scale")
	ErrNoNextAcademicYear       = NewDomainError("academic", "NextYear", ErrNotFound, "no academic year after the given one")
)

// Student domain errors
var (
	ErrStudentNotFound        = NewDomainError("student", "Find", ErrNotFound, "student not found")
	ErrMissingCurrentLevel    = NewDomainError("student", "Deliberate", ErrInvalidState, "student has no current level")
	ErrMissingProgram         = NewDomainError("student", "Deliberate", ErrInvalidState, "student has no program")
	ErrPromotionNotFound      = NewDomainError("student", "FindPromotion", ErrNotFound, "promotion not found")
	ErrInvalidDecision        = NewDomainError("student", "Validate", ErrInvalidInput, "invalid deliberation decision")
	ErrDeliberationInProgress = NewDomainError("student", "DeliberateCohort", ErrLocked, "a deliberation run for this academic year is already in progress")
)

// Finance domain errors
var (
	ErrBalanceNotFound   = NewDomainError("finance", "FindBalance", ErrNotFound, "balance not found")
	ErrPaymentNotFound   = NewDomainError("finance", "FindPayment", ErrNotFound, "payment not found")
	ErrPaymentNotPending = NewDomainError("finance", "ApprovePayment", ErrStateTransition, "only pending payments can be approved")
	ErrInvalidAmount     = NewDomainError("finance", "Validate", ErrNegativeValue, "amount cannot be negative")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsDataIntegrity reports whether err comes from inconsistent upstream data
// (bad exam setup, student without program or level) rather than from storage.
func IsDataIntegrity(err error) bool {
	return errors.Is(err, ErrInvalidEntity) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidState)
}
