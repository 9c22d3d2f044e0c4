package student

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campus-registrar/deliberation/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student is the subset of the student record the engine consumes.
// ProgramID and CurrentLevelID are nil until the student is placed.
type Student struct {
	ID             uuid.UUID
	Matricule      string
	FirstName      string
	LastName       string
	ProgramID      *uuid.UUID
	CurrentLevelID *uuid.UUID
}

// FullName returns "First Last".
func (s *Student) FullName() string {
	switch {
	case s.FirstName == "":
		return s.LastName
	case s.LastName == "":
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// Placement returns the student's program and current level, failing with
// ErrMissingProgram or ErrMissingCurrentLevel when either is unset.
func (s *Student) Placement() (programID, levelID uuid.UUID, err error) {
	if s.ProgramID == nil {
		return uuid.Nil, uuid.Nil, shared.WrapError("student", "Placement", shared.ErrMissingProgram,
			"student cannot be deliberated", fmt.Errorf("student %s", s.ID))
	}
	if s.CurrentLevelID == nil {
		return uuid.Nil, uuid.Nil, shared.WrapError("student", "Placement", shared.ErrMissingCurrentLevel,
			"student cannot be deliberated", fmt.Errorf("student %s", s.ID))
	}
	return *s.ProgramID, *s.CurrentLevelID, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentStatus is the lifecycle state of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentEnrolled  EnrollmentStatus = "ENROLLED"
	EnrollmentCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentWithdrawn EnrollmentStatus = "WITHDRAWN"
)

// Enrollment places a student in a program and level for one academic year.
// Unique per (StudentID, AcademicYearID).
type Enrollment struct {
	ID             uuid.UUID
	StudentID      uuid.UUID
	AcademicYearID uuid.UUID
	ProgramID      uuid.UUID
	LevelID        uuid.UUID
	Status         EnrollmentStatus
	IsActive       bool
	EnrolledAt     time.Time
}

// NewEnrollment builds an active ENROLLED enrollment.
func NewEnrollment(studentID, yearID, programID, levelID uuid.UUID) *Enrollment {
	return &Enrollment{
		ID:             uuid.New(),
		StudentID:      studentID,
		AcademicYearID: yearID,
		ProgramID:      programID,
		LevelID:        levelID,
		Status:         EnrollmentEnrolled,
		IsActive:       true,
		EnrolledAt:     time.Now().UTC(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PROMOTION
// ══════════════════════════════════════════════════════════════════════════════

// Decision is the outcome of an annual deliberation.
type Decision string

const (
	DecisionPromoted Decision = "PROMOTED"
	DecisionRepeated Decision = "REPEATED"
)

// IsValid reports whether d is a known decision.
func (d Decision) IsValid() bool {
	return d == DecisionPromoted || d == DecisionRepeated
}

// Promotion records the deliberation of a student for one academic year.
// Unique per (StudentID, AcademicYearID); re-deliberating overwrites it.
type Promotion struct {
	ID             uuid.UUID
	StudentID      uuid.UUID
	AcademicYearID uuid.UUID
	ProgramID      uuid.UUID
	LevelFromID    uuid.UUID
	LevelToID      uuid.UUID
	AnnualGPA      decimal.Decimal
	Decision       Decision
	Remarks        string
	DecidedAt      time.Time
}
