package student

import (
	"context"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// CohortFilter selects the students of a deliberation run.
// Nil fields match everything.
type CohortFilter struct {
	ProgramID *uuid.UUID
	LevelID   *uuid.UUID
}

// Repository reads students.
type Repository interface {
	// GetByID returns ErrStudentNotFound if the student does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*Student, error)

	// ListIDs returns the IDs of students matching the filter, ordered by
	// matricule so batch runs are reproducible.
	ListIDs(ctx context.Context, filter CohortFilter) ([]uuid.UUID, error)
}

// PromotionRepository persists deliberation outcomes.
type PromotionRepository interface {
	// Upsert inserts or overwrites the promotion keyed by (student, academic year).
	Upsert(ctx context.Context, promotion *Promotion) error

	// Get returns ErrPromotionNotFound when the student was not deliberated that year.
	Get(ctx context.Context, studentID, academicYearID uuid.UUID) (*Promotion, error)
}

// EnrollmentRepository persists enrollments.
type EnrollmentRepository interface {
	// CreateIfAbsent inserts the enrollment unless one already exists for
	// (student, academic year). It reports whether a row was created.
	CreateIfAbsent(ctx context.Context, enrollment *Enrollment) (bool, error)

	// Get returns the student's enrollment for a year whether or not it is
	// active, or nil without error when there is none.
	Get(ctx context.Context, studentID, academicYearID uuid.UUID) (*Enrollment, error)

	// GetActive returns the student's active enrollment for a year, or nil
	// without error when there is none.
	GetActive(ctx context.Context, studentID, academicYearID uuid.UUID) (*Enrollment, error)

	// ListByYear returns every active enrollment of an academic year.
	ListByYear(ctx context.Context, academicYearID uuid.UUID) ([]Enrollment, error)
}
