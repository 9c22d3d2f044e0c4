// Package academic holds the academic calendar, curriculum and grading model:
// years, semesters, levels, programs, courses, exams and the grades derived
// from exam results.
package academic

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campus-registrar/deliberation/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CALENDAR
// ══════════════════════════════════════════════════════════════════════════════

// SemesterType distinguishes the two halves of an academic year.
type SemesterType string

const (
	SemesterFirst  SemesterType = "S1"
	SemesterSecond SemesterType = "S2"
)

// IsValid reports whether t is a known semester type.
func (t SemesterType) IsValid() bool {
	return t == SemesterFirst || t == SemesterSecond
}

// AcademicYear is one year of the calendar. Years are ordered by StartDate.
type AcademicYear struct {
	ID        uuid.UUID
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

// Semester belongs to exactly one academic year; at most one of each type per year.
type Semester struct {
	ID             uuid.UUID
	AcademicYearID uuid.UUID
	Type           SemesterType
	StartDate      time.Time
	EndDate        time.Time
}

// SplitSemesters picks the S1 and S2 semesters out of a year's semesters.
// Either may be nil.
func SplitSemesters(semesters []Semester) (s1, s2 *Semester) {
	for i := range semesters {
		switch semesters[i].Type {
		case SemesterFirst:
			if s1 == nil {
				s1 = &semesters[i]
			}
		case SemesterSecond:
			if s2 == nil {
				s2 = &semesters[i]
			}
		}
	}
	return s1, s2
}

// ══════════════════════════════════════════════════════════════════════════════
// CURRICULUM
// ══════════════════════════════════════════════════════════════════════════════

// Level is a year of study within a program. Levels are totally ordered by Order.
type Level struct {
	ID    uuid.UUID
	Name  string
	Order int
}

// Program is a degree track with a flat default tuition.
type Program struct {
	ID             uuid.UUID
	Code           string
	Name           string
	DefaultTuition decimal.Decimal
}

// Course is taught in a program at a level during one semester type.
type Course struct {
	ID           uuid.UUID
	ProgramID    uuid.UUID
	LevelID      uuid.UUID
	Code         string
	Name         string
	Credits      int
	SemesterType SemesterType
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT
// ══════════════════════════════════════════════════════════════════════════════

// Exam is one assessment of a course in a given semester.
type Exam struct {
	ID         uuid.UUID
	CourseID   uuid.UUID
	SemesterID uuid.UUID
	Name       string
	MaxScore   decimal.Decimal
	Weight     decimal.Decimal
}

// Validate checks that the exam can be used to normalize scores.
func (e Exam) Validate() error {
	if !e.MaxScore.IsPositive() {
		return shared.WrapError("academic", "ValidateExam", shared.ErrInvalidExamConfiguration, "invalid exam",
			fmt.Errorf("exam %s: max score %s must be positive", e.ID, e.MaxScore))
	}
	if e.Weight.IsNegative() {
		return shared.WrapError("academic", "ValidateExam", shared.ErrInvalidExamConfiguration, "invalid exam",
			fmt.Errorf("exam %s: weight %s must not be negative", e.ID, e.Weight))
	}
	return nil
}

// ExamResult is a student's outcome on one exam.
type ExamResult struct {
	StudentID uuid.UUID
	ExamID    uuid.UUID
	Score     decimal.Decimal
	Absent    bool
}

// ══════════════════════════════════════════════════════════════════════════════
// DERIVED GRADES
// ══════════════════════════════════════════════════════════════════════════════

// CourseGrade is the final 0–20 score of a student in a course for a semester.
// Unique per (StudentID, CourseID, SemesterID).
type CourseGrade struct {
	StudentID   uuid.UUID
	CourseID    uuid.UUID
	SemesterID  uuid.UUID
	FinalScore  decimal.Decimal
	Validated   bool
	ValidatedBy *uuid.UUID
	UpdatedAt   time.Time
}

// Validate checks that the final score lies on the grade scale.
func (g CourseGrade) Validate() error {
	if !shared.InGradeRange(g.FinalScore) {
		return shared.WrapError("academic", "ValidateCourseGrade", shared.ErrInvalidCourseGrade, "invalid course grade",
			fmt.Errorf("course %s: final score %s outside [0, %d]", g.CourseID, g.FinalScore, shared.GradeScale))
	}
	return nil
}

// GradedCourse pairs a course grade with the credits of its course.
type GradedCourse struct {
	Grade   CourseGrade
	Credits int
}

// ReportCard is a student's credit-weighted GPA for one semester.
// Unique per (StudentID, SemesterID).
type ReportCard struct {
	StudentID    uuid.UUID
	SemesterID   uuid.UUID
	GPA          decimal.Decimal
	TotalCredits int
	GeneratedBy  *uuid.UUID
	GeneratedAt  time.Time
}

// Points returns gpa × credits, the report card's contribution to an annual mean.
func (r ReportCard) Points() decimal.Decimal {
	return r.GPA.Mul(decimal.NewFromInt(int64(r.TotalCredits)))
}
