package academic

import (
	"context"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence. Every method must work
// both on a pooled connection and inside a transaction.
// ══════════════════════════════════════════════════════════════════════════════

// CalendarRepository reads academic years and semesters.
type CalendarRepository interface {
	// GetAcademicYear returns ErrAcademicYearNotFound when the year is unknown.
	GetAcademicYear(ctx context.Context, id uuid.UUID) (*AcademicYear, error)

	// NextAcademicYear returns the year with the earliest start date strictly
	// after the given year's start date, or ErrNoNextAcademicYear.
	NextAcademicYear(ctx context.Context, after AcademicYear) (*AcademicYear, error)

	// ListSemesters returns the semesters of a year ordered by type.
	ListSemesters(ctx context.Context, academicYearID uuid.UUID) ([]Semester, error)

	// GetSemester returns ErrSemesterNotFound when the semester is unknown.
	GetSemester(ctx context.Context, id uuid.UUID) (*Semester, error)
}

// CurriculumRepository reads programs, levels and courses.
type CurriculumRepository interface {
	GetProgram(ctx context.Context, id uuid.UUID) (*Program, error)
	GetLevel(ctx context.Context, id uuid.UUID) (*Level, error)

	// GetLevelByOrder returns ErrLevelNotFound when no level has that order.
	GetLevelByOrder(ctx context.Context, order int) (*Level, error)

	GetCourse(ctx context.Context, id uuid.UUID) (*Course, error)
}

// ExamRepository reads exams and exam results.
type ExamRepository interface {
	// ListExams returns every exam of a course in a semester.
	ListExams(ctx context.Context, courseID, semesterID uuid.UUID) ([]Exam, error)

	// ListResults returns the student's results for the given exams keyed by
	// exam ID. Exams without a result are simply absent from the map.
	ListResults(ctx context.Context, studentID uuid.UUID, examIDs []uuid.UUID) (map[uuid.UUID]ExamResult, error)
}

// GradeRepository persists course grades and report cards.
type GradeRepository interface {
	// UpsertCourseGrade inserts or overwrites the grade keyed by
	// (student, course, semester).
	UpsertCourseGrade(ctx context.Context, grade *CourseGrade) error

	// ListGradedCourses returns the student's course grades of a semester
	// joined with each course's credits.
	ListGradedCourses(ctx context.Context, studentID, semesterID uuid.UUID) ([]GradedCourse, error)

	// UpsertReportCard inserts or overwrites the report card keyed by
	// (student, semester).
	UpsertReportCard(ctx context.Context, card *ReportCard) error

	// GetReportCard returns ErrReportCardNotFound when absent.
	GetReportCard(ctx context.Context, studentID, semesterID uuid.UUID) (*ReportCard, error)
}
