package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/campus-registrar/deliberation/internal/domain/academic"
	"github.com/campus-registrar/deliberation/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CALENDAR REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// CalendarRepository implements academic.CalendarRepository.
type CalendarRepository struct {
	q Querier
}

// NewCalendarRepository creates a new CalendarRepository.
func NewCalendarRepository(q Querier) *CalendarRepository {
	return &CalendarRepository{q: q}
}

const academicYearColumns = `id, name, start_date, end_date`

// GetAcademicYear returns a year by ID.
func (r *CalendarRepository) GetAcademicYear(ctx context.Context, id uuid.UUID) (*academic.AcademicYear, error) {
	row := r.q.QueryRow(ctx, `SELECT `+academicYearColumns+` FROM academic_years WHERE id = $1`, id)
	return scanAcademicYear(row, "GetAcademicYear", shared.ErrAcademicYearNotFound)
}

// NextAcademicYear returns the year with the smallest start date after
// the given year's start date.
func (r *CalendarRepository) NextAcademicYear(ctx context.Context, after academic.AcademicYear) (*academic.AcademicYear, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+academicYearColumns+`
		FROM academic_years
		WHERE start_date > $1
		ORDER BY start_date
		LIMIT 1
	`, after.StartDate)
	return scanAcademicYear(row, "NextAcademicYear", shared.ErrNoNextAcademicYear)
}

// ListSemesters returns the semesters of a year, S1 first.
func (r *CalendarRepository) ListSemesters(ctx context.Context, academicYearID uuid.UUID) ([]academic.Semester, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, academic_year_id, semester_type, start_date, end_date
		FROM semesters
		WHERE academic_year_id = $1
		ORDER BY semester_type
	`, academicYearID)
	if err != nil {
		return nil, mapError(err, "ListSemesters", nil)
	}
	defer rows.Close()

	var semesters []academic.Semester
	for rows.Next() {
		s, err := scanSemester(rows)
		if err != nil {
			return nil, mapError(err, "ListSemesters", nil)
		}
		semesters = append(semesters, *s)
	}
	return semesters, mapError(rows.Err(), "ListSemesters", nil)
}

// GetSemester returns a semester by ID.
func (r *CalendarRepository) GetSemester(ctx context.Context, id uuid.UUID) (*academic.Semester, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, academic_year_id, semester_type, start_date, end_date
		FROM semesters
		WHERE id = $1
	`, id)
	s, err := scanSemester(row)
	if err != nil {
		return nil, mapError(err, "GetSemester", shared.ErrSemesterNotFound)
	}
	return s, nil
}

func scanAcademicYear(row pgx.Row, op string, notFound error) (*academic.AcademicYear, error) {
	var y academic.AcademicYear
	if err := row.Scan(&y.ID, &y.Name, &y.StartDate, &y.EndDate); err != nil {
		return nil, mapError(err, op, notFound)
	}
	return &y, nil
}

func scanSemester(row pgx.Row) (*academic.Semester, error) {
	var (
		s          academic.Semester
		kind       string
		start, end *time.Time
	)
	if err := row.Scan(&s.ID, &s.AcademicYearID, &kind, &start, &end); err != nil {
		return nil, err
	}
	s.Type = academic.SemesterType(kind)
	if start != nil {
		s.StartDate = *start
	}
	if end != nil {
		s.EndDate = *end
	}
	return &s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CURRICULUM REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// CurriculumRepository implements academic.CurriculumRepository.
type CurriculumRepository struct {
	q Querier
}

// NewCurriculumRepository creates a new CurriculumRepository.
func NewCurriculumRepository(q Querier) *CurriculumRepository {
	return &CurriculumRepository{q: q}
}

// GetProgram returns a program by ID.
func (r *CurriculumRepository) GetProgram(ctx context.Context, id uuid.UUID) (*academic.Program, error) {
	var p academic.Program
	err := r.q.QueryRow(ctx, `
		SELECT id, code, name, default_tuition FROM programs WHERE id = $1
	`, id).Scan(&p.ID, &p.Code, &p.Name, &p.DefaultTuition)
	if err != nil {
		return nil, mapError(err, "GetProgram", shared.ErrProgramNotFound)
	}
	return &p, nil
}

// GetLevel returns a level by ID.
func (r *CurriculumRepository) GetLevel(ctx context.Context, id uuid.UUID) (*academic.Level, error) {
	var l academic.Level
	err := r.q.QueryRow(ctx, `SELECT id, name, level_order FROM levels WHERE id = $1`, id).
		Scan(&l.ID, &l.Name, &l.Order)
	if err != nil {
		return nil, mapError(err, "GetLevel", shared.ErrLevelNotFound)
	}
	return &l, nil
}

// GetLevelByOrder returns the level at the given order.
func (r *CurriculumRepository) GetLevelByOrder(ctx context.Context, order int) (*academic.Level, error) {
	var l academic.Level
	err := r.q.QueryRow(ctx, `SELECT id, name, level_order FROM levels WHERE level_order = $1`, order).
		Scan(&l.ID, &l.Name, &l.Order)
	if err != nil {
		return nil, mapError(err, "GetLevelByOrder", shared.ErrLevelNotFound)
	}
	return &l, nil
}

// GetCourse returns a course by ID.
func (r *CurriculumRepository) GetCourse(ctx context.Context, id uuid.UUID) (*academic.Course, error) {
	var (
		c    academic.Course
		kind string
	)
	err := r.q.QueryRow(ctx, `
		SELECT id, program_id, level_id, code, name, credits, semester_type
		FROM courses
		WHERE id = $1
	`, id).Scan(&c.ID, &c.ProgramID, &c.LevelID, &c.Code, &c.Name, &c.Credits, &kind)
	if err != nil {
		return nil, mapError(err, "GetCourse", shared.ErrCourseNotFound)
	}
	c.SemesterType = academic.SemesterType(kind)
	return &c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EXAM REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ExamRepository implements academic.ExamRepository.
type ExamRepository struct {
	q Querier
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(q Querier) *ExamRepository {
	return &ExamRepository{q: q}
}

// ListExams returns the exams of a course in a semester.
func (r *ExamRepository) ListExams(ctx context.Context, courseID, semesterID uuid.UUID) ([]academic.Exam, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, course_id, semester_id, name, max_score, weight
		FROM exams
		WHERE course_id = $1 AND semester_id = $2
		ORDER BY name, id
	`, courseID, semesterID)
	if err != nil {
		return nil, mapError(err, "ListExams", nil)
	}
	defer rows.Close()

	var exams []academic.Exam
	for rows.Next() {
		var e academic.Exam
		if err := rows.Scan(&e.ID, &e.CourseID, &e.SemesterID, &e.Name, &e.MaxScore, &e.Weight); err != nil {
			return nil, mapError(err, "ListExams", nil)
		}
		exams = append(exams, e)
	}
	return exams, mapError(rows.Err(), "ListExams", nil)
}

// ListResults returns the student's results for the given exams keyed by
// exam ID. Exams without a row are absent from the map.
func (r *ExamRepository) ListResults(ctx context.Context, studentID uuid.UUID, examIDs []uuid.UUID) (map[uuid.UUID]academic.ExamResult, error) {
	results := make(map[uuid.UUID]academic.ExamResult, len(examIDs))
	if len(examIDs) == 0 {
		return results, nil
	}

	rows, err := r.q.Query(ctx, `
		SELECT student_id, exam_id, score, is_absent
		FROM exam_results
		WHERE student_id = $1 AND exam_id = ANY($2)
	`, studentID, examIDs)
	if err != nil {
		return nil, mapError(err, "ListResults", nil)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			res   academic.ExamResult
			score decimal.NullDecimal
		)
		if err := rows.Scan(&res.StudentID, &res.ExamID, &score, &res.Absent); err != nil {
			return nil, mapError(err, "ListResults", nil)
		}
		// A row without a score counts as an absence.
		if !score.Valid {
			res.Absent = true
		}
		res.Score = score.Decimal
		results[res.ExamID] = res
	}
	return results, mapError(rows.Err(), "ListResults", nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// GRADE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// GradeRepository implements academic.GradeRepository.
type GradeRepository struct {
	q Querier
}

// NewGradeRepository creates a new GradeRepository.
func NewGradeRepository(q Querier) *GradeRepository {
	return &GradeRepository{q: q}
}

// UpsertCourseGrade inserts or replaces the (student, course, semester) grade.
func (r *GradeRepository) UpsertCourseGrade(ctx context.Context, g *academic.CourseGrade) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO course_grades (
			student_id, course_id, semester_id, final_score, is_validated, validated_by, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (student_id, course_id, semester_id) DO UPDATE SET
			final_score = EXCLUDED.final_score,
			is_validated = EXCLUDED.is_validated,
			validated_by = EXCLUDED.validated_by,
			updated_at = EXCLUDED.updated_at
	`, g.StudentID, g.CourseID, g.SemesterID, g.FinalScore, g.Validated, g.ValidatedBy, g.UpdatedAt)
	return mapError(err, "UpsertCourseGrade", nil)
}

// ListGradedCourses joins the student's grades of a semester with the
// course credits.
func (r *GradeRepository) ListGradedCourses(ctx context.Context, studentID, semesterID uuid.UUID) ([]academic.GradedCourse, error) {
	rows, err := r.q.Query(ctx, `
		SELECT g.student_id, g.course_id, g.semester_id, g.final_score,
		       g.is_validated, g.validated_by, g.updated_at, c.credits
		FROM course_grades g
		JOIN courses c ON c.id = g.course_id
		WHERE g.student_id = $1 AND g.semester_id = $2
		ORDER BY c.code
	`, studentID, semesterID)
	if err != nil {
		return nil, mapError(err, "ListGradedCourses", nil)
	}
	defer rows.Close()

	var graded []academic.GradedCourse
	for rows.Next() {
		var gc academic.GradedCourse
		g := &gc.Grade
		if err := rows.Scan(&g.StudentID, &g.CourseID, &g.SemesterID, &g.FinalScore,
			&g.Validated, &g.ValidatedBy, &g.UpdatedAt, &gc.Credits); err != nil {
			return nil, mapError(err, "ListGradedCourses", nil)
		}
		graded = append(graded, gc)
	}
	return graded, mapError(rows.Err(), "ListGradedCourses", nil)
}

// UpsertReportCard inserts or replaces the (student, semester) report card.
func (r *GradeRepository) UpsertReportCard(ctx context.Context, c *academic.ReportCard) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO report_cards (student_id, semester_id, gpa, total_credits, generated_by, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, semester_id) DO UPDATE SET
			gpa = EXCLUDED.gpa,
			total_credits = EXCLUDED.total_credits,
			generated_by = EXCLUDED.generated_by,
			generated_at = EXCLUDED.generated_at
	`, c.StudentID, c.SemesterID, c.GPA, c.TotalCredits, c.GeneratedBy, c.GeneratedAt)
	return mapError(err, "UpsertReportCard", nil)
}

// GetReportCard returns the (student, semester) report card.
func (r *GradeRepository) GetReportCard(ctx context.Context, studentID, semesterID uuid.UUID) (*academic.ReportCard, error) {
	var c academic.ReportCard
	err := r.q.QueryRow(ctx, `
		SELECT student_id, semester_id, gpa, total_credits, generated_by, generated_at
		FROM report_cards
		WHERE student_id = $1 AND semester_id = $2
	`, studentID, semesterID).Scan(&c.StudentID, &c.SemesterID, &c.GPA, &c.TotalCredits, &c.GeneratedBy, &c.GeneratedAt)
	if err != nil {
		return nil, mapError(err, "GetReportCard", shared.ErrReportCardNotFound)
	}
	return &c, nil
}
