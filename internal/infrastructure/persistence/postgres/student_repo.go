package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/campus-registrar/deliberation/internal/domain/shared"
	"github.com/campus-registrar/deliberation/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	q Querier
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(q Querier) *StudentRepository {
	return &StudentRepository{q: q}
}

// GetByID returns a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id uuid.UUID) (*student.Student, error) {
	var s student.Student
	err := r.q.QueryRow(ctx, `
		SELECT id, matricule, first_name, last_name, program_id, current_level_id
		FROM students
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Matricule, &s.FirstName, &s.LastName, &s.ProgramID, &s.CurrentLevelID)
	if err != nil {
		return nil, mapError(err, "GetStudent", shared.ErrStudentNotFound)
	}
	return &s, nil
}

// ListIDs returns the IDs of the students matching filter, ordered by
// matricule.
func (r *StudentRepository) ListIDs(ctx context.Context, filter student.CohortFilter) ([]uuid.UUID, error) {
	var (
		where []string
		args  []any
	)
	if filter.ProgramID != nil {
		args = append(args, *filter.ProgramID)
		where = append(where, fmt.Sprintf("program_id = $%d", len(args)))
	}
	if filter.LevelID != nil {
		args = append(args, *filter.LevelID)
		where = append(where, fmt.Sprintf("current_level_id = $%d", len(args)))
	}

	query := `SELECT id FROM students`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY matricule, id`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "ListStudentIDs", nil)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, mapError(err, "ListStudentIDs", nil)
	}
	return ids, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROMOTION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// PromotionRepository implements student.PromotionRepository.
type PromotionRepository struct {
	q Querier
}

// NewPromotionRepository creates a new PromotionRepository.
func NewPromotionRepository(q Querier) *PromotionRepository {
	return &PromotionRepository{q: q}
}

// Upsert inserts or replaces the (student, year) promotion. On conflict the
// stored row keeps its ID, which is written back into p.
func (r *PromotionRepository) Upsert(ctx context.Context, p *student.Promotion) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO promotions (
			id, student_id, academic_year_id, program_id, level_from_id, level_to_id,
			annual_gpa, decision, remarks, decided_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (student_id, academic_year_id) DO UPDATE SET
			program_id = EXCLUDED.program_id,
			level_from_id = EXCLUDED.level_from_id,
			level_to_id = EXCLUDED.level_to_id,
			annual_gpa = EXCLUDED.annual_gpa,
			decision = EXCLUDED.decision,
			remarks = EXCLUDED.remarks,
			decided_at = EXCLUDED.decided_at
		RETURNING id
	`,
		p.ID,
		p.StudentID,
		p.AcademicYearID,
		p.ProgramID,
		p.LevelFromID,
		p.LevelToID,
		p.AnnualGPA,
		string(p.Decision),
		p.Remarks,
		p.DecidedAt,
	).Scan(&p.ID)
	return mapError(err, "UpsertPromotion", nil)
}

// Get returns the (student, year) promotion.
func (r *PromotionRepository) Get(ctx context.Context, studentID, academicYearID uuid.UUID) (*student.Promotion, error) {
	var (
		p        student.Promotion
		decision string
	)
	err := r.q.QueryRow(ctx, `
		SELECT id, student_id, academic_year_id, program_id, level_from_id, level_to_id,
		       annual_gpa, decision, remarks, decided_at
		FROM promotions
		WHERE student_id = $1 AND academic_year_id = $2
	`, studentID, academicYearID).Scan(
		&p.ID,
		&p.StudentID,
		&p.AcademicYearID,
		&p.ProgramID,
		&p.LevelFromID,
		&p.LevelToID,
		&p.AnnualGPA,
		&decision,
		&p.Remarks,
		&p.DecidedAt,
	)
	if err != nil {
		return nil, mapError(err, "GetPromotion", shared.ErrPromotionNotFound)
	}
	p.Decision = student.Decision(decision)
	return &p, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentRepository implements student.EnrollmentRepository.
type EnrollmentRepository struct {
	q Querier
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(q Querier) *EnrollmentRepository {
	return &EnrollmentRepository{q: q}
}

const enrollmentColumns = `id, student_id, academic_year_id, program_id, level_id, status, is_active, enrolled_at`

// CreateIfAbsent inserts e unless the (student, year) pair is already
// enrolled. It reports whether a row was inserted.
func (r *EnrollmentRepository) CreateIfAbsent(ctx context.Context, e *student.Enrollment) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO enrollments (`+enrollmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (student_id, academic_year_id) DO NOTHING
	`, e.ID, e.StudentID, e.AcademicYearID, e.ProgramID, e.LevelID, string(e.Status), e.IsActive, e.EnrolledAt)
	if err != nil {
		return false, mapError(err, "CreateEnrollment", nil)
	}
	return tag.RowsAffected() == 1, nil
}

// Get returns the (student, year) enrollment, active or not, or nil when
// there is none.
func (r *EnrollmentRepository) Get(ctx context.Context, studentID, academicYearID uuid.UUID) (*student.Enrollment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments
		WHERE student_id = $1 AND academic_year_id = $2
	`, studentID, academicYearID)
	e, err := scanEnrollment(row)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "GetEnrollment", nil)
	}
	return e, nil
}

// GetActive returns the active (student, year) enrollment, or nil when
// there is none.
func (r *EnrollmentRepository) GetActive(ctx context.Context, studentID, academicYearID uuid.UUID) (*student.Enrollment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments
		WHERE student_id = $1 AND academic_year_id = $2 AND is_active
	`, studentID, academicYearID)
	e, err := scanEnrollment(row)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "GetActiveEnrollment", nil)
	}
	return e, nil
}

// ListByYear returns the active enrollments of a year.
func (r *EnrollmentRepository) ListByYear(ctx context.Context, academicYearID uuid.UUID) ([]student.Enrollment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments
		WHERE academic_year_id = $1 AND is_active
		ORDER BY enrolled_at, id
	`, academicYearID)
	if err != nil {
		return nil, mapError(err, "ListEnrollments", nil)
	}
	defer rows.Close()

	var enrollments []student.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, mapError(err, "ListEnrollments", nil)
		}
		enrollments = append(enrollments, *e)
	}
	return enrollments, mapError(rows.Err(), "ListEnrollments", nil)
}

func scanEnrollment(row pgx.Row) (*student.Enrollment, error) {
	var (
		e      student.Enrollment
		status string
	)
	if err := row.Scan(&e.ID, &e.StudentID, &e.AcademicYearID, &e.ProgramID, &e.LevelID,
		&status, &e.IsActive, &e.EnrolledAt); err != nil {
		return nil, err
	}
	e.Status = student.EnrollmentStatus(status)
	return &e, nil
}
