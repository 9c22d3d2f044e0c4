package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/campus-registrar/deliberation/internal/application/query"
	"github.com/campus-registrar/deliberation/internal/domain/academic"
	"github.com/campus-registrar/deliberation/internal/domain/student"
)

// StandingReader implements query.StandingSource outside of any
// transaction.
type StandingReader struct {
	q          Querier
	students   *StudentRepository
	promotions *PromotionRepository
}

// NewStandingReader creates a reader over q, usually the pool.
func NewStandingReader(q Querier) *StandingReader {
	return &StandingReader{
		q:          q,
		students:   NewStudentRepository(q),
		promotions: NewPromotionRepository(q),
	}
}

var _ query.StandingSource = (*StandingReader)(nil)

// GetStudent returns a student by ID.
func (r *StandingReader) GetStudent(ctx context.Context, id uuid.UUID) (*student.Student, error) {
	return r.students.GetByID(ctx, id)
}

// GetPromotion returns the (student, year) promotion.
func (r *StandingReader) GetPromotion(ctx context.Context, studentID, academicYearID uuid.UUID) (*student.Promotion, error) {
	return r.promotions.Get(ctx, studentID, academicYearID)
}

// ListReportCards returns the student's report cards for the year, S1 first.
func (r *StandingReader) ListReportCards(ctx context.Context, studentID, academicYearID uuid.UUID) ([]query.YearReportCard, error) {
	rows, err := r.q.Query(ctx, `
		SELECT rc.student_id, rc.semester_id, rc.gpa, rc.total_credits, rc.generated_by, rc.generated_at,
		       s.semester_type
		FROM report_cards rc
		JOIN semesters s ON s.id = rc.semester_id
		WHERE rc.student_id = $1 AND s.academic_year_id = $2
		ORDER BY s.semester_type
	`, studentID, academicYearID)
	if err != nil {
		return nil, mapError(err, "ListYearReportCards", nil)
	}
	defer rows.Close()

	var cards []query.YearReportCard
	for rows.Next() {
		var (
			c       query.YearReportCard
			semType string
		)
		if err := rows.Scan(
			&c.Card.StudentID,
			&c.Card.SemesterID,
			&c.Card.GPA,
			&c.Card.TotalCredits,
			&c.Card.GeneratedBy,
			&c.Card.GeneratedAt,
			&semType,
		); err != nil {
			return nil, mapError(err, "ListYearReportCards", nil)
		}
		c.SemesterType = academic.SemesterType(semType)
		cards = append(cards, c)
	}
	return cards, mapError(rows.Err(), "ListYearReportCards", nil)
}
