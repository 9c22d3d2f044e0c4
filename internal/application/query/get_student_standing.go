// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/campus-registrar/deliberation/internal/domain/academic"
	"github.com/campus-registrar/deliberation/internal/domain/shared"
	"github.com/campus-registrar/deliberation/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT STANDING QUERY
// A student's academic standing for one year: the semester report cards and
// the deliberation decision, if any. Served from cache when possible.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentStandingQuery identifies the student and the year.
type GetStudentStandingQuery struct {
	StudentID      uuid.UUID
	AcademicYearID uuid.UUID

	// SkipCache forces a read from the store. The fresh result is still cached.
	SkipCache bool
}

// Validate checks the query parameters.
func (q GetStudentStandingQuery) Validate() error {
	if q.StudentID == uuid.Nil {
		return errors.New("student_id is required")
	}
	if q.AcademicYearID == uuid.Nil {
		return errors.New("academic_year_id is required")
	}
	return nil
}

// ReportCardDTO is one semester's report card.
type ReportCardDTO struct {
	SemesterID   string `json:"semester_id"`
	SemesterType string `json:"semester_type"`
	GPA          string `json:"gpa"`
	TotalCredits int    `json:"total_credits"`
}

// StandingDTO is the cached and returned view of a standing.
type StandingDTO struct {
	StudentID      string `json:"student_id"`
	Matricule      string `json:"matricule"`
	FullName       string `json:"full_name"`
	AcademicYearID string `json:"academic_year_id"`

	ReportCards []ReportCardDTO `json:"report_cards"`

	// Deliberation fields are empty until the student has been deliberated.
	Deliberated bool       `json:"deliberated"`
	Decision    string     `json:"decision,omitempty"`
	AnnualGPA   string     `json:"annual_gpa,omitempty"`
	LevelFromID string     `json:"level_from_id,omitempty"`
	LevelToID   string     `json:"level_to_id,omitempty"`
	Remarks     string     `json:"remarks,omitempty"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// GetStudentStandingResult contains the standing and where it came from.
type GetStudentStandingResult struct {
	Standing  StandingDTO
	FromCache bool
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// StandingSource reads the pieces of a standing from the store.
type StandingSource interface {
	GetStudent(ctx context.Context, studentID uuid.UUID) (*student.Student, error)

	// GetPromotion returns shared.ErrPromotionNotFound before deliberation.
	GetPromotion(ctx context.Context, studentID, academicYearID uuid.UUID) (*student.Promotion, error)

	// ListReportCards returns the student's cards for the semesters of the
	// year, S1 first.
	ListReportCards(ctx context.Context, studentID, academicYearID uuid.UUID) ([]YearReportCard, error)
}

// YearReportCard pairs a report card with its semester type.
type YearReportCard struct {
	Card         academic.ReportCard
	SemesterType academic.SemesterType
}

// StandingCache stores standings. Get returns nil, nil on a miss.
type StandingCache interface {
	Get(ctx context.Context, studentID, academicYearID uuid.UUID) (*StandingDTO, error)
	Set(ctx context.Context, standing *StandingDTO, ttl time.Duration) error
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentStandingHandler handles the GetStudentStandingQuery.
type GetStudentStandingHandler struct {
	source StandingSource
	cache  StandingCache
	ttl    time.Duration
	logger *slog.Logger
}

// NewGetStudentStandingHandler creates a new handler. cache may be nil.
func NewGetStudentStandingHandler(source StandingSource, cache StandingCache, ttl time.Duration, logger *slog.Logger) *GetStudentStandingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetStudentStandingHandler{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With("component", "get_student_standing"),
	}
}

// Handle returns the standing. Cache errors are logged and never fail the
// query.
func (h *GetStudentStandingHandler) Handle(ctx context.Context, q GetStudentStandingQuery) (*GetStudentStandingResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if h.cache != nil && !q.SkipCache {
		cached, err := h.cache.Get(ctx, q.StudentID, q.AcademicYearID)
		if err != nil {
			h.logger.Warn("standing cache read failed",
				"student_id", q.StudentID,
				"academic_year_id", q.AcademicYearID,
				"error", err,
			)
		}
		if cached != nil {
			return &GetStudentStandingResult{Standing: *cached, FromCache: true}, nil
		}
	}

	standing, err := h.load(ctx, q)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, standing, h.ttl); err != nil {
			h.logger.Warn("standing cache write failed",
				"student_id", q.StudentID,
				"academic_year_id", q.AcademicYearID,
				"error", err,
			)
		}
	}

	return &GetStudentStandingResult{Standing: *standing}, nil
}

func (h *GetStudentStandingHandler) load(ctx context.Context, q GetStudentStandingQuery) (*StandingDTO, error) {
	st, err := h.source.GetStudent(ctx, q.StudentID)
	if err != nil {
		return nil, fmt.Errorf("get_student_standing: get student: %w", err)
	}

	cards, err := h.source.ListReportCards(ctx, q.StudentID, q.AcademicYearID)
	if err != nil {
		return nil, fmt.Errorf("get_student_standing: list report cards: %w", err)
	}

	dto := &StandingDTO{
		StudentID:      st.ID.String(),
		Matricule:      st.Matricule,
		FullName:       st.FullName(),
		AcademicYearID: q.AcademicYearID.String(),
		ReportCards:    make([]ReportCardDTO, 0, len(cards)),
		GeneratedAt:    time.Now().UTC(),
	}
	for _, c := range cards {
		dto.ReportCards = append(dto.ReportCards, ReportCardDTO{
			SemesterID:   c.Card.SemesterID.String(),
			SemesterType: string(c.SemesterType),
			GPA:          c.Card.GPA.StringFixed(shared.Precision),
			TotalCredits: c.Card.TotalCredits,
		})
	}

	p, err := h.source.GetPromotion(ctx, q.StudentID, q.AcademicYearID)
	switch {
	case errors.Is(err, shared.ErrPromotionNotFound):
	case err != nil:
		return nil, fmt.Errorf("get_student_standing: get promotion: %w", err)
	default:
		decidedAt := p.DecidedAt
		dto.Deliberated = true
		dto.Decision = string(p.Decision)
		dto.AnnualGPA = p.AnnualGPA.StringFixed(shared.Precision)
		dto.LevelFromID = p.LevelFromID.String()
		dto.LevelToID = p.LevelToID.String()
		dto.Remarks = p.Remarks
		dto.DecidedAt = &decidedAt
	}

	return dto, nil
}
