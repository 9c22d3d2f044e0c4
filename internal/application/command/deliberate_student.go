package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/campus-registrar/deliberation/internal/domain/academic"
	"github.com/campus-registrar/deliberation/internal/domain/shared"
	"github.com/campus-registrar/deliberation/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELIBERATE STUDENT COMMAND
// Produces the annual promote/repeat decision for one student and carries it
// into the next academic year. Report cards, the promotion and the cascade
// are written in a single transaction.
// ══════════════════════════════════════════════════════════════════════════════

// DeliberateStudentCommand identifies the student and the year to deliberate.
type DeliberateStudentCommand struct {
	StudentID      uuid.UUID
	AcademicYearID uuid.UUID

	// GeneratedBy is recorded on the refreshed report cards. Optional.
	GeneratedBy *uuid.UUID
}

// Validate validates the command.
func (c DeliberateStudentCommand) Validate() error {
	if c.StudentID == uuid.Nil || c.AcademicYearID == uuid.Nil {
		return errors.New("deliberate_student: student_id and academic_year_id are required")
	}
	return nil
}

// DeliberationResult contains the outcome of one deliberation.
type DeliberationResult struct {
	Promotion *student.Promotion

	// ReportCards holds the refreshed card of each semester present in the year.
	ReportCards []academic.ReportCard

	// AnnualCredits is the credit total behind AnnualGPA.
	AnnualCredits int

	// ProgramCompleted is set when a promoted student had no level left.
	ProgramCompleted bool

	Cascade *CascadeOutcome
}

// DeliberateStudentHandler handles the DeliberateStudentCommand.
type DeliberateStudentHandler struct {
	uow            UnitOfWork
	reports        *CalculateGPAHandler
	cascade        *EnrollNextYearHandler
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewDeliberateStudentHandler creates a new handler.
func NewDeliberateStudentHandler(uow UnitOfWork, eventPublisher shared.EventPublisher, logger *slog.Logger) *DeliberateStudentHandler {
	logger = defaultLogger(logger)
	eventPublisher = defaultPublisher(eventPublisher)
	return &DeliberateStudentHandler{
		uow:            uow,
		reports:        NewCalculateGPAHandler(uow, eventPublisher, logger),
		cascade:        NewEnrollNextYearHandler(uow, eventPublisher, logger),
		eventPublisher: eventPublisher,
		logger:         logger.With("component", "deliberate_student"),
	}
}

// Handle deliberates the student. Any failure rolls back every write of the
// deliberation, cascade included.
func (h *DeliberateStudentHandler) Handle(ctx context.Context, cmd DeliberateStudentCommand) (*DeliberationResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var (
		result *DeliberationResult
		events eventBuffer
	)
	err := h.uow.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		events = nil
		var err error
		result, err = h.deliberate(ctx, repos, cmd, &events)
		return err
	})
	if err != nil {
		return nil, err
	}

	p := result.Promotion
	h.logger.Info("student deliberated",
		"student_id", p.StudentID,
		"academic_year_id", p.AcademicYearID,
		"annual_gpa", p.AnnualGPA.String(),
		"decision", p.Decision,
		"level_to_id", p.LevelToID,
	)

	events.publish(h.eventPublisher, h.logger)
	return result, nil
}

func (h *DeliberateStudentHandler) deliberate(ctx context.Context, repos Repositories, cmd DeliberateStudentCommand, events *eventBuffer) (*DeliberationResult, error) {
	st, err := repos.Students.GetByID(ctx, cmd.StudentID)
	if err != nil {
		return nil, fmt.Errorf("deliberate_student: get student: %w", err)
	}
	programID, levelID, err := st.Placement()
	if err != nil {
		return nil, err
	}

	year, err := repos.Calendar.GetAcademicYear(ctx, cmd.AcademicYearID)
	if err != nil {
		return nil, fmt.Errorf("deliberate_student: get academic year: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 1. Semesters and report cards
	// ─────────────────────────────────────────────────────────────────────────
	semesters, err := repos.Calendar.ListSemesters(ctx, year.ID)
	if err != nil {
		return nil, fmt.Errorf("deliberate_student: list semesters: %w", err)
	}
	if len(semesters) == 0 {
		return nil, shared.WrapError("academic", "Deliberate", shared.ErrNoSemestersDefined,
			"cannot deliberate", fmt.Errorf("academic year %s", year.ID))
	}

	s1, s2 := academic.SplitSemesters(semesters)
	result := &DeliberationResult{}
	var cards []*academic.ReportCard
	for _, sem := range []*academic.Semester{s1, s2} {
		if sem == nil {
			continue
		}
		card, err := h.reports.calculate(ctx, repos, CalculateGPACommand{
			StudentID:   st.ID,
			SemesterID:  sem.ID,
			GeneratedBy: cmd.GeneratedBy,
		}, events)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
		result.ReportCards = append(result.ReportCards, *card)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Annual GPA, decision and destination level
	// ─────────────────────────────────────────────────────────────────────────
	annualGPA, credits := academic.AnnualGPA(cards...)
	result.AnnualCredits = credits
	decision := student.Decide(annualGPA)

	current, err := repos.Curriculum.GetLevel(ctx, levelID)
	if err != nil {
		return nil, fmt.Errorf("deliberate_student: get current level: %w", err)
	}

	var next *academic.Level
	if decision == student.DecisionPromoted {
		next, err = repos.Curriculum.GetLevelByOrder(ctx, current.Order+1)
		if errors.Is(err, shared.ErrLevelNotFound) {
			next, err = nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("deliberate_student: get next level: %w", err)
		}
	}
	verdict := student.Resolve(decision, *current, next)
	result.ProgramCompleted = verdict.Completed

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Promotion
	// ─────────────────────────────────────────────────────────────────────────
	promotion := &student.Promotion{
		ID:             uuid.New(),
		StudentID:      st.ID,
		AcademicYearID: year.ID,
		ProgramID:      programID,
		LevelFromID:    current.ID,
		LevelToID:      verdict.LevelTo.ID,
		AnnualGPA:      annualGPA,
		Decision:       verdict.Decision,
		Remarks:        verdict.Remarks,
		DecidedAt:      utcNow(),
	}
	if err := repos.Promotions.Upsert(ctx, promotion); err != nil {
		return nil, fmt.Errorf("deliberate_student: upsert promotion: %w", err)
	}
	result.Promotion = promotion
	events.add(shared.NewPromotionDecidedEvent(
		st.ID.String(), year.ID.String(), string(promotion.Decision),
		annualGPA.StringFixed(shared.Precision), current.ID.String(), verdict.LevelTo.ID.String(),
	))

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Cascade into the next year
	// ─────────────────────────────────────────────────────────────────────────
	result.Cascade, err = h.cascade.enroll(ctx, repos, st, *year, verdict.LevelTo, events)
	if err != nil {
		return nil, err
	}

	return result, nil
}
