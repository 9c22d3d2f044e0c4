package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/campus-registrar/deliberation/internal/domain/academic"
	"github.com/campus-registrar/deliberation/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CALCULATE GPA COMMAND
// Recomputes a semester report card from the course grades already stored.
// Course grades are not recomputed here.
// ══════════════════════════════════════════════════════════════════════════════

// CalculateGPACommand identifies the report card to refresh.
type CalculateGPACommand struct {
	StudentID  uuid.UUID
	SemesterID uuid.UUID

	// GeneratedBy is recorded on the report card. Optional.
	GeneratedBy *uuid.UUID
}

// Validate validates the command.
func (c CalculateGPACommand) Validate() error {
	if c.StudentID == uuid.Nil || c.SemesterID == uuid.Nil {
		return errors.New("calculate_gpa: student_id and semester_id are required")
	}
	return nil
}

// CalculateGPAHandler handles the CalculateGPACommand.
type CalculateGPAHandler struct {
	uow            UnitOfWork
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewCalculateGPAHandler creates a new handler.
func NewCalculateGPAHandler(uow UnitOfWork, eventPublisher shared.EventPublisher, logger *slog.Logger) *CalculateGPAHandler {
	return &CalculateGPAHandler{
		uow:            uow,
		eventPublisher: defaultPublisher(eventPublisher),
		logger:         defaultLogger(logger).With("component", "calculate_gpa"),
	}
}

// Handle recomputes and upserts the report card in its own transaction.
func (h *CalculateGPAHandler) Handle(ctx context.Context, cmd CalculateGPACommand) (*academic.ReportCard, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var (
		card   *academic.ReportCard
		events eventBuffer
	)
	err := h.uow.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		events = nil
		if _, err := repos.Calendar.GetSemester(ctx, cmd.SemesterID); err != nil {
			return fmt.Errorf("calculate_gpa: get semester: %w", err)
		}
		var err error
		card, err = h.calculate(ctx, repos, cmd, &events)
		return err
	})
	if err != nil {
		return nil, err
	}

	events.publish(h.eventPublisher, h.logger)
	return card, nil
}

// calculate runs inside the caller's transaction.
func (h *CalculateGPAHandler) calculate(ctx context.Context, repos Repositories, cmd CalculateGPACommand, events *eventBuffer) (*academic.ReportCard, error) {
	grades, err := repos.Grades.ListGradedCourses(ctx, cmd.StudentID, cmd.SemesterID)
	if err != nil {
		return nil, fmt.Errorf("calculate_gpa: list course grades: %w", err)
	}
	for _, g := range grades {
		if err := g.Grade.Validate(); err != nil {
			return nil, fmt.Errorf("calculate_gpa: %w", err)
		}
	}

	gpa, credits := academic.ComputeGPA(grades)
	card := &academic.ReportCard{
		StudentID:    cmd.StudentID,
		SemesterID:   cmd.SemesterID,
		GPA:          gpa,
		TotalCredits: credits,
		GeneratedBy:  cmd.GeneratedBy,
		GeneratedAt:  utcNow(),
	}
	if err := repos.Grades.UpsertReportCard(ctx, card); err != nil {
		return nil, fmt.Errorf("calculate_gpa: upsert report card: %w", err)
	}

	h.logger.Debug("report card calculated",
		"student_id", cmd.StudentID,
		"semester_id", cmd.SemesterID,
		"gpa", gpa.String(),
		"total_credits", credits,
		"courses", len(grades),
	)

	events.add(shared.NewReportCardUpdatedEvent(
		cmd.StudentID.String(), cmd.SemesterID.String(), gpa.StringFixed(shared.Precision), credits,
	))
	return card, nil
}
