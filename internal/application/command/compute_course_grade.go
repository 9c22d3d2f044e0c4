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
// COMPUTE COURSE GRADE COMMAND
// Folds a student's exam results for one course and semester into the final
// 0–20 course grade.
// ══════════════════════════════════════════════════════════════════════════════

// ComputeCourseGradeCommand identifies the grade to compute.
type ComputeCourseGradeCommand struct {
	StudentID  uuid.UUID
	CourseID   uuid.UUID
	SemesterID uuid.UUID

	// ValidatedBy is recorded on the grade when it is validated. Optional.
	ValidatedBy *uuid.UUID
}

// Validate validates the command.
func (c ComputeCourseGradeCommand) Validate() error {
	if c.StudentID == uuid.Nil || c.CourseID == uuid.Nil || c.SemesterID == uuid.Nil {
		return errors.New("compute_course_grade: student_id, course_id and semester_id are required")
	}
	return nil
}

// ComputeCourseGradeHandler handles the ComputeCourseGradeCommand.
type ComputeCourseGradeHandler struct {
	uow            UnitOfWork
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewComputeCourseGradeHandler creates a new handler.
func NewComputeCourseGradeHandler(uow UnitOfWork, eventPublisher shared.EventPublisher, logger *slog.Logger) *ComputeCourseGradeHandler {
	return &ComputeCourseGradeHandler{
		uow:            uow,
		eventPublisher: defaultPublisher(eventPublisher),
		logger:         defaultLogger(logger).With("component", "compute_course_grade"),
	}
}

// Handle computes and upserts the course grade.
func (h *ComputeCourseGradeHandler) Handle(ctx context.Context, cmd ComputeCourseGradeCommand) (*academic.CourseGrade, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var grade *academic.CourseGrade
	err := h.uow.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		if _, err := repos.Curriculum.GetCourse(ctx, cmd.CourseID); err != nil {
			return fmt.Errorf("compute_course_grade: get course: %w", err)
		}
		if _, err := repos.Calendar.GetSemester(ctx, cmd.SemesterID); err != nil {
			return fmt.Errorf("compute_course_grade: get semester: %w", err)
		}

		var err error
		grade, err = h.compute(ctx, repos, cmd)
		return err
	})
	if err != nil {
		return nil, err
	}

	h.logger.Debug("course grade computed",
		"student_id", grade.StudentID,
		"course_id", grade.CourseID,
		"semester_id", grade.SemesterID,
		"final_score", grade.FinalScore.String(),
		"validated", grade.Validated,
	)

	events := eventBuffer{shared.NewCourseGradeComputedEvent(
		grade.StudentID.String(), grade.CourseID.String(), grade.SemesterID.String(),
		grade.FinalScore.StringFixed(shared.Precision), grade.Validated,
	)}
	events.publish(h.eventPublisher, h.logger)

	return grade, nil
}

func (h *ComputeCourseGradeHandler) compute(ctx context.Context, repos Repositories, cmd ComputeCourseGradeCommand) (*academic.CourseGrade, error) {
	exams, err := repos.Exams.ListExams(ctx, cmd.CourseID, cmd.SemesterID)
	if err != nil {
		return nil, fmt.Errorf("compute_course_grade: list exams: %w", err)
	}

	examIDs := make([]uuid.UUID, 0, len(exams))
	for _, e := range exams {
		examIDs = append(examIDs, e.ID)
	}

	results := map[uuid.UUID]academic.ExamResult{}
	if len(examIDs) > 0 {
		results, err = repos.Exams.ListResults(ctx, cmd.StudentID, examIDs)
		if err != nil {
			return nil, fmt.Errorf("compute_course_grade: list results: %w", err)
		}
	}

	var sheet academic.ScoreSheet
	for _, e := range exams {
		var result *academic.ExamResult
		if r, ok := results[e.ID]; ok {
			result = &r
		}
		if err := sheet.Add(e, result); err != nil {
			return nil, err
		}
	}

	score, validated := sheet.FinalScore()
	grade := &academic.CourseGrade{
		StudentID:  cmd.StudentID,
		CourseID:   cmd.CourseID,
		SemesterID: cmd.SemesterID,
		FinalScore: score,
		Validated:  validated,
		UpdatedAt:  utcNow(),
	}
	if validated {
		grade.ValidatedBy = cmd.ValidatedBy
	}

	if err := repos.Grades.UpsertCourseGrade(ctx, grade); err != nil {
		return nil, fmt.Errorf("compute_course_grade: upsert: %w", err)
	}
	return grade, nil
}
