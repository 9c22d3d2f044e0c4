package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/campus-registrar/deliberation/internal/domain/shared"
	"github.com/campus-registrar/deliberation/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE BALANCES COMMAND
// Opens the missing balance of every student enrolled in an academic year.
// Each student is handled in its own transaction.
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileBalancesCommand names the academic year to reconcile.
type ReconcileBalancesCommand struct {
	AcademicYearID uuid.UUID
}

// Validate validates the command.
func (c ReconcileBalancesCommand) Validate() error {
	if c.AcademicYearID == uuid.Nil {
		return errors.New("reconcile_balances: academic_year_id is required")
	}
	return nil
}

// ReconcileBalancesResult counts what the reconciliation did.
type ReconcileBalancesResult struct {
	Enrolled int
	Created  int
	Existing int
	Failed   int
	Failures []StudentFailure
}

// StudentFailure records why one student of a batch failed.
type StudentFailure struct {
	StudentID uuid.UUID
	Kind      FailureKind
	Err       error
}

// FailureKind tells an operator what to do about a failed student.
type FailureKind string

const (
	// FailureData means the student's records are inconsistent: a missing
	// program or level, a bad exam setup, a grade out of range. Fix the data
	// and rerun.
	FailureData FailureKind = "data"
	// FailureTimeout means the student exceeded the per-student bound.
	FailureTimeout FailureKind = "timeout"
	// FailureStore covers everything else, usually the database.
	FailureStore FailureKind = "store"
)

func newStudentFailure(studentID uuid.UUID, err error) StudentFailure {
	kind := FailureStore
	switch {
	case errors.Is(err, shared.ErrTimeout):
		kind = FailureTimeout
	case shared.IsDataIntegrity(err), shared.IsValidation(err), shared.IsNotFound(err):
		kind = FailureData
	}
	return StudentFailure{StudentID: studentID, Kind: kind, Err: err}
}

// ReconcileBalancesHandler handles the ReconcileBalancesCommand.
type ReconcileBalancesHandler struct {
	uow            UnitOfWork
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewReconcileBalancesHandler creates a new handler.
func NewReconcileBalancesHandler(uow UnitOfWork, eventPublisher shared.EventPublisher, logger *slog.Logger) *ReconcileBalancesHandler {
	return &ReconcileBalancesHandler{
		uow:            uow,
		eventPublisher: defaultPublisher(eventPublisher),
		logger:         defaultLogger(logger).With("component", "reconcile_balances"),
	}
}

// Handle walks the year's enrollments. A failing student is recorded and the
// walk goes on; only a failure to list enrollments aborts it.
func (h *ReconcileBalancesHandler) Handle(ctx context.Context, cmd ReconcileBalancesCommand) (*ReconcileBalancesResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var enrollments []student.Enrollment
	err := h.uow.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		if _, err := repos.Calendar.GetAcademicYear(ctx, cmd.AcademicYearID); err != nil {
			return fmt.Errorf("reconcile_balances: get academic year: %w", err)
		}
		var err error
		enrollments, err = repos.Enrollments.ListByYear(ctx, cmd.AcademicYearID)
		if err != nil {
			return fmt.Errorf("reconcile_balances: list enrollments: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &ReconcileBalancesResult{Enrolled: len(enrollments)}
	for _, enrollment := range enrollments {
		if ctx.Err() != nil {
			break
		}

		created, err := h.reconcileOne(ctx, enrollment)
		switch {
		case err != nil:
			result.Failed++
			result.Failures = append(result.Failures, newStudentFailure(enrollment.StudentID, err))
			h.logger.Error("failed to open balance",
				"student_id", enrollment.StudentID,
				"academic_year_id", cmd.AcademicYearID,
				"error", err,
			)
		case created:
			result.Created++
		default:
			result.Existing++
		}
	}

	h.logger.Info("balances reconciled",
		"academic_year_id", cmd.AcademicYearID,
		"enrolled", result.Enrolled,
		"created", result.Created,
		"existing", result.Existing,
		"failed", result.Failed,
	)
	return result, ctx.Err()
}

func (h *ReconcileBalancesHandler) reconcileOne(ctx context.Context, enrollment student.Enrollment) (bool, error) {
	var (
		created bool
		events  eventBuffer
	)
	err := h.uow.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		events, created = nil, false
		year, err := repos.Calendar.GetAcademicYear(ctx, enrollment.AcademicYearID)
		if err != nil {
			return fmt.Errorf("get academic year: %w", err)
		}
		program, err := repos.Curriculum.GetProgram(ctx, enrollment.ProgramID)
		if err != nil {
			return fmt.Errorf("get program: %w", err)
		}

		balance, ok, err := openBalance(ctx, repos, enrollment.StudentID, *year, *program, enrollment.LevelID)
		if err != nil {
			return err
		}
		created = ok
		if ok {
			events.add(shared.NewBalanceChangedEvent(shared.EventBalanceOpened,
				enrollment.StudentID.String(), year.ID.String(),
				balance.TotalDue.StringFixed(2), balance.TotalPaid.StringFixed(2)))
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	events.publish(h.eventPublisher, h.logger)
	return created, nil
}
