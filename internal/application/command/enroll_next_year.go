package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/campus-registrar/deliberation/internal/domain/academic"
	"github.com/campus-registrar/deliberation/internal/domain/finance"
	"github.com/campus-registrar/deliberation/internal/domain/shared"
	"github.com/campus-registrar/deliberation/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLL FOR NEXT YEAR COMMAND
// Carries a deliberation into the following academic year: one enrollment at
// the decided level and one opening balance. Safe to repeat.
// ══════════════════════════════════════════════════════════════════════════════

// EnrollNextYearCommand identifies the student, the year just deliberated and
// the level the student moves to.
type EnrollNextYearCommand struct {
	StudentID      uuid.UUID
	AcademicYearID uuid.UUID
	LevelToID      uuid.UUID
}

// Validate validates the command.
func (c EnrollNextYearCommand) Validate() error {
	if c.StudentID == uuid.Nil || c.AcademicYearID == uuid.Nil || c.LevelToID == uuid.Nil {
		return errors.New("enroll_next_year: student_id, academic_year_id and level_to_id are required")
	}
	return nil
}

// CascadeOutcome describes what the cascade did. NextYear is nil when there is
// no later academic year, in which case nothing was written.
type CascadeOutcome struct {
	NextYear *academic.AcademicYear

	// Enrollment is the (student, next year) row. When it already existed it
	// is returned as stored, inactive rows included, and left untouched.
	Enrollment        *student.Enrollment
	EnrollmentCreated bool
	Balance           *finance.Balance
	BalanceCreated    bool
}

// EnrollNextYearHandler handles the EnrollNextYearCommand.
type EnrollNextYearHandler struct {
	uow            UnitOfWork
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewEnrollNextYearHandler creates a new handler.
func NewEnrollNextYearHandler(uow UnitOfWork, eventPublisher shared.EventPublisher, logger *slog.Logger) *EnrollNextYearHandler {
	return &EnrollNextYearHandler{
		uow:            uow,
		eventPublisher: defaultPublisher(eventPublisher),
		logger:         defaultLogger(logger).With("component", "enroll_next_year"),
	}
}

// Handle runs the cascade in its own transaction.
func (h *EnrollNextYearHandler) Handle(ctx context.Context, cmd EnrollNextYearCommand) (*CascadeOutcome, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var (
		outcome *CascadeOutcome
		events  eventBuffer
	)
	err := h.uow.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		events = nil
		st, err := repos.Students.GetByID(ctx, cmd.StudentID)
		if err != nil {
			return fmt.Errorf("enroll_next_year: get student: %w", err)
		}
		year, err := repos.Calendar.GetAcademicYear(ctx, cmd.AcademicYearID)
		if err != nil {
			return fmt.Errorf("enroll_next_year: get academic year: %w", err)
		}
		levelTo, err := repos.Curriculum.GetLevel(ctx, cmd.LevelToID)
		if err != nil {
			return fmt.Errorf("enroll_next_year: get level: %w", err)
		}

		outcome, err = h.enroll(ctx, repos, st, *year, *levelTo, &events)
		return err
	})
	if err != nil {
		return nil, err
	}

	events.publish(h.eventPublisher, h.logger)
	return outcome, nil
}

// enroll runs inside the caller's transaction.
func (h *EnrollNextYearHandler) enroll(
	ctx context.Context,
	repos Repositories,
	st *student.Student,
	currentYear academic.AcademicYear,
	levelTo academic.Level,
	events *eventBuffer,
) (*CascadeOutcome, error) {
	next, err := repos.Calendar.NextAcademicYear(ctx, currentYear)
	if errors.Is(err, shared.ErrNoNextAcademicYear) {
		h.logger.Debug("no next academic year, nothing to enroll",
			"student_id", st.ID,
			"academic_year_id", currentYear.ID,
		)
		return &CascadeOutcome{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("enroll_next_year: find next year: %w", err)
	}

	if st.ProgramID == nil {
		return nil, shared.WrapError("student", "EnrollNextYear", shared.ErrMissingProgram,
			"student cannot be enrolled", fmt.Errorf("student %s", st.ID))
	}
	program, err := repos.Curriculum.GetProgram(ctx, *st.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("enroll_next_year: get program: %w", err)
	}

	outcome := &CascadeOutcome{NextYear: next}

	// Enrollment
	enrollment := student.NewEnrollment(st.ID, next.ID, program.ID, levelTo.ID)
	outcome.EnrollmentCreated, err = repos.Enrollments.CreateIfAbsent(ctx, enrollment)
	if err != nil {
		return nil, fmt.Errorf("enroll_next_year: create enrollment: %w", err)
	}
	if outcome.EnrollmentCreated {
		outcome.Enrollment = enrollment
		events.add(shared.NewStudentEnrolledEvent(st.ID.String(), next.ID.String(), program.ID.String(), levelTo.ID.String()))
	} else {
		outcome.Enrollment, err = repos.Enrollments.Get(ctx, st.ID, next.ID)
		if err != nil {
			return nil, fmt.Errorf("enroll_next_year: get enrollment: %w", err)
		}
	}

	// Balance
	outcome.Balance, outcome.BalanceCreated, err = openBalance(ctx, repos, st.ID, *next, *program, levelTo.ID)
	if err != nil {
		return nil, err
	}
	if outcome.BalanceCreated {
		events.add(shared.NewBalanceChangedEvent(shared.EventBalanceOpened, st.ID.String(), next.ID.String(),
			outcome.Balance.TotalDue.StringFixed(2), outcome.Balance.TotalPaid.StringFixed(2)))
	}

	h.logger.Debug("cascade applied",
		"student_id", st.ID,
		"next_academic_year_id", next.ID,
		"level_id", levelTo.ID,
		"enrollment_created", outcome.EnrollmentCreated,
		"balance_created", outcome.BalanceCreated,
	)
	return outcome, nil
}

// openBalance creates the (student, year) balance unless it exists. The amount
// due is the level-specific fee of that year, else the program's default tuition.
func openBalance(
	ctx context.Context,
	repos Repositories,
	studentID uuid.UUID,
	year academic.AcademicYear,
	program academic.Program,
	levelID uuid.UUID,
) (*finance.Balance, bool, error) {
	existing, err := repos.Balances.Get(ctx, studentID, year.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, shared.ErrBalanceNotFound) {
		return nil, false, fmt.Errorf("open_balance: get balance: %w", err)
	}

	fee, err := repos.Fees.Find(ctx, program.ID, &levelID, year.ID)
	if err != nil {
		return nil, false, fmt.Errorf("open_balance: find fee: %w", err)
	}

	balance, err := finance.NewBalance(studentID, year.ID, finance.ResolveTuition(program, fee))
	if err != nil {
		return nil, false, err
	}
	created, err := repos.Balances.CreateIfAbsent(ctx, balance)
	if err != nil {
		return nil, false, fmt.Errorf("open_balance: create balance: %w", err)
	}
	if !created {
		balance, err = repos.Balances.Get(ctx, studentID, year.ID)
		if err != nil {
			return nil, false, fmt.Errorf("open_balance: get balance: %w", err)
		}
	}
	return balance, created, nil
}
