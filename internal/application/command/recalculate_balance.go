package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/campus-registrar/deliberation/internal/domain/finance"
	"github.com/campus-registrar/deliberation/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECALCULATE BALANCE COMMAND
// Rebuilds a balance from its sources: completed payments for total_paid and
// the fee schedule for total_due.
// ══════════════════════════════════════════════════════════════════════════════

// RecalculateBalanceCommand identifies the balance to rebuild.
type RecalculateBalanceCommand struct {
	StudentID      uuid.UUID
	AcademicYearID uuid.UUID
}

// Validate validates the command.
func (c RecalculateBalanceCommand) Validate() error {
	if c.StudentID == uuid.Nil || c.AcademicYearID == uuid.Nil {
		return errors.New("recalculate_balance: student_id and academic_year_id are required")
	}
	return nil
}

// RecalculateBalanceHandler handles the RecalculateBalanceCommand.
type RecalculateBalanceHandler struct {
	uow            UnitOfWork
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewRecalculateBalanceHandler creates a new handler.
func NewRecalculateBalanceHandler(uow UnitOfWork, eventPublisher shared.EventPublisher, logger *slog.Logger) *RecalculateBalanceHandler {
	return &RecalculateBalanceHandler{
		uow:            uow,
		eventPublisher: defaultPublisher(eventPublisher),
		logger:         defaultLogger(logger).With("component", "recalculate_balance"),
	}
}

// Handle recalculates the balance. total_due is resolved in order from the
// fee of the student's level that year (active enrollment first, current
// level otherwise), the program-wide fee of that year, then the program's
// default tuition.
func (h *RecalculateBalanceHandler) Handle(ctx context.Context, cmd RecalculateBalanceCommand) (*finance.Balance, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var balance *finance.Balance
	err := h.uow.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		balance, err = repos.Balances.Get(ctx, cmd.StudentID, cmd.AcademicYearID)
		if err != nil {
			return fmt.Errorf("recalculate_balance: get balance: %w", err)
		}

		st, err := repos.Students.GetByID(ctx, cmd.StudentID)
		if err != nil {
			return fmt.Errorf("recalculate_balance: get student: %w", err)
		}
		if st.ProgramID == nil {
			return shared.WrapError("finance", "RecalculateBalance", shared.ErrMissingProgram,
				"cannot resolve tuition", fmt.Errorf("student %s", st.ID))
		}
		program, err := repos.Curriculum.GetProgram(ctx, *st.ProgramID)
		if err != nil {
			return fmt.Errorf("recalculate_balance: get program: %w", err)
		}

		paid, err := repos.Payments.SumCompleted(ctx, cmd.StudentID, cmd.AcademicYearID)
		if err != nil {
			return fmt.Errorf("recalculate_balance: sum payments: %w", err)
		}

		levelID := st.CurrentLevelID
		enrollment, err := repos.Enrollments.GetActive(ctx, cmd.StudentID, cmd.AcademicYearID)
		if err != nil {
			return fmt.Errorf("recalculate_balance: get enrollment: %w", err)
		}
		if enrollment != nil {
			levelID = &enrollment.LevelID
		}

		var levelFee *finance.FeeSchedule
		if levelID != nil {
			levelFee, err = repos.Fees.Find(ctx, program.ID, levelID, cmd.AcademicYearID)
			if err != nil {
				return fmt.Errorf("recalculate_balance: find level fee: %w", err)
			}
		}
		programFee, err := repos.Fees.Find(ctx, program.ID, nil, cmd.AcademicYearID)
		if err != nil {
			return fmt.Errorf("recalculate_balance: find program fee: %w", err)
		}

		balance.TotalDue = shared.RoundMoney(finance.ResolveTuition(*program, levelFee, programFee))
		balance.TotalPaid = shared.RoundMoney(paid)
		balance.UpdatedAt = utcNow()
		if err := repos.Balances.Update(ctx, balance); err != nil {
			return fmt.Errorf("recalculate_balance: update: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("balance recalculated",
		"student_id", cmd.StudentID,
		"academic_year_id", cmd.AcademicYearID,
		"total_due", balance.TotalDue.StringFixed(2),
		"total_paid", balance.TotalPaid.StringFixed(2),
		"outstanding", balance.Outstanding().StringFixed(2),
	)

	events := eventBuffer{shared.NewBalanceChangedEvent(shared.EventBalanceRecalculated,
		cmd.StudentID.String(), cmd.AcademicYearID.String(),
		balance.TotalDue.StringFixed(2), balance.TotalPaid.StringFixed(2))}
	events.publish(h.eventPublisher, h.logger)

	return balance, nil
}
