package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campus-registrar/deliberation/internal/domain/finance"
	"github.com/campus-registrar/deliberation/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPROVE PAYMENT COMMAND
// Completes a pending payment and credits it to the student's balance.
// ══════════════════════════════════════════════════════════════════════════════

// ApprovePaymentCommand identifies the payment to approve.
type ApprovePaymentCommand struct {
	PaymentID uuid.UUID
}

// Validate validates the command.
func (c ApprovePaymentCommand) Validate() error {
	if c.PaymentID == uuid.Nil {
		return errors.New("approve_payment: payment_id is required")
	}
	return nil
}

// ApprovePaymentResult contains the approved payment and the credited balance.
type ApprovePaymentResult struct {
	Payment *finance.Payment
	Balance *finance.Balance
}

// ApprovePaymentHandler handles the ApprovePaymentCommand.
type ApprovePaymentHandler struct {
	uow            UnitOfWork
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewApprovePaymentHandler creates a new handler.
func NewApprovePaymentHandler(uow UnitOfWork, eventPublisher shared.EventPublisher, logger *slog.Logger) *ApprovePaymentHandler {
	return &ApprovePaymentHandler{
		uow:            uow,
		eventPublisher: defaultPublisher(eventPublisher),
		logger:         defaultLogger(logger).With("component", "approve_payment"),
	}
}

// Handle approves the payment. A missing balance is opened with nothing due.
func (h *ApprovePaymentHandler) Handle(ctx context.Context, cmd ApprovePaymentCommand) (*ApprovePaymentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	result := &ApprovePaymentResult{}
	err := h.uow.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		payment, err := repos.Payments.Get(ctx, cmd.PaymentID)
		if err != nil {
			return fmt.Errorf("approve_payment: get payment: %w", err)
		}
		if err := payment.Approve(utcNow()); err != nil {
			return err
		}
		if err := repos.Payments.UpdateStatus(ctx, payment); err != nil {
			return fmt.Errorf("approve_payment: update payment: %w", err)
		}

		balance, err := repos.Balances.Get(ctx, payment.StudentID, payment.AcademicYearID)
		if errors.Is(err, shared.ErrBalanceNotFound) {
			balance, err = finance.NewBalance(payment.StudentID, payment.AcademicYearID, decimal.Zero)
			if err != nil {
				return err
			}
			if _, err = repos.Balances.CreateIfAbsent(ctx, balance); err != nil {
				return fmt.Errorf("approve_payment: open balance: %w", err)
			}
			balance, err = repos.Balances.Get(ctx, payment.StudentID, payment.AcademicYearID)
		}
		if err != nil {
			return fmt.Errorf("approve_payment: get balance: %w", err)
		}

		balance.Credit(payment.Amount)
		if err := repos.Balances.Update(ctx, balance); err != nil {
			return fmt.Errorf("approve_payment: update balance: %w", err)
		}

		result.Payment = payment
		result.Balance = balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("payment approved",
		"payment_id", result.Payment.ID,
		"student_id", result.Payment.StudentID,
		"amount", result.Payment.Amount.StringFixed(2),
		"outstanding", result.Balance.Outstanding().StringFixed(2),
	)

	events := eventBuffer{shared.NewBalanceChangedEvent(shared.EventPaymentApproved,
		result.Payment.StudentID.String(), result.Payment.AcademicYearID.String(),
		result.Balance.TotalDue.StringFixed(2), result.Balance.TotalPaid.StringFixed(2))}
	events.publish(h.eventPublisher, h.logger)

	return result, nil
}
