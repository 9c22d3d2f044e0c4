package finance

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceRepository persists balances.
type BalanceRepository interface {
	// CreateIfAbsent inserts the balance unless one already exists for
	// (student, academic year). It reports whether a row was created.
	CreateIfAbsent(ctx context.Context, balance *Balance) (bool, error)

	// Get returns ErrBalanceNotFound when absent.
	Get(ctx context.Context, studentID, academicYearID uuid.UUID) (*Balance, error)

	// Update overwrites total_due and total_paid.
	Update(ctx context.Context, balance *Balance) error
}

// FeeScheduleRepository looks up tuition fees.
type FeeScheduleRepository interface {
	// Find returns the fee for (program, level, year), or nil without error
	// when none is configured. A nil levelID matches only program-wide fees.
	Find(ctx context.Context, programID uuid.UUID, levelID *uuid.UUID, academicYearID uuid.UUID) (*FeeSchedule, error)
}

// PaymentRepository persists payments.
type PaymentRepository interface {
	// Get returns ErrPaymentNotFound when absent.
	Get(ctx context.Context, id uuid.UUID) (*Payment, error)

	// UpdateStatus writes the payment's status and date.
	UpdateStatus(ctx context.Context, payment *Payment) error

	// SumCompleted totals the COMPLETED payments of a student for a year.
	SumCompleted(ctx context.Context, studentID, academicYearID uuid.UUID) (decimal.Decimal, error)
}
