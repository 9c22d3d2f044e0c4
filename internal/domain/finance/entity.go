// Package finance models what a student owes and has paid for an academic year.
package finance

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campus-registrar/deliberation/internal/domain/academic"
	"github.com/campus-registrar/deliberation/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BALANCE
// ══════════════════════════════════════════════════════════════════════════════

// Balance is the running account of a student for one academic year.
// Unique per (StudentID, AcademicYearID).
type Balance struct {
	ID             uuid.UUID
	StudentID      uuid.UUID
	AcademicYearID uuid.UUID
	TotalDue       decimal.Decimal
	TotalPaid      decimal.Decimal
	UpdatedAt      time.Time
}

// NewBalance opens a balance with nothing paid yet.
func NewBalance(studentID, yearID uuid.UUID, totalDue decimal.Decimal) (*Balance, error) {
	if totalDue.IsNegative() {
		return nil, shared.WrapError("finance", "NewBalance", shared.ErrInvalidAmount, "invalid total due",
			fmt.Errorf("total due %s", totalDue))
	}
	return &Balance{
		ID:             uuid.New(),
		StudentID:      studentID,
		AcademicYearID: yearID,
		TotalDue:       shared.RoundMoney(totalDue),
		TotalPaid:      decimal.Zero,
		UpdatedAt:      time.Now().UTC(),
	}, nil
}

// Outstanding returns total_due - total_paid; negative means overpaid.
func (b *Balance) Outstanding() decimal.Decimal {
	return b.TotalDue.Sub(b.TotalPaid)
}

// Credit adds a completed payment to the balance.
func (b *Balance) Credit(amount decimal.Decimal) {
	b.TotalPaid = shared.RoundMoney(b.TotalPaid.Add(amount))
	b.UpdatedAt = time.Now().UTC()
}

// ══════════════════════════════════════════════════════════════════════════════
// FEE SCHEDULE
// ══════════════════════════════════════════════════════════════════════════════

// FeeSchedule is the tuition of a program for a year. A nil LevelID makes it
// the program-wide fee for that year.
type FeeSchedule struct {
	ID             uuid.UUID
	ProgramID      uuid.UUID
	LevelID        *uuid.UUID
	AcademicYearID uuid.UUID
	Amount         decimal.Decimal
}

// ResolveTuition returns the first fee found in priority order, falling back
// to the program's default tuition. Nil schedules are skipped.
func ResolveTuition(program academic.Program, candidates ...*FeeSchedule) decimal.Decimal {
	for _, fee := range candidates {
		if fee != nil {
			return fee.Amount
		}
	}
	return program.DefaultTuition
}

// ══════════════════════════════════════════════════════════════════════════════
// PAYMENT
// ══════════════════════════════════════════════════════════════════════════════

// PaymentStatus is the lifecycle state of a tuition payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// Payment is a tuition payment made by a student toward one academic year.
type Payment struct {
	ID             uuid.UUID
	StudentID      uuid.UUID
	AcademicYearID uuid.UUID
	Amount         decimal.Decimal
	Status         PaymentStatus
	Reference      string
	PaymentDate    *time.Time
}

// Approve moves a pending payment to COMPLETED, stamping the payment date
// when it was not recorded.
func (p *Payment) Approve(now time.Time) error {
	if p.Status != PaymentPending {
		return shared.WrapError("finance", "Approve", shared.ErrPaymentNotPending, "cannot approve payment",
			fmt.Errorf("payment %s is %s", p.ID, p.Status))
	}
	p.Status = PaymentCompleted
	if p.PaymentDate == nil {
		day := now.UTC().Truncate(24 * time.Hour)
		p.PaymentDate = &day
	}
	return nil
}
