package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campus-registrar/deliberation/internal/domain/finance"
	"github.com/campus-registrar/deliberation/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BALANCE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// BalanceRepository implements finance.BalanceRepository.
type BalanceRepository struct {
	q Querier
}

// NewBalanceRepository creates a new BalanceRepository.
func NewBalanceRepository(q Querier) *BalanceRepository {
	return &BalanceRepository{q: q}
}

// CreateIfAbsent inserts b unless the (student, year) balance exists.
func (r *BalanceRepository) CreateIfAbsent(ctx context.Context, b *finance.Balance) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO balances (id, student_id, academic_year_id, total_due, total_paid, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, academic_year_id) DO NOTHING
	`, b.ID, b.StudentID, b.AcademicYearID, b.TotalDue, b.TotalPaid, b.UpdatedAt)
	if err != nil {
		return false, mapError(err, "CreateBalance", nil)
	}
	return tag.RowsAffected() == 1, nil
}

// Get returns the (student, year) balance and locks the row until the
// surrounding transaction ends, so concurrent credits do not overwrite each
// other.
func (r *BalanceRepository) Get(ctx context.Context, studentID, academicYearID uuid.UUID) (*finance.Balance, error) {
	var b finance.Balance
	err := r.q.QueryRow(ctx, `
		SELECT id, student_id, academic_year_id, total_due, total_paid, updated_at
		FROM balances
		WHERE student_id = $1 AND academic_year_id = $2
		FOR UPDATE
	`, studentID, academicYearID).Scan(&b.ID, &b.StudentID, &b.AcademicYearID, &b.TotalDue, &b.TotalPaid, &b.UpdatedAt)
	if err != nil {
		return nil, mapError(err, "GetBalance", shared.ErrBalanceNotFound)
	}
	return &b, nil
}

// Update writes the amounts of an existing balance.
func (r *BalanceRepository) Update(ctx context.Context, b *finance.Balance) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE balances SET
			total_due = $1,
			total_paid = $2,
			updated_at = $3
		WHERE student_id = $4 AND academic_year_id = $5
	`, b.TotalDue, b.TotalPaid, b.UpdatedAt, b.StudentID, b.AcademicYearID)
	if err != nil {
		return mapError(err, "UpdateBalance", nil)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrBalanceNotFound
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FEE SCHEDULE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// FeeScheduleRepository implements finance.FeeScheduleRepository.
type FeeScheduleRepository struct {
	q Querier
}

// NewFeeScheduleRepository creates a new FeeScheduleRepository.
func NewFeeScheduleRepository(q Querier) *FeeScheduleRepository {
	return &FeeScheduleRepository{q: q}
}

// Find returns the fee of (program, level, year). A nil level selects the
// program-wide fee. Returns nil when no fee is defined.
func (r *FeeScheduleRepository) Find(ctx context.Context, programID uuid.UUID, levelID *uuid.UUID, academicYearID uuid.UUID) (*finance.FeeSchedule, error) {
	var f finance.FeeSchedule
	err := r.q.QueryRow(ctx, `
		SELECT id, program_id, level_id, academic_year_id, amount
		FROM fee_schedules
		WHERE program_id = $1
		  AND level_id IS NOT DISTINCT FROM $2
		  AND academic_year_id = $3
		LIMIT 1
	`, programID, levelID, academicYearID).Scan(&f.ID, &f.ProgramID, &f.LevelID, &f.AcademicYearID, &f.Amount)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "FindFee", nil)
	}
	return &f, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PAYMENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// PaymentRepository implements finance.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(q Querier) *PaymentRepository {
	return &PaymentRepository{q: q}
}

// Get returns a payment by ID, locked for the rest of the transaction.
func (r *PaymentRepository) Get(ctx context.Context, id uuid.UUID) (*finance.Payment, error) {
	var (
		p      finance.Payment
		status string
	)
	err := r.q.QueryRow(ctx, `
		SELECT id, student_id, academic_year_id, amount, status, reference, payment_date
		FROM payments
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&p.ID, &p.StudentID, &p.AcademicYearID, &p.Amount, &status, &p.Reference, &p.PaymentDate)
	if err != nil {
		return nil, mapError(err, "GetPayment", shared.ErrPaymentNotFound)
	}
	p.Status = finance.PaymentStatus(status)
	return &p, nil
}

// UpdateStatus writes the status and payment date.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, p *finance.Payment) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE payments SET status = $1, payment_date = $2 WHERE id = $3
	`, string(p.Status), p.PaymentDate, p.ID)
	if err != nil {
		return mapError(err, "UpdatePaymentStatus", nil)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrPaymentNotFound
	}
	return nil
}

// SumCompleted returns the total of the student's completed payments for
// the year.
func (r *PaymentRepository) SumCompleted(ctx context.Context, studentID, academicYearID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM payments
		WHERE student_id = $1 AND academic_year_id = $2 AND status = $3
	`, studentID, academicYearID, string(finance.PaymentCompleted)).Scan(&total)
	if err != nil {
		return decimal.Zero, mapError(err, "SumPayments", nil)
	}
	return total, nil
}
