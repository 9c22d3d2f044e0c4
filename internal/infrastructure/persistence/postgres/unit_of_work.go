package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/campus-registrar/deliberation/internal/application/command"
	"github.com/campus-registrar/deliberation/pkg/retry"
)

// UnitOfWork implements command.UnitOfWork over a pgx transaction. Every
// repository handed to fn shares the transaction.
type UnitOfWork struct {
	conn    *Connection
	opts    TxOptions
	retrier *retry.Retrier
}

// NewUnitOfWork creates a unit of work with read-committed transactions.
// Serialization failures and deadlocks are retried from the start.
func NewUnitOfWork(conn *Connection) *UnitOfWork {
	return &UnitOfWork{
		conn:    conn,
		opts:    DefaultTxOptions(),
		retrier: retry.TransactionRetrier(),
	}
}

// ReadOnly returns a unit of work whose transactions reject writes. Use it for
// handlers that only read inside the transaction.
func (u *UnitOfWork) ReadOnly() *UnitOfWork {
	return &UnitOfWork{conn: u.conn, opts: ReadOnlyTxOptions(), retrier: u.retrier}
}

// WithinTx runs fn in a transaction.
func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, repos command.Repositories) error) error {
	return u.retrier.Do(ctx, func(ctx context.Context) error {
		err := u.conn.WithTx(ctx, u.opts, func(tx pgx.Tx) error {
			return fn(ctx, Repositories(tx))
		})
		if IsTransient(err) {
			return retry.Retryable(err)
		}
		return err
	})
}

// Repositories binds every repository to q.
func Repositories(q Querier) command.Repositories {
	return command.Repositories{
		Calendar:    NewCalendarRepository(q),
		Curriculum:  NewCurriculumRepository(q),
		Exams:       NewExamRepository(q),
		Grades:      NewGradeRepository(q),
		Students:    NewStudentRepository(q),
		Promotions:  NewPromotionRepository(q),
		Enrollments: NewEnrollmentRepository(q),
		Balances:    NewBalanceRepository(q),
		Fees:        NewFeeScheduleRepository(q),
		Payments:    NewPaymentRepository(q),
	}
}
