// Package command contains write operations (CQRS - Commands).
// Every command runs its reads and writes inside one unit of work so that a
// failure leaves no partial state behind. Domain events are published only
// after the unit of work commits.
package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/campus-registrar/deliberation/internal/domain/academic"
	"github.com/campus-registrar/deliberation/internal/domain/finance"
	"github.com/campus-registrar/deliberation/internal/domain/shared"
	"github.com/campus-registrar/deliberation/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// Repositories is the set of repositories bound to one transaction.
type Repositories struct {
	Calendar    academic.CalendarRepository
	Curriculum  academic.CurriculumRepository
	Exams       academic.ExamRepository
	Grades      academic.GradeRepository
	Students    student.Repository
	Promotions  student.PromotionRepository
	Enrollments student.EnrollmentRepository
	Balances    finance.BalanceRepository
	Fees        finance.FeeScheduleRepository
	Payments    finance.PaymentRepository
}

// UnitOfWork runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise. fn may run more than once when the
// store retries a serialization failure, so it must not leak state between
// attempts.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// eventBuffer collects events raised inside a transaction.
type eventBuffer []shared.Event

func (b *eventBuffer) add(e shared.Event) {
	*b = append(*b, e)
}

// publish sends buffered events once the transaction has committed. Publish
// failures are logged and never undo committed work.
func (b eventBuffer) publish(publisher shared.EventPublisher, logger *slog.Logger) {
	for _, e := range b {
		if err := publisher.Publish(e); err != nil {
			logger.Warn("failed to publish event",
				"event_type", e.EventType(),
				"aggregate_id", e.AggregateID(),
				"error", err,
			)
		}
	}
}

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func defaultPublisher(publisher shared.EventPublisher) shared.EventPublisher {
	if publisher == nil {
		return shared.NopPublisher{}
	}
	return publisher
}

func utcNow() time.Time {
	return time.Now().UTC()
}
