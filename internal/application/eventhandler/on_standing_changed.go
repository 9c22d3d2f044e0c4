// Package eventhandler contains subscribers to domain events. They run after
// the producing transaction has committed and apply side effects such as
// cache invalidation.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/campus-registrar/deliberation/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON STANDING CHANGED HANDLER
// Drops cached standings once the data behind them has changed.
// ═══════════════════════════════════════════════════════════════════════════

// StandingInvalidator removes cached standings.
type StandingInvalidator interface {
	Invalidate(ctx context.Context, studentID, academicYearID uuid.UUID) error
	InvalidateStudent(ctx context.Context, studentID uuid.UUID) error
}

// OnStandingChangedHandler invalidates standings on PromotionDecided and
// ReportCardUpdated events.
type OnStandingChangedHandler struct {
	cache   StandingInvalidator
	logger  *slog.Logger
	timeout time.Duration
}

// NewOnStandingChangedHandler creates a new handler.
func NewOnStandingChangedHandler(cache StandingInvalidator, logger *slog.Logger) *OnStandingChangedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnStandingChangedHandler{
		cache:   cache,
		logger:  logger.With("handler", "on_standing_changed"),
		timeout: 5 * time.Second,
	}
}

// Register subscribes the handler to the events it reacts to.
func (h *OnStandingChangedHandler) Register(bus shared.EventSubscriber) error {
	for _, t := range []shared.EventType{shared.EventPromotionDecided, shared.EventReportCardUpdated} {
		if err := bus.Subscribe(t, h.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}
	return nil
}

// Handle implements shared.EventHandler.
func (h *OnStandingChangedHandler) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	studentID, err := uuid.Parse(event.AggregateID())
	if err != nil {
		h.logger.Warn("event with non-uuid aggregate", "event_type", event.EventType(), "aggregate_id", event.AggregateID())
		return nil
	}

	switch e := event.(type) {
	case shared.PromotionDecidedEvent:
		yearID, err := uuid.Parse(e.AcademicYearID)
		if err != nil {
			return fmt.Errorf("on_standing_changed: academic year id: %w", err)
		}
		if err := h.cache.Invalidate(ctx, studentID, yearID); err != nil {
			return fmt.Errorf("on_standing_changed: invalidate standing: %w", err)
		}
		h.logger.Debug("standing invalidated", "student_id", studentID, "academic_year_id", yearID)

	case shared.ReportCardUpdatedEvent:
		if err := h.cache.InvalidateStudent(ctx, studentID); err != nil {
			return fmt.Errorf("on_standing_changed: invalidate student standings: %w", err)
		}
		h.logger.Debug("student standings invalidated", "student_id", studentID, "semester_id", e.SemesterID)

	default:
		h.logger.Warn("unexpected event", "event_type", event.EventType())
	}
	return nil
}
