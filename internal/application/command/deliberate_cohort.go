package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/campus-registrar/deliberation/internal/domain/shared"
	"github.com/campus-registrar/deliberation/internal/domain/student"
	"github.com/campus-registrar/deliberation/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELIBERATE COHORT COMMAND
// End-of-year batch: deliberates every matching student on a bounded worker
// pool. Each student is its own transaction; one student's failure is
// recorded and never stops the others.
// ══════════════════════════════════════════════════════════════════════════════

// DeliberateCohortCommand selects the students and the year to deliberate.
type DeliberateCohortCommand struct {
	AcademicYearID uuid.UUID

	// ProgramID and LevelID narrow the cohort. Nil matches every student.
	ProgramID *uuid.UUID
	LevelID   *uuid.UUID

	GeneratedBy *uuid.UUID
}

// Validate validates the command.
func (c DeliberateCohortCommand) Validate() error {
	if c.AcademicYearID == uuid.Nil {
		return errors.New("deliberate_cohort: academic_year_id is required")
	}
	return nil
}

// CohortReport summarizes a batch run.
type CohortReport struct {
	// RunID tags the run's log lines and its CohortDeliberated event.
	RunID          string
	AcademicYearID uuid.UUID
	StartedAt      time.Time
	CompletedAt    time.Time
	Duration       time.Duration

	Total    int
	Promoted int
	Repeated int
	// Completed counts promoted students who finished their program.
	Completed int
	Failed    int
	// Skipped counts students never dispatched because the run was cancelled.
	Skipped int

	Cancelled bool
	Failures  []StudentFailure
}

// Succeeded returns the number of students deliberated without error.
func (r *CohortReport) Succeeded() int {
	return r.Promoted + r.Repeated
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// StudentDeliberator deliberates a single student.
type StudentDeliberator interface {
	Handle(ctx context.Context, cmd DeliberateStudentCommand) (*DeliberationResult, error)
}

// RunLocker guards a batch run against a concurrent run over the same key.
// Acquire fails with shared.ErrDeliberationInProgress when the key is held.
type RunLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// DeliberateCohortConfig contains configuration for the batch.
type DeliberateCohortConfig struct {
	// Workers is the number of students deliberated in parallel.
	Workers int

	// StudentTimeout bounds one student's deliberation. Zero disables it.
	StudentTimeout time.Duration

	// LockTTL is how long the run lock survives a crashed process.
	LockTTL time.Duration
}

// DefaultDeliberateCohortConfig returns sensible defaults.
func DefaultDeliberateCohortConfig() DeliberateCohortConfig {
	return DeliberateCohortConfig{
		Workers:        4,
		StudentTimeout: 30 * time.Second,
		LockTTL:        2 * time.Hour,
	}
}

// DeliberateCohortHandler handles the DeliberateCohortCommand.
type DeliberateCohortHandler struct {
	uow            UnitOfWork
	deliberator    StudentDeliberator
	locker         RunLocker
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
	config         DeliberateCohortConfig
}

// NewDeliberateCohortHandler creates a new handler. locker may be nil.
func NewDeliberateCohortHandler(
	uow UnitOfWork,
	deliberator StudentDeliberator,
	locker RunLocker,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	config DeliberateCohortConfig,
) *DeliberateCohortHandler {
	if config.Workers <= 0 {
		config.Workers = DefaultDeliberateCohortConfig().Workers
	}
	return &DeliberateCohortHandler{
		uow:            uow,
		deliberator:    deliberator,
		locker:         locker,
		eventPublisher: defaultPublisher(eventPublisher),
		logger:         defaultLogger(logger).With("component", "deliberate_cohort"),
		config:         config,
	}
}

// Handle runs the batch. Cancelling ctx stops dispatching new students;
// students already in flight finish their transaction. The returned error is
// non-nil only when the run could not start.
func (h *DeliberateCohortHandler) Handle(ctx context.Context, cmd DeliberateCohortCommand) (*CohortReport, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	if h.locker != nil {
		release, err := h.locker.Acquire(ctx, "deliberation:"+cmd.AcademicYearID.String(), h.config.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("deliberate_cohort: acquire lock: %w", err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				h.logger.Warn("failed to release deliberation lock", "error", err)
			}
		}()
	}

	runID := uuid.NewString()
	log := h.logger.With(logger.RunID(runID), logger.AcademicYearID(cmd.AcademicYearID))

	var ids []uuid.UUID
	err := h.uow.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		if _, err := repos.Calendar.GetAcademicYear(ctx, cmd.AcademicYearID); err != nil {
			return fmt.Errorf("deliberate_cohort: get academic year: %w", err)
		}
		var err error
		ids, err = repos.Students.ListIDs(ctx, student.CohortFilter{ProgramID: cmd.ProgramID, LevelID: cmd.LevelID})
		if err != nil {
			return fmt.Errorf("deliberate_cohort: list students: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report := &CohortReport{
		RunID:          runID,
		AcademicYearID: cmd.AcademicYearID,
		StartedAt:      time.Now(),
		Total:          len(ids),
	}
	log.Info("starting cohort deliberation",
		"students", report.Total,
		"workers", h.config.Workers,
	)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(h.config.Workers)

	for i, id := range ids {
		if ctx.Err() != nil {
			report.Cancelled = true
			report.Skipped = len(ids) - i
			break
		}

		id := id
		g.Go(func() error {
			res, err := h.deliberateOne(ctx, DeliberateStudentCommand{
				StudentID:      id,
				AcademicYearID: cmd.AcademicYearID,
				GeneratedBy:    cmd.GeneratedBy,
			})

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				failure := newStudentFailure(id, err)
				report.Failed++
				report.Failures = append(report.Failures, failure)
				log.Error("failed to deliberate student",
					logger.StudentID(id),
					"kind", string(failure.Kind),
					logger.Err(err),
				)
				return nil
			}

			switch res.Promotion.Decision {
			case student.DecisionPromoted:
				report.Promoted++
				if res.ProgramCompleted {
					report.Completed++
				}
			default:
				report.Repeated++
			}
			return nil
		})
	}
	_ = g.Wait()

	report.CompletedAt = time.Now()
	report.Duration = report.CompletedAt.Sub(report.StartedAt)

	log.Info("cohort deliberation finished",
		logger.Latency(report.Duration),
		"total", report.Total,
		"succeeded", report.Succeeded(),
		"promoted", report.Promoted,
		"repeated", report.Repeated,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"cancelled", report.Cancelled,
	)

	done := shared.NewCohortDeliberatedEvent(cmd.AcademicYearID.String(),
		report.Total, report.Promoted, report.Repeated, report.Failed, report.Duration)
	done.BaseEvent = done.BaseEvent.WithCorrelationID(runID)
	events := eventBuffer{done}
	events.publish(h.eventPublisher, log)

	return report, nil
}

// deliberateOne runs one student on a context detached from batch
// cancellation so an in-flight transaction is never cut short by it. The
// per-student timeout still applies and surfaces as a failure.
func (h *DeliberateCohortHandler) deliberateOne(ctx context.Context, cmd DeliberateStudentCommand) (*DeliberationResult, error) {
	runCtx := context.WithoutCancel(ctx)
	if h.config.StudentTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, h.config.StudentTimeout)
		defer cancel()
	}

	res, err := h.deliberator.Handle(runCtx, cmd)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, shared.WrapError("student", "Deliberate", shared.ErrTimeout,
			fmt.Sprintf("deliberation exceeded %s", h.config.StudentTimeout), err)
	}
	return res, err
}
