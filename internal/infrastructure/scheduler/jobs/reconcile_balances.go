// Package jobs contains the worker's scheduled jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/campus-registrar/deliberation/internal/application/command"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE BALANCES JOB
// ══════════════════════════════════════════════════════════════════════════════

// BalanceReconciler opens missing balances for one academic year.
type BalanceReconciler interface {
	Handle(ctx context.Context, cmd command.ReconcileBalancesCommand) (*command.ReconcileBalancesResult, error)
}

// ReconcileBalancesJob opens the missing balance of every student enrolled
// in the configured academic years.
type ReconcileBalancesJob struct {
	reconciler BalanceReconciler
	years      []uuid.UUID
	logger     *slog.Logger

	lastStats atomic.Pointer[ReconcileStats]
}

// ReconcileStats summarizes one run across every configured year.
type ReconcileStats struct {
	StartedAt time.Time
	Duration  time.Duration
	Years     int
	Enrolled  int
	Created   int
	Existing  int
	Failed    int
}

// NewReconcileBalancesJob creates the job for the given years.
func NewReconcileBalancesJob(reconciler BalanceReconciler, years []uuid.UUID, logger *slog.Logger) *ReconcileBalancesJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileBalancesJob{
		reconciler: reconciler,
		years:      years,
		logger:     logger.With("job", "reconcile_balances"),
	}
}

// Name implements scheduler.Job.
func (j *ReconcileBalancesJob) Name() string {
	return "reconcile_balances"
}

// Description implements scheduler.Job.
func (j *ReconcileBalancesJob) Description() string {
	return "Open missing balances for enrolled students"
}

// Run reconciles each year in turn. A year that fails to reconcile does not
// stop the others; per-student failures are counted, not returned.
func (j *ReconcileBalancesJob) Run(ctx context.Context) error {
	stats := &ReconcileStats{StartedAt: time.Now()}
	defer func() {
		stats.Duration = time.Since(stats.StartedAt)
		j.lastStats.Store(stats)
	}()

	if len(j.years) == 0 {
		j.logger.Debug("no academic years configured")
		return nil
	}

	var errs []error
	for _, yearID := range j.years {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		res, err := j.reconciler.Handle(ctx, command.ReconcileBalancesCommand{AcademicYearID: yearID})
		if err != nil {
			errs = append(errs, fmt.Errorf("year %s: %w", yearID, err))
			continue
		}

		stats.Years++
		stats.Enrolled += res.Enrolled
		stats.Created += res.Created
		stats.Existing += res.Existing
		stats.Failed += res.Failed

		for _, f := range res.Failures {
			j.logger.Warn("balance not reconciled",
				"academic_year_id", yearID,
				"student_id", f.StudentID,
				"kind", string(f.Kind),
				"error", f.Err,
			)
		}
	}

	j.logger.Info("reconciliation finished",
		"years", stats.Years,
		"enrolled", stats.Enrolled,
		"created", stats.Created,
		"failed", stats.Failed,
	)
	return errors.Join(errs...)
}

// LastStats returns the statistics of the latest run, or nil.
func (j *ReconcileBalancesJob) LastStats() *ReconcileStats {
	return j.lastStats.Load()
}
