// Command worker runs the registrar's periodic maintenance jobs.
//
// On startup it applies pending migrations, then runs the scheduler until
// SIGINT or SIGTERM. Jobs:
//   - reconcile_balances: opens the missing balance of every student enrolled
//     in the configured academic years.
//
// With -once the worker runs every job a single time and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campus-registrar/deliberation/config"
	"github.com/campus-registrar/deliberation/internal/bootstrap"
	"github.com/campus-registrar/deliberation/internal/infrastructure/scheduler"
	"github.com/campus-registrar/deliberation/internal/infrastructure/scheduler/jobs"
	"github.com/campus-registrar/deliberation/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	configFile := flag.String("config", "", "path to a YAML config file")
	once := flag.Bool("once", false, "run every job once and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configFile, *once); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configFile string, once bool) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load(config.Options{ConfigFile: configFile})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.Setup(cfg.Observability.LogLevel, cfg.Observability.LogFormat, "worker", cfg.IsDevelopment())
	if err != nil {
		return err
	}
	log.Info("starting registrar worker",
		"env", cfg.App.Environment,
		"timezone", cfg.App.Timezone,
		"redis", cfg.Redis.Enabled,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. INFRASTRUCTURE
	// ─────────────────────────────────────────────────────────────────────────
	rt, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		rt.Close()
		snap := rt.Bus.Metrics().Snapshot()
		log.Info("event bus drained",
			"handler_executions", snap.TotalHandlerExecs,
			"handler_failures", snap.HandlerFailures,
		)
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. SCHEDULER AND JOBS
	// ─────────────────────────────────────────────────────────────────────────
	w, err := buildWorker(cfg, rt.ReconcileHandler(), log)
	if err != nil {
		return err
	}

	if once {
		err := runOnce(ctx, w.sched, log)
		w.logStatus(ctx, rt, log)
		return err
	}

	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler disabled, waiting for shutdown")
		<-ctx.Done()
		return nil
	}

	if err := w.sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	if cfg.Observability.StatusInterval > 0 {
		go w.statusLoop(ctx, rt, cfg.Observability.StatusInterval, log)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("starting graceful shutdown", "timeout", cfg.App.ShutdownTimeout.String())

	if !w.sched.IsRunning() {
		log.Info("shutdown completed")
		return nil
	}

	stopped := make(chan error, 1)
	go func() { stopped <- w.sched.Stop() }()

	select {
	case err := <-stopped:
		if err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			return err
		}
	case <-time.After(cfg.App.ShutdownTimeout):
		return errors.New("shutdown timed out waiting for running jobs")
	}

	log.Info("shutdown completed")
	return nil
}

// worker is the scheduler with the jobs it runs.
type worker struct {
	sched     *scheduler.Scheduler
	reconcile *jobs.ReconcileBalancesJob
}

func buildWorker(cfg *config.Config, reconciler jobs.BalanceReconciler, log *slog.Logger) (*worker, error) {
	years, err := cfg.ReconcileYearIDs()
	if err != nil {
		return nil, err
	}
	schedule, err := scheduler.ParseSchedule(cfg.Scheduler.ReconcileSchedule)
	if err != nil {
		return nil, fmt.Errorf("reconcile schedule: %w", err)
	}

	sc := scheduler.DefaultSchedulerConfig()
	sc.Logger = log
	sc.Timezone = cfg.App.Location
	sc.TickInterval = cfg.Scheduler.TickInterval
	sc.JobTimeout = cfg.Scheduler.JobTimeout

	w := &worker{
		sched:     scheduler.NewScheduler(sc),
		reconcile: jobs.NewReconcileBalancesJob(reconciler, years, log),
	}
	w.sched.OnJobError(func(name string, err error) {
		log.Error("job failed", "job", name, logger.Err(err))
	})

	if err := w.sched.Register(w.reconcile, schedule); err != nil {
		return nil, err
	}
	if len(years) == 0 {
		log.Warn("no academic years to reconcile, job disabled", "job", w.reconcile.Name())
		if err := w.sched.SetEnabled(w.reconcile.Name(), false); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// runOnce runs every enabled job a single time.
func runOnce(ctx context.Context, sched *scheduler.Scheduler, log *slog.Logger) error {
	var errs []error
	for _, info := range sched.ListJobs() {
		if !info.Enabled {
			continue
		}
		res, err := sched.RunNow(ctx, info.Name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", info.Name, err))
			continue
		}
		log.Info("job completed", "job", info.Name, logger.Latency(res.Duration))
	}
	return errors.Join(errs...)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

func (w *worker) statusLoop(ctx context.Context, rt *bootstrap.Runtime, every time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.logStatus(ctx, rt, log)
		}
	}
}

func (w *worker) logStatus(ctx context.Context, rt *bootstrap.Runtime, log *slog.Logger) {
	st, err := rt.Status(ctx)
	if err != nil {
		log.Warn("status unavailable", logger.Err(err))
		return
	}
	log.Info("worker status", append(st.LogAttrs(), w.statusAttrs()...)...)
}

func (w *worker) statusAttrs() []any {
	failures := 0
	for _, res := range w.sched.History(0) {
		if !res.Success() {
			failures++
		}
	}
	attrs := []any{
		"scheduler_running", w.sched.IsRunning(),
		"recent_job_failures", failures,
	}
	if stats := w.reconcile.LastStats(); stats != nil {
		attrs = append(attrs,
			"last_reconcile_created", stats.Created,
			"last_reconcile_failed", stats.Failed,
		)
	}
	return attrs
}
