// Command deliberate runs the end-of-year deliberation of a cohort.
//
//	deliberate -year <uuid> [-program <uuid>] [-level <uuid>] [-workers N]
//	deliberate -year <uuid> -student <uuid>
//
// The first form deliberates every matching student, prints the cohort report
// and exits with status 2 when any student failed. The second prints one
// student's standing for the year.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"

	"github.com/campus-registrar/deliberation/config"
	"github.com/campus-registrar/deliberation/internal/application/command"
	"github.com/campus-registrar/deliberation/internal/application/query"
	"github.com/campus-registrar/deliberation/internal/bootstrap"
	"github.com/campus-registrar/deliberation/internal/domain/shared"
	"github.com/campus-registrar/deliberation/pkg/logger"
)

const (
	exitOK            = 0
	exitError         = 1
	exitStudentFailed = 2
)

// options holds the parsed command line.
type options struct {
	configFile string
	yearID     uuid.UUID
	programID  *uuid.UUID
	levelID    *uuid.UUID
	studentID  *uuid.UUID
	workers    int
	jsonOutput bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "deliberate: %v\n", err)
		return exitError
	}

	cfg, err := config.Load(config.Options{ConfigFile: opts.configFile})
	if err != nil {
		fmt.Fprintf(stderr, "deliberate: %v\n", err)
		return exitError
	}
	if opts.workers > 0 {
		cfg.Deliberation.Workers = opts.workers
	}

	log, err := logger.Setup(cfg.Observability.LogLevel, cfg.Observability.LogFormat, "deliberate", cfg.IsDevelopment())
	if err != nil {
		fmt.Fprintf(stderr, "deliberate: %v\n", err)
		return exitError
	}

	rt, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", logger.Err(err))
		return exitError
	}
	defer rt.Close()

	if opts.studentID != nil {
		res, err := rt.StandingHandler().Handle(ctx, query.GetStudentStandingQuery{
			StudentID:      *opts.studentID,
			AcademicYearID: opts.yearID,
		})
		if shared.IsNotFound(err) {
			fmt.Fprintf(stderr, "deliberate: no student %s\n", *opts.studentID)
			return exitError
		}
		if err != nil {
			log.Error("standing lookup failed", logger.StudentID(*opts.studentID), logger.Err(err))
			return exitError
		}
		if err := writeJSON(stdout, res.Standing); err != nil {
			log.Error("write standing", logger.Err(err))
			return exitError
		}
		return exitOK
	}

	report, err := rt.CohortHandler().Handle(ctx, command.DeliberateCohortCommand{
		AcademicYearID: opts.yearID,
		ProgramID:      opts.programID,
		LevelID:        opts.levelID,
	})
	if err != nil {
		log.Error("cohort deliberation failed", logger.AcademicYearID(opts.yearID), logger.Err(err))
		return exitError
	}

	if opts.jsonOutput {
		err = writeJSON(stdout, reportView(report))
	} else {
		err = writeReport(stdout, report)
	}
	if err != nil {
		log.Error("write report", logger.Err(err))
		return exitError
	}

	if report.Failed > 0 || report.Cancelled {
		return exitStudentFailed
	}
	return exitOK
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("deliberate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		opts                            options
		year, program, level, studentID string
	)
	fs.StringVar(&opts.configFile, "config", "", "path to a YAML config file")
	fs.StringVar(&year, "year", "", "academic year to deliberate (required)")
	fs.StringVar(&program, "program", "", "restrict the cohort to one program")
	fs.StringVar(&level, "level", "", "restrict the cohort to one level")
	fs.StringVar(&studentID, "student", "", "print this student's standing instead of deliberating")
	fs.IntVar(&opts.workers, "workers", 0, "students deliberated in parallel (default from config)")
	fs.BoolVar(&opts.jsonOutput, "json", false, "print the report as JSON")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if year == "" {
		return nil, errors.New("-year is required")
	}
	if opts.workers < 0 {
		return nil, errors.New("-workers must be positive")
	}

	id, err := shared.ParseID(year)
	if err != nil {
		return nil, fmt.Errorf("-year: %w", err)
	}
	opts.yearID = id

	for _, f := range []struct {
		name string
		raw  string
		dst  **uuid.UUID
	}{
		{"program", program, &opts.programID},
		{"level", level, &opts.levelID},
		{"student", studentID, &opts.studentID},
	} {
		if *f.dst, err = shared.ParseOptionalID(f.raw); err != nil {
			return nil, fmt.Errorf("-%s: %w", f.name, err)
		}
	}
	return &opts, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// OUTPUT
// ══════════════════════════════════════════════════════════════════════════════

type failureView struct {
	StudentID string `json:"student_id"`
	Kind      string `json:"kind"`
	Error     string `json:"error"`
}

type cohortReportView struct {
	RunID          string        `json:"run_id"`
	AcademicYearID string        `json:"academic_year_id"`
	Duration       string        `json:"duration"`
	Total          int           `json:"total"`
	Promoted       int           `json:"promoted"`
	Repeated       int           `json:"repeated"`
	Completed      int           `json:"completed"`
	Failed         int           `json:"failed"`
	Skipped        int           `json:"skipped"`
	Cancelled      bool          `json:"cancelled"`
	Failures       []failureView `json:"failures,omitempty"`
}

func reportView(r *command.CohortReport) cohortReportView {
	v := cohortReportView{
		RunID:          r.RunID,
		AcademicYearID: r.AcademicYearID.String(),
		Duration:       r.Duration.String(),
		Total:          r.Total,
		Promoted:       r.Promoted,
		Repeated:       r.Repeated,
		Completed:      r.Completed,
		Failed:         r.Failed,
		Skipped:        r.Skipped,
		Cancelled:      r.Cancelled,
	}
	for _, f := range r.Failures {
		v.Failures = append(v.Failures, failureView{StudentID: f.StudentID.String(), Kind: string(f.Kind), Error: f.Err.Error()})
	}
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeReport(w io.Writer, r *command.CohortReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", r.RunID)
	fmt.Fprintf(tw, "academic year\t%s\n", r.AcademicYearID)
	fmt.Fprintf(tw, "duration\t%s\n", r.Duration.Round(1e6))
	fmt.Fprintf(tw, "students\t%d\n", r.Total)
	fmt.Fprintf(tw, "succeeded\t%d\n", r.Succeeded())
	fmt.Fprintf(tw, "promoted\t%d\n", r.Promoted)
	fmt.Fprintf(tw, "  completed program\t%d\n", r.Completed)
	fmt.Fprintf(tw, "repeated\t%d\n", r.Repeated)
	fmt.Fprintf(tw, "failed\t%d\n", r.Failed)
	if r.Cancelled {
		fmt.Fprintf(tw, "skipped (cancelled)\t%d\n", r.Skipped)
	}
	if len(r.Failures) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "student\tkind\terror")
		for _, f := range r.Failures {
			fmt.Fprintf(tw, "%s\t%s\t%v\n", f.StudentID, f.Kind, f.Err)
		}
	}
	return tw.Flush()
}
