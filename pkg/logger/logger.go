// Package logger builds the process-wide slog logger and the attributes shared
// by its callers. The rest of the code logs through *slog.Logger directly.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Format selects the handler used by New.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseLevel parses debug, info, warn (or warning) and error, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logger: unknown level %q", s)
	}
}

// Options configures the logger.
type Options struct {
	Output    io.Writer
	Level     slog.Level
	Format    Format
	AddSource bool

	// Attrs are attached to every record, e.g. the service name.
	Attrs []slog.Attr
}

// DefaultOptions returns JSON at info level on stdout.
func DefaultOptions() Options {
	return Options{
		Output: os.Stdout,
		Level:  slog.LevelInfo,
		Format: FormatJSON,
	}
}

// New creates a logger with the given options.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	hopts := &slog.HandlerOptions{Level: opts.Level, AddSource: opts.AddSource}

	var handler slog.Handler
	if opts.Format == FormatText {
		handler = slog.NewTextHandler(opts.Output, hopts)
	} else {
		handler = slog.NewJSONHandler(opts.Output, hopts)
	}
	if len(opts.Attrs) > 0 {
		handler = handler.WithAttrs(opts.Attrs)
	}
	return slog.New(handler)
}

// Setup builds a logger from textual settings and installs it as the slog
// default. addSource adds the caller's file and line to every record.
func Setup(level, format, service string, addSource bool) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := DefaultOptions()
	opts.Level = lvl
	opts.Format = Format(strings.ToLower(format))
	opts.AddSource = addSource
	if service != "" {
		opts.Attrs = []slog.Attr{slog.String("service", service)}
	}
	l := New(opts)
	slog.SetDefault(l)
	return l, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTRIBUTES
// ══════════════════════════════════════════════════════════════════════════════

// RunIDKey tags every record of one cohort run.
const RunIDKey = "run_id"

func StudentID(id uuid.UUID) slog.Attr      { return slog.String("student_id", id.String()) }
func AcademicYearID(id uuid.UUID) slog.Attr { return slog.String("academic_year_id", id.String()) }
func RunID(id string) slog.Attr             { return slog.String(RunIDKey, id) }
func Component(name string) slog.Attr       { return slog.String("component", name) }
func Latency(d time.Duration) slog.Attr     { return slog.Duration("latency", d) }

// Err returns an "error" attribute; nil errors log as an empty string.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
