package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATIONS
// Schema changes live as goose SQL files embedded in the binary.
// ══════════════════════════════════════════════════════════════════════════════

//go:embed migrations/*.sql
var migrationFS embed.FS

const (
	migrationsDir      = "migrations"
	migrationTableName = "schema_migrations"
)

// goose keeps its settings in package globals.
var gooseMu sync.Mutex

// gooseLogger adapts goose's logger to slog. Fatalf does not exit; the
// error is returned by goose and handled by the caller.
type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Migrate applies every pending migration.
func (c *Connection) Migrate(ctx context.Context, logger *slog.Logger) error {
	return c.runGoose(ctx, logger, func(ctx context.Context, db *sql.DB) error {
		return goose.UpContext(ctx, db, migrationsDir)
	})
}

// SchemaVersion returns the version of the last applied migration.
func (c *Connection) SchemaVersion(ctx context.Context) (int64, error) {
	var version int64
	err := c.runGoose(ctx, slog.Default(), func(ctx context.Context, db *sql.DB) error {
		var err error
		version, err = goose.GetDBVersionContext(ctx, db)
		return err
	})
	return version, err
}

func (c *Connection) runGoose(ctx context.Context, logger *slog.Logger, fn func(context.Context, *sql.DB) error) error {
	if logger == nil {
		logger = slog.Default()
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationFS)
	goose.SetTableName(migrationTableName)
	goose.SetLogger(gooseLogger{logger: logger.With("component", "migrations")})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%w: set dialect: %v", ErrMigrationFailed, err)
	}

	db := stdlib.OpenDBFromPool(c.Pool())
	defer db.Close()

	if err := fn(ctx, db); err != nil {
		return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}
	return nil
}
