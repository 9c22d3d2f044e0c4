// Package bootstrap opens the process resources shared by the binaries and
// builds the application handlers on top of them.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/campus-registrar/deliberation/config"
	"github.com/campus-registrar/deliberation/internal/application/command"
	"github.com/campus-registrar/deliberation/internal/application/eventhandler"
	"github.com/campus-registrar/deliberation/internal/application/query"
	"github.com/campus-registrar/deliberation/internal/infrastructure/messaging"
	"github.com/campus-registrar/deliberation/internal/infrastructure/persistence/postgres"
	"github.com/campus-registrar/deliberation/internal/infrastructure/persistence/redis"
	"github.com/campus-registrar/deliberation/pkg/circuitbreaker"
	"github.com/campus-registrar/deliberation/pkg/logger"
	"github.com/campus-registrar/deliberation/pkg/retry"
)

// Runtime holds the open resources. Cache is nil when Redis is disabled.
type Runtime struct {
	Config *config.Config
	Logger *slog.Logger

	DB    *postgres.Connection
	UoW   *postgres.UnitOfWork
	Cache *redis.Cache
	Bus   *messaging.InMemoryEventBus

	standings *redis.StandingCache
	breaker   *circuitbreaker.CircuitBreaker
}

// PostgresConfig maps the database settings onto the pool configuration.
func PostgresConfig(cfg config.DatabaseConfig) postgres.Config {
	pc := postgres.DefaultConfig()
	pc.URL = cfg.URL
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	return pc
}

// RedisConfig maps the redis settings onto the client configuration.
func RedisConfig(cfg config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.Host = cfg.Host
	rc.Port = cfg.Port
	rc.Password = cfg.Password
	rc.DB = cfg.DB
	if cfg.PoolSize > 0 {
		rc.PoolSize = cfg.PoolSize
	}
	return rc
}

// CohortConfig maps the deliberation settings onto the batch configuration.
func CohortConfig(cfg config.DeliberationConfig) command.DeliberateCohortConfig {
	cc := command.DefaultDeliberateCohortConfig()
	cc.Workers = cfg.Workers
	cc.StudentTimeout = cfg.StudentTimeout
	if cfg.LockTTL > 0 {
		cc.LockTTL = cfg.LockTTL
	}
	return cc
}

// Open connects to PostgreSQL, applies migrations when configured, connects
// to Redis when enabled and starts the event bus. Connection attempts are
// retried with backoff so the binaries tolerate a database that is still
// starting; a database URL that cannot be parsed fails at once.
func Open(ctx context.Context, cfg *config.Config, base *slog.Logger) (*Runtime, error) {
	if base == nil {
		base = slog.Default()
	}
	rt := &Runtime{Config: cfg, Logger: base}
	log := base.With(logger.Component("bootstrap"))

	connectOpts := append(retry.ConnectOptions(), retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		log.Warn("connection attempt failed", "attempt", attempt, "retry_in", delay.String(), logger.Err(err))
	}))

	db, err := retry.DoWithData(ctx, func(ctx context.Context) (*postgres.Connection, error) {
		conn, err := postgres.NewConnection(ctx, PostgresConfig(cfg.Database))
		if errors.Is(err, postgres.ErrInvalidConfig) {
			return nil, retry.Permanent(err)
		}
		return conn, err
	}, connectOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	rt.DB = db
	rt.UoW = postgres.NewUnitOfWork(db)
	log.Info("connected to postgres")

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, base); err != nil {
			rt.Close()
			return nil, err
		}
	}

	if cfg.Redis.Enabled {
		cache, err := retry.DoWithData(ctx, func(ctx context.Context) (*redis.Cache, error) {
			return redis.NewCache(ctx, RedisConfig(cfg.Redis))
		}, connectOpts...)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		rt.Cache = cache
		rt.breaker = circuitbreaker.CacheBreaker("standing-cache",
			func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
			circuitbreaker.WithIsFailure(redis.IsUnavailable),
		)
		rt.standings = redis.NewStandingCache(cache).WithBreaker(rt.breaker)
		log.Info("connected to redis", "addr", cfg.Redis.RedisAddr())
	}

	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = base
	rt.Bus = messaging.NewInMemoryEventBus(busCfg)

	if rt.standings != nil {
		if err := eventhandler.NewOnStandingChangedHandler(rt.standings, base).Register(rt.Bus); err != nil {
			rt.Close()
			return nil, fmt.Errorf("register standing invalidator: %w", err)
		}
	}

	return rt, nil
}

// Close drains the event bus and closes the connections.
func (rt *Runtime) Close() {
	if rt.Bus != nil {
		if err := rt.Bus.Close(); err != nil && !errors.Is(err, messaging.ErrEventBusClosed) {
			rt.Logger.Warn("event bus close failed", "error", err)
		}
	}
	if rt.Cache != nil {
		if err := rt.Cache.Close(); err != nil {
			rt.Logger.Warn("redis close failed", "error", err)
		}
	}
	if rt.DB != nil {
		rt.DB.Close()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// CohortHandler builds the batch deliberation handler. The run lock is only
// used when Redis is available.
func (rt *Runtime) CohortHandler() *command.DeliberateCohortHandler {
	student := command.NewDeliberateStudentHandler(rt.UoW, rt.Bus, rt.Logger)

	var locker command.RunLocker
	if rt.Cache != nil {
		locker = redis.NewRunLocker(rt.Cache)
	}
	// The batch itself only lists the cohort; each student writes through its
	// own handler.
	return command.NewDeliberateCohortHandler(rt.UoW.ReadOnly(), student, locker, rt.Bus, rt.Logger,
		CohortConfig(rt.Config.Deliberation))
}

// ReconcileHandler builds the balance reconciliation handler.
func (rt *Runtime) ReconcileHandler() *command.ReconcileBalancesHandler {
	return command.NewReconcileBalancesHandler(rt.UoW, rt.Bus, rt.Logger)
}

// StandingHandler builds the standing query, cached when Redis is available.
func (rt *Runtime) StandingHandler() *query.GetStudentStandingHandler {
	var cache query.StandingCache
	if rt.standings != nil {
		cache = rt.standings
	}
	return query.NewGetStudentStandingHandler(postgres.NewStandingReader(rt.DB.Pool()), cache,
		rt.Config.Deliberation.CacheTTL, rt.Logger)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is a snapshot of the open resources.
type Status struct {
	DB  postgres.PoolStatus
	Bus messaging.EventBusMetricsSnapshot

	// CacheBreaker is the standing cache breaker state, empty without Redis.
	CacheBreaker string
}

// Status samples the database, the event bus and the cache breaker.
func (rt *Runtime) Status(ctx context.Context) (Status, error) {
	db, err := rt.DB.Health(ctx)
	if err != nil {
		return Status{}, err
	}
	st := Status{DB: db, Bus: rt.Bus.Metrics().Snapshot()}
	if rt.breaker != nil {
		st.CacheBreaker = rt.breaker.State().String()
	}
	return st, nil
}

// LogAttrs flattens the status for a structured log line.
func (s Status) LogAttrs() []any {
	attrs := append(s.DB.LogAttrs(),
		"events_handled", s.Bus.TotalHandlerExecs,
		"event_handler_failures", s.Bus.HandlerFailures,
	)
	if s.CacheBreaker != "" {
		attrs = append(attrs, "cache_breaker", s.CacheBreaker)
	}
	return attrs
}
