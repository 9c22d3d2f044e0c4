package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-registrar/deliberation/config"
	"github.com/campus-registrar/deliberation/internal/infrastructure/messaging"
	"github.com/campus-registrar/deliberation/internal/infrastructure/persistence/postgres"
)

func TestPostgresConfig(t *testing.T) {
	pc := PostgresConfig(config.DatabaseConfig{
		URL:      "postgres://localhost:5432/registrar",
		MaxConns: 16,
	})
	assert.Equal(t, "postgres://localhost:5432/registrar", pc.URL)
	assert.Equal(t, int32(16), pc.MaxConns)
	// Unset values keep the pool defaults.
	assert.Equal(t, int32(2), pc.MinConns)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
}

func TestRedisConfig(t *testing.T) {
	rc := RedisConfig(config.RedisConfig{Host: "cache", Port: 6380, DB: 4})
	assert.Equal(t, "cache:6380", rc.Addr())
	assert.Equal(t, 4, rc.DB)
	assert.Equal(t, 10, rc.PoolSize)
}

func TestCohortConfig(t *testing.T) {
	cc := CohortConfig(config.DeliberationConfig{Workers: 12, StudentTimeout: 0})
	assert.Equal(t, 12, cc.Workers)
	assert.Zero(t, cc.StudentTimeout)
	assert.Equal(t, 2*time.Hour, cc.LockTTL)
}

func TestOpen_UnparsableURLFailsWithoutRetry(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{URL: "postgres://registrar@localhost:notaport/registrar"}}

	start := time.Now()
	rt, err := Open(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Nil(t, rt)
	assert.ErrorIs(t, err, postgres.ErrInvalidConfig)
	// The first retry would wait at least 400ms.
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestStatus_LogAttrs(t *testing.T) {
	st := Status{
		DB:  postgres.PoolStatus{Reachable: true, AcquiredConns: 10, MaxConns: 10, SchemaVersion: 3},
		Bus: messaging.EventBusMetricsSnapshot{TotalHandlerExecs: 7, HandlerFailures: 1},
	}

	attrs := st.LogAttrs()
	assert.Subset(t, attrs, []any{"db_saturated", true, "events_handled", int64(7), "db_schema_version", int64(3)})
	assert.NotContains(t, attrs, "cache_breaker")

	st.CacheBreaker = "open"
	assert.Subset(t, st.LogAttrs(), []any{"cache_breaker", "open"})
}
