package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-registrar/deliberation/internal/application/query"
	"github.com/campus-registrar/deliberation/internal/domain/shared"
	"github.com/campus-registrar/deliberation/pkg/circuitbreaker"
)

// testCache connects to the Redis named by REGISTRAR_TEST_REDIS_ADDR
// (host:port) and skips the test when it is unset.
func testCache(t *testing.T) *Cache {
	t.Helper()
	addr := os.Getenv("REGISTRAR_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("REGISTRAR_TEST_REDIS_ADDR not set")
	}

	cfg := DefaultConfig()
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	cfg.Host = host
	cfg.Port, err = strconv.Atoi(port)
	require.NoError(t, err)
	cfg.DB = 15

	c, err := NewCache(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "standing:s1:y1", StandingKey("s1", "y1"))
	assert.Equal(t, "standing:s1:*", StudentStandingsPattern("s1"))
	assert.Equal(t, "lock:deliberation:y1", LockKey("deliberation:y1"))
}

func TestStandingCache_RoundTripAndInvalidate(t *testing.T) {
	c := testCache(t)
	sc := NewStandingCache(c)
	ctx := context.Background()

	studentID, y1, y2 := uuid.New(), uuid.New(), uuid.New()

	got, err := sc.Get(ctx, studentID, y1)
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, y := range []uuid.UUID{y1, y2} {
		require.NoError(t, sc.Set(ctx, &query.StandingDTO{
			StudentID:      studentID.String(),
			AcademicYearID: y.String(),
			Decision:       "PROMOTED",
			Deliberated:    true,
		}, time.Minute))
	}

	got, err = sc.Get(ctx, studentID, y1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "PROMOTED", got.Decision)

	require.NoError(t, sc.Invalidate(ctx, studentID, y1))
	got, err = sc.Get(ctx, studentID, y1)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, sc.InvalidateStudent(ctx, studentID))
	got, err = sc.Get(ctx, studentID, y2)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRunLocker(t *testing.T) {
	c := testCache(t)
	l := NewRunLocker(c)
	ctx := context.Background()
	key := "deliberation:" + uuid.NewString()

	release, err := l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, key, time.Minute)
	assert.ErrorIs(t, err, shared.ErrDeliberationInProgress)

	require.NoError(t, release(ctx))

	release, err = l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestRunLocker_StaleReleaseKeepsNewHolder(t *testing.T) {
	c := testCache(t)
	l := NewRunLocker(c)
	ctx := context.Background()
	key := "deliberation:" + uuid.NewString()

	staleRelease, err := l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	// Simulate expiry and a takeover by another run.
	require.NoError(t, c.Delete(ctx, LockKey(key)))
	release, err := l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	require.NoError(t, staleRelease(ctx))
	_, err = l.Acquire(ctx, key, time.Minute)
	assert.ErrorIs(t, err, shared.ErrDeliberationInProgress)

	require.NoError(t, release(ctx))
}

func TestStandingCache_BreakerOpensOnUnreachableRedis(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	cb := circuitbreaker.CacheBreaker("standing-cache", nil, circuitbreaker.WithIsFailure(IsUnavailable))
	sc := NewStandingCache(NewCacheFromClient(client)).WithBreaker(cb)
	ctx := context.Background()
	studentID, yearID := uuid.New(), uuid.New()

	for i := 0; i < 3; i++ {
		got, err := sc.Get(ctx, studentID, yearID)
		require.Error(t, err)
		assert.False(t, circuitbreaker.IsRejected(err))
		assert.Nil(t, got)
	}
	assert.Equal(t, circuitbreaker.StateOpen, cb.State())

	// Open circuit: reads miss and writes are skipped without touching Redis.
	got, err := sc.Get(ctx, studentID, yearID)
	assert.NoError(t, err)
	assert.Nil(t, got)
	err = sc.Set(ctx, &query.StandingDTO{StudentID: studentID.String(), AcademicYearID: yearID.String()}, 0)
	assert.NoError(t, err)
	assert.Equal(t, 2, cb.Counts().Rejected)
}

func TestIsUnavailable(t *testing.T) {
	assert.True(t, IsUnavailable(errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")))
	assert.True(t, IsUnavailable(ErrCacheConnection))
	assert.False(t, IsUnavailable(nil))
	assert.False(t, IsUnavailable(ErrCacheMiss))
	assert.False(t, IsUnavailable(fmt.Errorf("%w: unexpected end of JSON input", ErrCacheSerialization)))
	assert.False(t, IsUnavailable(ErrCacheKeyEmpty))
}
