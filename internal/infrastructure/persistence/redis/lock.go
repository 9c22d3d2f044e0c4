package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/campus-registrar/deliberation/internal/application/command"
	"github.com/campus-registrar/deliberation/internal/domain/shared"
)

// releaseScript deletes the lock only while it still holds our token, so an
// expired run cannot free a lock taken over by a newer one.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLocker implements command.RunLocker with SET NX and a random token.
type RunLocker struct {
	cache *Cache
}

// NewRunLocker creates a new RunLocker.
func NewRunLocker(cache *Cache) *RunLocker {
	return &RunLocker{cache: cache}
}

var _ command.RunLocker = (*RunLocker)(nil)

// Acquire takes the lock on key for ttl. It fails with
// shared.ErrDeliberationInProgress while another holder has it.
func (l *RunLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	if ttl <= 0 {
		ttl = TTLDeliberationLock
	}

	token := uuid.NewString()
	lockKey := LockKey(key)

	ok, err := l.cache.SetNX(ctx, lockKey, token, ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", lockKey, err)
	}
	if !ok {
		return nil, shared.ErrDeliberationInProgress
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.cache.Client(), []string{lockKey}, token).Err(); err != nil {
			return fmt.Errorf("release lock %s: %w", lockKey, err)
		}
		return nil
	}
	return release, nil
}
