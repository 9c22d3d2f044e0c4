package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/campus-registrar/deliberation/internal/application/query"
	"github.com/campus-registrar/deliberation/pkg/circuitbreaker"
)

// StandingCache implements query.StandingCache on top of Cache.
type StandingCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
}

// NewStandingCache creates a new StandingCache.
func NewStandingCache(cache *Cache) *StandingCache {
	return &StandingCache{cache: cache}
}

// WithBreaker guards reads and writes with cb. While the circuit is open reads
// behave as misses and writes are skipped, so callers go to the store without
// waiting on Redis. Invalidations always reach Redis.
func (s *StandingCache) WithBreaker(cb *circuitbreaker.CircuitBreaker) *StandingCache {
	return &StandingCache{cache: s.cache, breaker: cb}
}

var _ query.StandingCache = (*StandingCache)(nil)

func (s *StandingCache) guard(ctx context.Context, fn func(context.Context) error) error {
	if s.breaker == nil {
		return fn(ctx)
	}
	err := s.breaker.Execute(ctx, fn)
	if circuitbreaker.IsRejected(err) {
		return nil
	}
	return err
}

// Get returns the cached standing, or nil on a miss.
func (s *StandingCache) Get(ctx context.Context, studentID, academicYearID uuid.UUID) (*query.StandingDTO, error) {
	var (
		dto query.StandingDTO
		hit bool
	)
	err := s.guard(ctx, func(ctx context.Context) error {
		err := s.cache.Get(ctx, StandingKey(studentID.String(), academicYearID.String()), &dto)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		hit = err == nil
		return err
	})
	if err != nil || !hit {
		return nil, err
	}
	return &dto, nil
}

// Set stores a standing. A zero ttl falls back to TTLStanding.
func (s *StandingCache) Set(ctx context.Context, standing *query.StandingDTO, ttl time.Duration) error {
	if standing == nil {
		return nil
	}
	if ttl == 0 {
		ttl = TTLStanding
	}
	return s.guard(ctx, func(ctx context.Context) error {
		return s.cache.Set(ctx, StandingKey(standing.StudentID, standing.AcademicYearID), standing, ttl)
	})
}

// Invalidate drops the (student, year) standing.
func (s *StandingCache) Invalidate(ctx context.Context, studentID, academicYearID uuid.UUID) error {
	return s.cache.Delete(ctx, StandingKey(studentID.String(), academicYearID.String()))
}

// InvalidateStudent drops every cached standing of a student. Report cards
// are keyed by semester, so their updates cannot name the year directly.
func (s *StandingCache) InvalidateStudent(ctx context.Context, studentID uuid.UUID) error {
	return s.cache.DeleteByPattern(ctx, StudentStandingsPattern(studentID.String()))
}
