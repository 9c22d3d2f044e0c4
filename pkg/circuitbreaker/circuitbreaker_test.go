package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("connection refused")

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(opts ...Option) (*CircuitBreaker, *clock, *[]string) {
	var transitions []string
	opts = append(opts, WithOnStateChange(func(_ string, from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}))
	cb := New("standing-cache", opts...)
	c := &clock{t: time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)}
	cb.now = c.now
	return cb, c, &transitions
}

func fail(context.Context) error { return errDown }
func ok(context.Context) error   { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _, transitions := newTestBreaker(WithFailureThreshold(3))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	}
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, IsRejected(err))
	assert.False(t, called)
	assert.Equal(t, []string{"closed->open"}, *transitions)
	assert.Equal(t, 1, cb.Counts().Rejected)
}

func TestBreaker_SuccessResetsConsecutiveFailures(t *testing.T) {
	cb, _, _ := newTestBreaker(WithFailureThreshold(2))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	require.NoError(t, cb.Execute(ctx, ok))
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	cb, clk, transitions := newTestBreaker(WithFailureThreshold(1), WithSuccessThreshold(2), WithCooldown(time.Minute))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clk.advance(30 * time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrCircuitOpen)

	clk.advance(30 * time.Second)
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, *transitions)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clk, _ := newTestBreaker(WithFailureThreshold(1), WithCooldown(time.Minute))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clk.advance(time.Minute)
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateOpen, cb.State())

	// The cool-down restarts from the failed trial.
	clk.advance(59 * time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrCircuitOpen)
}

func TestBreaker_TrialSlots(t *testing.T) {
	cb, clk, _ := newTestBreaker(WithFailureThreshold(1), WithCooldown(time.Second), WithMaxTrials(1))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clk.advance(time.Second)

	err := cb.Execute(ctx, func(ctx context.Context) error {
		assert.ErrorIs(t, cb.Execute(ctx, ok), ErrTooManyRequests)
		return nil
	})
	assert.NoError(t, err)
}

func TestBreaker_CancellationIsNotFailure(t *testing.T) {
	cb, _, _ := newTestBreaker(WithFailureThreshold(1))
	_ = cb.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	assert.Equal(t, StateClosed, cb.State())
	assert.Zero(t, cb.Counts().TotalFailures)
}

func TestBreaker_IsFailureFiltersCallerErrors(t *testing.T) {
	errBadInput := errors.New("bad input")
	cb, _, _ := newTestBreaker(WithFailureThreshold(1), WithIsFailure(func(err error) bool {
		return !errors.Is(err, errBadInput)
	}))
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, func(context.Context) error { return errBadInput }), errBadInput)
	assert.Equal(t, StateClosed, cb.State())

	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCacheBreaker_OptionsOverridePresets(t *testing.T) {
	cb := CacheBreaker("standing-cache", nil, WithFailureThreshold(1))
	_ = cb.Execute(context.Background(), fail)
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, "standing-cache", cb.Name())
}
