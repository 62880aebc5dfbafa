package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSource = errors.New("source unavailable")

func failing(context.Context) error { return errSource }
func healthy(context.Context) error { return nil }

func TestCircuitOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("history", CircuitBreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, Timeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, failing), errSource)
	}
	assert.Equal(t, CircuitOpen, cb.State())

	calls := 0
	err := cb.Execute(ctx, func(context.Context) error { calls++; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, calls)
	assert.EqualValues(t, 1, cb.Stats().TotalRejected)
}

func TestCircuitHalfOpenRecovers(t *testing.T) {
	cb := NewCircuitBreaker("rate", CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, Timeout: time.Minute})
	clock := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return clock }
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failing))
	assert.Equal(t, CircuitOpen, cb.State())

	clock = clock.Add(2 * time.Minute)
	require.NoError(t, cb.Execute(ctx, healthy))
	assert.Equal(t, CircuitHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, healthy))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestNeutralErrorsDoNotTrip(t *testing.T) {
	notFound := errors.New("not found")
	cb := NewCircuitBreaker("chain", CircuitBreakerConfig{
		FailureThreshold: 1,
		Timeout:          time.Minute,
		Neutral:          func(err error) bool { return errors.Is(err, notFound) },
	})

	v, err := Call(context.Background(), cb, func(context.Context) (int, error) { return 0, notFound })
	assert.ErrorIs(t, err, notFound)
	assert.Zero(t, v)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(DefaultCircuitBreakerConfig())
	a := r.Get("history")
	assert.Same(t, a, r.Get("history"))
	r.Get("chain")

	stats := r.AllStats()
	require.Len(t, stats, 2)
	assert.Equal(t, "chain", stats[0].Name)

	require.Error(t, a.Execute(context.Background(), failing))
	assert.Equal(t, 1, r.AllStats()[1].CurrentFailures)
	assert.Zero(t, r.AllStats()[0].CurrentFailures)
}
