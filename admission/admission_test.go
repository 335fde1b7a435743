package admission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateTryAcquireRespectsCapacity(t *testing.T) {
	g := NewGate(1)

	release1, ok1 := g.TryAcquire()
	require.True(t, ok1)

	_, ok2 := g.TryAcquire()
	assert.False(t, ok2)

	release1()
	_, ok3 := g.TryAcquire()
	assert.True(t, ok3)
}

func TestGateWithRateRejectsBeyondBudget(t *testing.T) {
	g := NewGateWithRate(10, 0, 1)

	_, ok1 := g.TryAcquire()
	assert.True(t, ok1)

	_, ok2 := g.TryAcquire()
	assert.False(t, ok2)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker("test", 2, time.Minute, 50*time.Millisecond)
	boom := errors.New("boom")
	failing := func(ctx context.Context) (any, error) { return nil, boom }

	_, _ = b.Execute(context.Background(), failing)
	_, _ = b.Execute(context.Background(), failing)

	_, err := b.Execute(context.Background(), failing)
	require.Error(t, err)
	assert.Equal(t, "open", b.State())
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	b := NewBreaker("test2", 5, time.Minute, time.Second)
	result, err := b.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}
