package ticket

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, rpm, rpd int) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRateLimiter(client, rpm, rpd), mr
}

func TestAllowUnderLimit(t *testing.T) {
	rl, _ := newTestLimiter(t, 10, 100)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, rl.Allow(ctx))
	}
}

func TestMinuteCeilingDenies(t *testing.T) {
	rl, _ := newTestLimiter(t, 3, 100)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Allow(ctx))
	}

	err := rl.Allow(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))
}

func TestDailyCeilingDenies(t *testing.T) {
	rl, _ := newTestLimiter(t, 100, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, rl.Allow(ctx))
	}

	err := rl.Allow(ctx)
	assert.True(t, errors.Is(err, ErrRateLimited))
}

func TestDenialDoesNotConsumeBudget(t *testing.T) {
	rl, _ := newTestLimiter(t, 100, 2)
	ctx := context.Background()

	require.NoError(t, rl.Allow(ctx))
	require.NoError(t, rl.Allow(ctx))

	// Denied requests must not increment either window.
	for i := 0; i < 3; i++ {
		assert.True(t, errors.Is(rl.Allow(ctx), ErrRateLimited))
	}

	_, day, err := rl.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), day)
}

func TestUsageEmpty(t *testing.T) {
	rl, _ := newTestLimiter(t, 10, 10)

	minute, day, err := rl.Usage(context.Background())
	require.NoError(t, err)
	assert.Zero(t, minute)
	assert.Zero(t, day)
}
