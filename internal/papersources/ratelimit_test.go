package papersources

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/referee-finder/internal/domain"
)

func TestNewRateLimiter(t *testing.T) {
	t.Run("allows burst then denies", func(t *testing.T) {
		rl := NewRateLimiter(3, 3)

		require.NotNil(t, rl)
		for i := 0; i < 3; i++ {
			assert.True(t, rl.Allow(), "should allow request %d within burst", i+1)
		}
		assert.False(t, rl.Allow())
	})

	t.Run("fractional rate", func(t *testing.T) {
		rl := NewRateLimiter(0.5, 1)

		assert.True(t, rl.Allow())
		assert.False(t, rl.Allow())
	})

	t.Run("zero burst is raised to one", func(t *testing.T) {
		rl := NewRateLimiter(1, 0)
		assert.True(t, rl.Allow())
	})

	t.Run("unlimited budget reports -1", func(t *testing.T) {
		assert.Equal(t, -1, NewRateLimiter(10, 10).Remaining())
	})
}

func TestRateLimiter_Wait(t *testing.T) {
	t.Run("burst allows instant requests", func(t *testing.T) {
		rl := NewRateLimiter(100, 5)

		start := time.Now()
		for i := 0; i < 5; i++ {
			require.NoError(t, rl.Wait(context.Background()))
		}
		assert.Less(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("waits for token after burst exhausted", func(t *testing.T) {
		rl := NewRateLimiter(10, 1)

		require.NoError(t, rl.Wait(context.Background()))
		start := time.Now()
		require.NoError(t, rl.Wait(context.Background()))
		assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	})

	t.Run("minimum interval spaces requests", func(t *testing.T) {
		rl := NewRateLimiterWithConfig(RateLimiterConfig{
			RatePerSecond: 1000,
			Burst:         10,
			MinInterval:   60 * time.Millisecond,
		})

		start := time.Now()
		for i := 0; i < 3; i++ {
			require.NoError(t, rl.Wait(context.Background()))
		}
		assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond,
			"three requests need two full intervals")
	})

	t.Run("returns error on cancelled context", func(t *testing.T) {
		rl := NewRateLimiter(0.1, 1)
		require.NoError(t, rl.Wait(context.Background()))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.Error(t, rl.Wait(ctx))
	})

	t.Run("returns error on deadline", func(t *testing.T) {
		rl := NewRateLimiter(0.1, 1)
		require.NoError(t, rl.Wait(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		assert.Error(t, rl.Wait(ctx))
	})
}

func TestRateLimiter_DailyBudget(t *testing.T) {
	now := time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)
	rl := NewRateLimiterWithConfig(RateLimiterConfig{
		RatePerSecond: 1000,
		Burst:         100,
		DailyBudget:   2,
	})
	rl.nowFunc = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, rl.Wait(ctx))
	require.NoError(t, rl.Wait(ctx))
	assert.Equal(t, 0, rl.Remaining())
	assert.Equal(t, 2, rl.Used())

	err := rl.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBudgetExhausted)
	assert.True(t, domain.IsProviderFatal(err))
	assert.False(t, rl.Allow())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, rl.Remaining(), "budget resets on the next UTC day")
	require.NoError(t, rl.Wait(ctx))
	assert.Equal(t, 1, rl.Used())
}

func TestRateLimiter_SetRate(t *testing.T) {
	rl := NewRateLimiter(0.1, 1)
	require.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	rl.SetRate(1000)
	time.Sleep(5 * time.Millisecond)
	assert.True(t, rl.Allow())
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := NewRateLimiterWithConfig(RateLimiterConfig{
		RatePerSecond: 1000,
		Burst:         100,
		DailyBudget:   50,
	})

	var wg sync.WaitGroup
	var mu sync.Mutex
	var exhausted int
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rl.Wait(context.Background()); err != nil {
				mu.Lock()
				exhausted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, exhausted)
	assert.Equal(t, 50, rl.Used())
}
