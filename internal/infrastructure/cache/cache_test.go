package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/dutch-auction-exchange/internal/infrastructure/config"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := NewRedisClient(&config.RedisConfig{URL: mr.Addr()}, zaptest.NewLogger(t))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return client, mr
}

func TestNewRedisClient(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		_, err := NewRedisClient(&config.RedisConfig{URL: "localhost:6379"}, nil)
		assert.ErrorContains(t, err, "logger is required")
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := NewRedisClient(nil, zaptest.NewLogger(t))
		assert.ErrorContains(t, err, "redis config is required")
	})

	t.Run("connection failure", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		addr := mr.Addr()
		mr.Close()

		_, err = NewRedisClient(&config.RedisConfig{URL: addr}, zaptest.NewLogger(t))
		assert.ErrorContains(t, err, "redis connection failed")
	})
}

func TestLocalLocker_MutualExclusion(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Lock(ctx, "auction:1")
			if !assert.NoError(t, err) {
				return
			}

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			assert.NoError(t, release(ctx))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, locker.locks, "entries are dropped once unused")
}

func TestLocalLocker_IndependentKeys(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	r1, err := locker.Lock(ctx, "a")
	require.NoError(t, err)
	r2, err := locker.Lock(ctx, "b")
	require.NoError(t, err)

	require.NoError(t, r1(ctx))
	require.NoError(t, r2(ctx))
	require.NoError(t, r1(ctx), "double release is a no-op")
}

func TestLocalLocker_ContextCancel(t *testing.T) {
	locker := NewLocalLocker()
	release, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, release(context.Background()))
	again, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)
	require.NoError(t, again(context.Background()))
}

func TestRedisLocker(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	t.Run("acquire and release", func(t *testing.T) {
		locker := NewRedisLocker(client, zaptest.NewLogger(t), time.Second, 50*time.Millisecond)

		release, err := locker.Lock(ctx, "auction:1")
		require.NoError(t, err)
		assert.True(t, mr.Exists(LockPrefix+"auction:1"))

		require.NoError(t, release(ctx))
		assert.False(t, mr.Exists(LockPrefix+"auction:1"))
	})

	t.Run("contended lock times out", func(t *testing.T) {
		locker := NewRedisLocker(client, zaptest.NewLogger(t), time.Minute, 30*time.Millisecond)

		release, err := locker.Lock(ctx, "auction:2")
		require.NoError(t, err)
		defer func() { _ = release(ctx) }()

		_, err = locker.Lock(ctx, "auction:2")
		assert.ErrorIs(t, err, ErrLockTimeout)
	})

	t.Run("expired lease is reported on release", func(t *testing.T) {
		locker := NewRedisLocker(client, zaptest.NewLogger(t), time.Second, 50*time.Millisecond)

		release, err := locker.Lock(ctx, "auction:3")
		require.NoError(t, err)

		mr.FastForward(2 * time.Second)
		other, err := locker.Lock(ctx, "auction:3")
		require.NoError(t, err)

		assert.ErrorIs(t, release(ctx), ErrLockLost)
		assert.True(t, mr.Exists(LockPrefix+"auction:3"), "the new holder keeps the key")
		require.NoError(t, other(ctx))
	})
}

func TestRedisRateLimiter(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewRedisRateLimiter(client, zaptest.NewLogger(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "client-a", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}

	ok, err := limiter.Allow(ctx, "client-a", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = limiter.Allow(ctx, "client-b", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")

	require.NoError(t, limiter.Reset(ctx, "client-a"))
	ok, err = limiter.Allow(ctx, "client-a", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalRateLimiter(t *testing.T) {
	limiter := NewLocalRateLimiter()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "k", 2, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := limiter.Allow(ctx, "k", 2, time.Hour)
	assert.False(t, ok)

	require.NoError(t, limiter.Reset(ctx, "k"))
	ok, _ = limiter.Allow(ctx, "k", 2, time.Hour)
	assert.True(t, ok)

	ok, _ = limiter.Allow(ctx, "unlimited", 0, time.Hour)
	assert.True(t, ok)
}
