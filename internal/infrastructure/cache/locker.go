package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LocalLocker is an in-process keyed mutex.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	sem  chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localLock)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (Release, error) {
	l.mu.Lock()
	lk, ok := l.locks[key]
	if !ok {
		lk = &localLock{sem: make(chan struct{}, 1)}
		l.locks[key] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.sem <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, lk)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-lk.sem
			l.unref(key, lk)
		})
		return nil
	}, nil
}

func (l *LocalLocker) unref(key string, lk *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, key)
	}
}

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds locks as SET NX keys with a lease TTL so that several API
// instances serialize on the same auction.
type RedisLocker struct {
	client    *redis.Client
	logger    *zap.Logger
	ttl       time.Duration
	wait      time.Duration
	retryStep time.Duration
}

func NewRedisLocker(client *redis.Client, logger *zap.Logger, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &RedisLocker{
		client:    client,
		logger:    logger,
		ttl:       ttl,
		wait:      wait,
		retryStep: 10 * time.Millisecond,
	}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (Release, error) {
	lockKey := LockPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(r.wait)

	for {
		ok, err := r.client.SetNX(ctx, lockKey, token, r.ttl).Result()
		if err != nil {
			r.logger.Error("redis lock failed", zap.String("key", lockKey), zap.Error(err))
			return nil, fmt.Errorf("redis lock failed: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			r.logger.Warn("redis lock timed out", zap.String("key", lockKey), zap.Duration("wait", r.wait))
			return nil, ErrLockTimeout
		}

		select {
		case <-time.After(r.retryStep):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, r.client, []string{lockKey}, token).Int()
		if err != nil {
			r.logger.Error("redis unlock failed", zap.String("key", lockKey), zap.Error(err))
			return fmt.Errorf("redis unlock failed: %w", err)
		}
		if n == 0 {
			r.logger.Warn("redis lock expired before release", zap.String("key", lockKey))
			return ErrLockLost
		}
		return nil
	}, nil
}
