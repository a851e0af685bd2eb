package cache

import (
	"context"
	"errors"
	"time"
)

// Key prefixes
const (
	LockPrefix      = "dax:lock:"
	RateLimitPrefix = "dax:ratelimit:"
)

var (
	// ErrLockTimeout is returned when a lock could not be acquired in time.
	ErrLockTimeout = errors.New("lock acquisition timed out")
	// ErrLockLost is returned by a release whose lease expired and was taken over.
	ErrLockLost = errors.New("lock lease lost before release")
)

// Release gives a lock back.
type Release func(ctx context.Context) error

// Locker serializes work on a key, within one process or across instances.
type Locker interface {
	// Lock blocks until the key is held or ctx is done.
	Lock(ctx context.Context, key string) (Release, error)
}

// RateLimiter provides rate limiting by key
type RateLimiter interface {
	// Allow checks if a request is allowed under the rate limit
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Reset clears the rate limit counter for a key
	Reset(ctx context.Context, key string) error
}
