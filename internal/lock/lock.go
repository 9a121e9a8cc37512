package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-engine/utils"

	redis "github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the retry budget is exhausted without obtaining the lock.
var ErrNotAcquired = errors.New("lock not acquired")

const (
	DefaultPrefix     = "lock:"
	DefaultTTL        = 10 * time.Second
	DefaultRetryDelay = 100 * time.Millisecond
	DefaultMaxRetries = 10
)

// Check-and-delete in a single round trip.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`)

// Options bounds a single acquisition. Total wait never exceeds MaxRetries*RetryDelay.
type Options struct {
	TTL        time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultOptions returns the default acquisition bounds.
func DefaultOptions() Options {
	return Options{TTL: DefaultTTL, MaxRetries: DefaultMaxRetries, RetryDelay: DefaultRetryDelay}
}

// Locker provides named, time-bounded mutual exclusion.
type Locker interface {
	Acquire(ctx context.Context, name string, opts Options) (string, error)
	Release(ctx context.Context, name, token string) (bool, error)
	IsLocked(ctx context.Context, name string) (bool, error)
}

// RedisLock implements Locker on a shared Redis instance.
type RedisLock struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLock returns a RedisLock storing keys under prefix (DefaultPrefix when empty).
func NewRedisLock(client redis.UniversalClient, prefix string) *RedisLock {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisLock{client: client, prefix: prefix}
}

func (l *RedisLock) key(name string) string {
	return l.prefix + name
}

// Acquire sets name with expiry opts.TTL if absent and returns the owner token.
// A failed attempt is retried up to opts.MaxRetries times, opts.RetryDelay apart.
func (l *RedisLock) Acquire(ctx context.Context, name string, opts Options) (string, error) {
	if name == "" {
		return "", fmt.Errorf("lock: empty lock name")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}

	token := utils.NewToken()
	key := l.key(name)

	for attempt := 0; ; attempt++ {
		ok, err := l.client.SetNX(ctx, key, token, opts.TTL).Result()
		if err != nil {
			return "", fmt.Errorf("lock: acquire %s: %w", name, err)
		}
		if ok {
			return token, nil
		}
		if attempt >= opts.MaxRetries {
			return "", fmt.Errorf("lock: %s after %d attempts: %w", name, attempt+1, ErrNotAcquired)
		}

		timer := time.NewTimer(opts.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("lock: acquire %s: %w", name, ctx.Err())
		case <-timer.C:
		}
	}
}

// Release deletes name only if it still holds token. A stale or foreign token is a no-op.
func (l *RedisLock) Release(ctx context.Context, name, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	n, err := releaseScript.Run(ctx, l.client, []string{l.key(name)}, token).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("lock: release %s: %w", name, err)
	}
	return n == 1, nil
}

// IsLocked reports whether name is currently held. Diagnostics only.
func (l *RedisLock) IsLocked(ctx context.Context, name string) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(name)).Result()
	if err != nil {
		return false, fmt.Errorf("lock: exists %s: %w", name, err)
	}
	return n > 0, nil
}

// releaseTimeout bounds the release call made after the critical section.
const releaseTimeout = 2 * time.Second

// WithLock runs fn while holding name. The lock is released even when ctx is
// cancelled during fn; a failed release is logged and left to the TTL.
func WithLock(ctx context.Context, l Locker, name string, opts Options, fn func(ctx context.Context) error) error {
	token, err := l.Acquire(ctx, name, opts)
	if err != nil {
		return err
	}

	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		released, relErr := l.Release(rctx, name, token)
		if relErr != nil {
			utils.Warn("lock: release failed", map[string]any{"lock": name, "error": relErr.Error()})
		} else if !released {
			utils.Warn("lock: expired before release", map[string]any{"lock": name, "ttl": opts.TTL.String()})
		}
	}()

	return fn(ctx)
}
