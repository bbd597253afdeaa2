package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/biomarker-engine/pkg/errors"
)

var (
	ErrLockNotAcquired = errors.New(errors.ErrCodeConflict, "failed to acquire lock")
	ErrLockNotHeld     = errors.New(errors.ErrCodeConflict, "lock not held by this owner")
)

// LockOption customizes a Mutex.
type LockOption func(*lockConfig)

// WithLockTTL sets how long the lock survives a crashed holder.
func WithLockTTL(ttl time.Duration) LockOption {
	return func(c *lockConfig) { c.ttl = ttl }
}

// WithRetry sets how often and how long Lock waits between attempts.
func WithRetry(count int, delay time.Duration) LockOption {
	return func(c *lockConfig) {
		c.retryCount = count
		c.retryDelay = delay
	}
}

type lockConfig struct {
	ttl        time.Duration
	retryDelay time.Duration
	retryCount int
}

// Mutex is a single-owner lock held in one Redis key.  The owner token is
// random per Mutex, so only the instance that locked can unlock.
type Mutex struct {
	client *Client
	key    string
	token  string
	config lockConfig
	logger logging.Logger
}

// NewMutex returns an unlocked Mutex named name.
func (c *Client) NewMutex(name string, opts ...LockOption) *Mutex {
	cfg := lockConfig{
		ttl:        2 * time.Minute,
		retryDelay: 200 * time.Millisecond,
		retryCount: 25,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Mutex{
		client: c,
		key:    c.Key("lock", name),
		token:  uuid.NewString(),
		config: cfg,
		logger: c.logger,
	}
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// TryLock makes one attempt and reports whether it got the lock.
func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	rdb := m.client.Underlying()
	if rdb == nil {
		return false, ErrClientClosed
	}
	ok, err := rdb.SetNX(ctx, m.key, m.token, m.config.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "acquire lock")
	}
	return ok, nil
}

// Lock retries TryLock until it succeeds, the retries run out or ctx ends.
func (m *Mutex) Lock(ctx context.Context) error {
	for i := 0; i < m.config.retryCount; i++ {
		ok, err := m.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.config.retryDelay):
		}
	}
	m.logger.Warn("lock busy", logging.String("key", m.key))
	return ErrLockNotAcquired.WithDetail(m.key)
}

// Unlock releases the lock if this Mutex still holds it.
func (m *Mutex) Unlock(ctx context.Context) error {
	rdb := m.client.Underlying()
	if rdb == nil {
		return ErrClientClosed
	}
	n, err := unlockScript.Run(ctx, rdb, []string{m.key}, m.token).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "release lock")
	}
	if n == 0 {
		return ErrLockNotHeld.WithDetail(m.key)
	}
	return nil
}

// Extend pushes the expiry to ttl from now while the lock is held.
func (m *Mutex) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	rdb := m.client.Underlying()
	if rdb == nil {
		return false, ErrClientClosed
	}
	n, err := extendScript.Run(ctx, rdb, []string{m.key}, m.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "extend lock")
	}
	return n == 1, nil
}
