package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/pricesync-backend/pkg/logger"
)

const defaultLockTTL = 30 * time.Minute

// PricingRunLock is the lock name shared by the cron worker and the HTTP
// triggers.
const PricingRunLock = "pricing-run"

// ErrRunInProgress is returned by WithLock when another holder owns the lock.
var ErrRunInProgress = errors.New("another pricing run is in progress")

// Lock coordinates exclusive pricing runs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// refresher is implemented by locks whose TTL can be extended while a long
// run is still going.
type refresher interface {
	Refresh(ctx context.Context) (bool, error)
	TTL() time.Duration
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
	CompareAndExpire(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// RedisLock is a SETNX lock with an owner token. Release and Refresh only
// touch the key while it still carries that token.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// Acquire tries to own the lock for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	if _, err := l.client.CompareAndDelete(ctx, l.key, l.owner); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	l.owner = ""
	return nil
}

// Refresh pushes the expiry out by another TTL. It reports false when the
// lock has already expired or passed to another owner.
func (l *RedisLock) Refresh(ctx context.Context) (bool, error) {
	if l.owner == "" {
		return false, nil
	}
	ok, err := l.client.CompareAndExpire(ctx, l.key, l.owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("refresh lock: %w", err)
	}
	return ok, nil
}

func (l *RedisLock) TTL() time.Duration { return l.ttl }

// keepAlive refreshes lock every third of its TTL until the returned stop
// func is called. Locks without a TTL are left alone. A lost lock is logged
// and not retried; the run keeps going without exclusion.
func keepAlive(ctx context.Context, lock Lock, logg *logger.Logger) (stop func()) {
	r, ok := lock.(refresher)
	if !ok || r.TTL() <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(r.TTL() / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				held, err := r.Refresh(ctx)
				if err != nil {
					if ctx.Err() == nil {
						logg.Error(ctx, "pricing lock refresh failed; run continues unguarded", err)
					}
					return
				}
				if !held {
					logg.Warn(ctx, "pricing lock lost; run continues unguarded")
					return
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// LockFactory builds a fresh lock per run. RedisLock remembers its owner
// token, so concurrent callers must not share one instance.
type LockFactory func() (Lock, error)

// NewRedisLockFactory returns a factory of RedisLocks on the same key.
func NewRedisLockFactory(client redisStore, key string, ttl time.Duration) LockFactory {
	return func() (Lock, error) {
		return NewRedisLock(client, key, ttl)
	}
}

// WithLock runs fn while holding a lock from factory. It returns
// ErrRunInProgress without calling fn when the lock is taken. Run and
// release errors are combined.
func WithLock(ctx context.Context, factory LockFactory, logg *logger.Logger, fn func(ctx context.Context) error) error {
	lock, err := factory()
	if err != nil {
		return err
	}
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !ok {
		return ErrRunInProgress
	}
	stop := keepAlive(ctx, lock, logg)
	runErr := fn(ctx)
	stop()
	// Release on a detached context so a canceled request still frees the key.
	return multierr.Append(runErr, lock.Release(context.WithoutCancel(ctx)))
}
