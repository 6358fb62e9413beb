package cron

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/pricesync-backend/pkg/logger"
)

type memRedis struct {
	mu        sync.Mutex
	data      map[string]string
	refreshes int
}

func newMemRedis() *memRedis { return &memRedis{data: map[string]string{}} }

func (m *memRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memRedis) CompareAndDelete(_ context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[key] != value {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

func (m *memRedis) CompareAndExpire(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[key] != value {
		return false, nil
	}
	m.refreshes++
	return true, nil
}

func (m *memRedis) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func TestRedisLockOwnership(t *testing.T) {
	ctx := context.Background()
	store := newMemRedis()
	a, err := NewRedisLock(store, "ps:lock:pricing-run", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	b, _ := NewRedisLock(store, "ps:lock:pricing-run", time.Minute)

	if ok, _ := a.Acquire(ctx); !ok {
		t.Fatalf("expected a to acquire")
	}
	if ok, _ := b.Acquire(ctx); ok {
		t.Fatalf("expected b to be refused")
	}
	if err := b.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if store.size() != 1 {
		t.Fatalf("non-owner release must not delete the key")
	}
	if err := a.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := b.Acquire(ctx); !ok {
		t.Fatalf("expected b to acquire after release")
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", time.Minute); err == nil {
		t.Fatalf("expected error without client")
	}
	if _, err := NewRedisLock(newMemRedis(), "", time.Minute); err == nil {
		t.Fatalf("expected error without key")
	}
}

func TestWithLock(t *testing.T) {
	ctx := context.Background()
	store := newMemRedis()
	factory := NewRedisLockFactory(store, "ps:lock:pricing-run", time.Minute)

	var nestedErr error
	err := WithLock(ctx, factory, nil, func(ctx context.Context) error {
		nestedErr = WithLock(ctx, factory, nil, func(context.Context) error {
			t.Fatalf("nested run must not start")
			return nil
		})
		return nil
	})
	if err != nil {
		t.Fatalf("with lock: %v", err)
	}
	if !errors.Is(nestedErr, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", nestedErr)
	}
	if store.size() != 0 {
		t.Fatalf("lock not released")
	}

	boom := errors.New("boom")
	if err := WithLock(ctx, factory, nil, func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected run error, got %v", err)
	}
	if store.size() != 0 {
		t.Fatalf("lock not released after failure")
	}
}

func TestRedisLockRefresh(t *testing.T) {
	ctx := context.Background()
	store := newMemRedis()
	lock, _ := NewRedisLock(store, "ps:lock:pricing-run", time.Minute)

	if ok, err := lock.Refresh(ctx); err != nil || ok {
		t.Fatalf("refresh before acquire should report false, ok=%v err=%v", ok, err)
	}
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatalf("expected acquire")
	}
	if ok, err := lock.Refresh(ctx); err != nil || !ok {
		t.Fatalf("expected refresh, ok=%v err=%v", ok, err)
	}
}

func TestWithLockKeepsLongRunsAlive(t *testing.T) {
	store := newMemRedis()
	factory := NewRedisLockFactory(store, "ps:lock:pricing-run", 30*time.Millisecond)

	err := WithLock(context.Background(), factory, nil, func(context.Context) error {
		time.Sleep(60 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatalf("with lock: %v", err)
	}
	store.mu.Lock()
	refreshes := store.refreshes
	store.mu.Unlock()
	if refreshes == 0 {
		t.Fatalf("expected the lock to be refreshed during a long run")
	}
	if store.size() != 0 {
		t.Fatalf("lock not released")
	}
}

type failingRelease struct {
	*memRedis
}

func (f failingRelease) CompareAndDelete(context.Context, string, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestWithLockCombinesRunAndReleaseErrors(t *testing.T) {
	factory := NewRedisLockFactory(failingRelease{newMemRedis()}, "ps:lock:pricing-run", time.Minute)

	boom := errors.New("boom")
	err := WithLock(context.Background(), factory, nil, func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected run error, got %v", err)
	}
	if !strings.Contains(err.Error(), "redis down") {
		t.Fatalf("expected release error to be kept, got %v", err)
	}
}

func TestWithLockLogsLostLock(t *testing.T) {
	store := newMemRedis()
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	factory := NewRedisLockFactory(store, "ps:lock:pricing-run", 30*time.Millisecond)

	err := WithLock(context.Background(), factory, logg, func(context.Context) error {
		store.mu.Lock()
		store.data = map[string]string{}
		store.mu.Unlock()
		time.Sleep(60 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatalf("with lock: %v", err)
	}
	if !strings.Contains(buf.String(), "pricing lock lost") {
		t.Fatalf("expected lost lock warning, got %s", buf.String())
	}
}
