package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/pricesync-backend/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	w, err := client.FixedWindowAllow(ctx, "admin-sync:operator:op-1", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.Allowed || w.Count != 1 || w.ResetIn != time.Minute {
		t.Fatalf("unexpected first window %+v", w)
	}
	if mock.ttl["ps:rate_limit:admin-sync:operator:op-1"] != time.Minute {
		t.Fatalf("expected ttl set on first hit, got %v", mock.ttl)
	}

	mock.ttl["ps:rate_limit:admin-sync:operator:op-1"] = 20 * time.Second
	if w, err = client.FixedWindowAllow(ctx, "admin-sync:operator:op-1", 2, time.Minute); err != nil || !w.Allowed || w.Count != 2 {
		t.Fatalf("unexpected second window %+v err=%v", w, err)
	}
	if w.ResetIn != 20*time.Second {
		t.Fatalf("ttl must not be reset after the first hit, got %v", w.ResetIn)
	}

	w, err = client.FixedWindowAllow(ctx, "admin-sync:operator:op-1", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Allowed || w.Count != 3 {
		t.Fatalf("expected limit reached, got %+v", w)
	}
}

func TestFixedWindowAllowRejectsBadWindow(t *testing.T) {
	client := &Client{store: newMockCmdable()}
	if _, err := client.FixedWindowAllow(context.Background(), "s", 1, 0); err == nil {
		t.Fatalf("expected error for zero window")
	}
}

func TestCompareAndDelete(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.LockKey("pricing-run")

	ok, err := client.SetNX(ctx, key, "owner-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first setnx to win, ok=%v err=%v", ok, err)
	}
	if ok, _ := client.SetNX(ctx, key, "owner-b", time.Minute); ok {
		t.Fatalf("expected second setnx to lose")
	}

	if deleted, err := client.CompareAndDelete(ctx, key, "owner-b"); err != nil || deleted {
		t.Fatalf("foreign owner must not delete, deleted=%v err=%v", deleted, err)
	}
	if owner, _ := client.Get(ctx, key); owner != "owner-a" {
		t.Fatalf("lock changed hands: %q", owner)
	}
	if deleted, err := client.CompareAndDelete(ctx, key, "owner-a"); err != nil || !deleted {
		t.Fatalf("owner should delete, deleted=%v err=%v", deleted, err)
	}
	if _, err := client.Get(ctx, key); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestCompareAndExpire(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.LockKey("pricing-run")
	_, _ = client.SetNX(ctx, key, "owner-a", time.Minute)

	if ok, err := client.CompareAndExpire(ctx, key, "owner-b", time.Hour); err != nil || ok {
		t.Fatalf("foreign owner must not extend, ok=%v err=%v", ok, err)
	}
	if ok, err := client.CompareAndExpire(ctx, key, "owner-a", time.Hour); err != nil || !ok {
		t.Fatalf("owner should extend, ok=%v err=%v", ok, err)
	}
	if mock.ttl[key] != time.Hour {
		t.Fatalf("expected ttl 1h, got %v", mock.ttl[key])
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	ctx := context.Background()
	if err := client.Ping(ctx); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected errNotInitialized, got %v", err)
	}
	if _, err := client.SetNX(ctx, "k", "v", time.Second); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected errNotInitialized, got %v", err)
	}
	if _, err := client.FixedWindowAllow(ctx, "s", 1, time.Second); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected errNotInitialized, got %v", err)
	}
	var nilClient *Client
	if err := nilClient.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.RateLimitKey("admin-sync:op-1"); got != "ps:rate_limit:admin-sync:op-1" {
		t.Fatalf("unexpected rate limit key %s", got)
	}
	if got := client.LockKey("pricing-run"); got != "ps:lock:pricing-run" {
		t.Fatalf("unexpected lock key %s", got)
	}
	if got := client.LockKey(""); got != "ps:lock" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
	staging := &Client{namespace: namespace(" pricesync-staging: ")}
	if got := staging.LockKey("pricing-run"); got != "pricesync-staging:lock:pricing-run" {
		t.Fatalf("unexpected namespaced key %s", got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or address")
	}
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7, ReadTimeout: time.Second})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.DB != 2 || opts.PoolSize != 7 || opts.ReadTimeout != time.Second {
		t.Fatalf("unexpected options db=%d pool=%d read=%v", opts.DB, opts.PoolSize, opts.ReadTimeout)
	}
	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 3})
	if err != nil || opts.Addr != "cache:6379" || opts.DB != 3 {
		t.Fatalf("unexpected address options %+v err=%v", opts, err)
	}
}

// mockCmdable evaluates the three known scripts against in-memory maps.
type mockCmdable struct {
	data map[string]string
	incr map[string]int64
	ttl  map[string]time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		incr: make(map[string]int64),
		ttl:  make(map[string]time.Duration),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	m.ttl[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	cmd := redis.NewCmd(ctx)
	key := keys[0]
	switch script {
	case fixedWindowScript:
		m.incr[key]++
		if m.incr[key] == 1 {
			m.ttl[key] = time.Duration(args[0].(int64)) * time.Millisecond
		}
		cmd.SetVal([]any{m.incr[key], m.ttl[key].Milliseconds()})
	case compareAndDeleteScript:
		if m.data[key] == args[0] {
			delete(m.data, key)
			cmd.SetVal(int64(1))
		} else {
			cmd.SetVal(int64(0))
		}
	case compareAndExpireScript:
		if m.data[key] == args[0] {
			m.ttl[key] = time.Duration(args[1].(int64)) * time.Millisecond
			cmd.SetVal(int64(1))
		} else {
			cmd.SetVal(int64(0))
		}
	default:
		cmd.SetErr(fmt.Errorf("unexpected script"))
	}
	return cmd
}
