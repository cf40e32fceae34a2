package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return &Client{rdb: rdb, logger: zap.NewNop()}, mr
}

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewRateLimiter(client, zap.NewNop(), RateLimitConfig{
		Limit:  3,
		Window: time.Minute,
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(ctx, "agent:agent-1")
		if err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
		if !result.Allowed {
			t.Fatalf("request %d rejected, want allowed", i+1)
		}
		if want := 3 - (i + 1); result.Remaining != want {
			t.Errorf("request %d: remaining = %d, want %d", i+1, result.Remaining, want)
		}
	}
}

func TestRateLimiter_RejectsOverLimit(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewRateLimiter(client, zap.NewNop(), RateLimitConfig{
		Limit:  2,
		Window: time.Minute,
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := limiter.Allow(ctx, "agent:agent-1"); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}

	result, err := limiter.Allow(ctx, "agent:agent-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Allowed {
		t.Error("third request allowed, want rejected")
	}
	if result.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", result.Remaining)
	}
	if result.ResetAt.IsZero() {
		t.Error("ResetAt not set on rejection")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewRateLimiter(client, zap.NewNop(), RateLimitConfig{
		Limit:  1,
		Window: time.Minute,
	})

	ctx := context.Background()
	if _, err := limiter.Allow(ctx, "agent:agent-1"); err != nil {
		t.Fatal(err)
	}
	exhausted, err := limiter.Allow(ctx, "agent:agent-1")
	if err != nil {
		t.Fatal(err)
	}
	if exhausted.Allowed {
		t.Fatal("agent-1 should be throttled")
	}

	// A different agent is unaffected.
	other, err := limiter.Allow(ctx, "agent:agent-2")
	if err != nil {
		t.Fatal(err)
	}
	if !other.Allowed {
		t.Error("agent-2 throttled by agent-1's traffic")
	}
}

func TestRateLimiter_WindowExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	limiter := NewRateLimiter(client, zap.NewNop(), RateLimitConfig{
		Limit:  1,
		Window: time.Minute,
	})

	ctx := context.Background()
	if _, err := limiter.Allow(ctx, "agent:agent-1"); err != nil {
		t.Fatal(err)
	}

	// Counter key expires after the window; the next request lands in a
	// fresh bucket.
	mr.FastForward(2 * time.Minute)

	result, err := limiter.Allow(ctx, "agent:agent-1")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Allowed {
		t.Error("request rejected after window expiry")
	}
}
