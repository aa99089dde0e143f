package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestFixedWindowLimiterRedis(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "test:quota", 2, time.Hour)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	defer limiter.Close()
	ctx := context.Background()
	if !limiter.Allow(ctx, "generation") {
		t.Fatalf("first request should pass")
	}
	if !limiter.Allow(ctx, "generation") {
		t.Fatalf("second request should pass")
	}
	if limiter.Allow(ctx, "generation") {
		t.Fatalf("third request should be blocked")
	}
	if !limiter.Allow(ctx, "other") {
		t.Fatalf("keys must be counted separately")
	}
}

func TestFixedWindowLimiterRedisSharedAcrossInstances(t *testing.T) {
	redis := miniredis.RunT(t)
	a, _ := NewRedisFixedWindowLimiter(redis.Addr(), "", "test:quota", 1, time.Hour)
	b, _ := NewRedisFixedWindowLimiter(redis.Addr(), "", "test:quota", 1, time.Hour)
	defer a.Close()
	defer b.Close()
	if !a.Allow(context.Background(), "generation") {
		t.Fatalf("first request should pass")
	}
	if b.Allow(context.Background(), "generation") {
		t.Fatalf("second process should see the shared count")
	}
}

func TestFixedWindowLimiterRedisFailClosed(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "test:quota", 1, time.Second)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	redis.Close()
	if limiter.Allow(context.Background(), "generation") {
		t.Fatalf("limiter should fail closed on redis errors")
	}
}

func TestFixedWindowLimiterRequiresRedisAddr(t *testing.T) {
	limiter, err := NewRedisFixedWindowLimiter("", "", "test:quota", 1, time.Second)
	if err == nil || limiter != nil {
		t.Fatalf("expected constructor error for empty redis addr")
	}
}

func TestMemoryLimiterResetsEachWindow(t *testing.T) {
	limiter, err := NewMemoryFixedWindowLimiter(1, time.Minute)
	if err != nil {
		t.Fatalf("new memory limiter: %v", err)
	}
	now := time.Date(2024, 3, 21, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()
	if !limiter.Allow(ctx, "generation") || limiter.Allow(ctx, "generation") {
		t.Fatalf("expected one request per window")
	}
	now = now.Add(time.Minute)
	if !limiter.Allow(ctx, "generation") {
		t.Fatalf("expected quota to reset in the next window")
	}
	if len(limiter.counts) != 1 {
		t.Fatalf("expected old windows to be dropped, got %d entries", len(limiter.counts))
	}
}

func TestLimiterRejectsNonPositiveSettings(t *testing.T) {
	if _, err := NewMemoryFixedWindowLimiter(0, time.Minute); err == nil {
		t.Fatalf("expected zero limit to fail")
	}
	if _, err := NewMemoryFixedWindowLimiter(1, 0); err == nil {
		t.Fatalf("expected zero window to fail")
	}
}
