// Package ratelimit caps how often a keyed action may run per fixed window.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// FixedWindowLimiter allows limit actions per key in each window. With a
// Redis client the count is shared by every process using the same prefix;
// otherwise it lives in memory.
type FixedWindowLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	redisClient *redis.Client
	redisPrefix string

	mu     sync.Mutex
	counts map[string]int
}

func validate(limit int, window time.Duration) error {
	if limit <= 0 || window <= 0 {
		return errors.New("rate limiter requires positive limit and window")
	}
	return nil
}

// NewMemoryFixedWindowLimiter creates a process-local limiter.
func NewMemoryFixedWindowLimiter(limit int, window time.Duration) (*FixedWindowLimiter, error) {
	if err := validate(limit, window); err != nil {
		return nil, err
	}
	return &FixedWindowLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		counts: make(map[string]int),
	}, nil
}

// NewRedisFixedWindowLimiter creates a Redis-backed limiter.
func NewRedisFixedWindowLimiter(addr, password, prefix string, limit int, window time.Duration) (*FixedWindowLimiter, error) {
	if err := validate(limit, window); err != nil {
		return nil, err
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("rate limiter redis addr is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "logos:quota"
	}
	return &FixedWindowLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		redisClient: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		redisPrefix: prefix,
	}, nil
}

// Allow reports whether key is within quota and counts the attempt.
// Redis failures fail closed.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil {
		return false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	slot := l.now().UTC().UnixMilli() / l.window.Milliseconds()
	if l.redisClient != nil {
		return l.allowRedis(ctx, key, slot)
	}
	return l.allowMemory(key, slot)
}

func (l *FixedWindowLimiter) allowMemory(key string, slot int64) bool {
	slotKey := fmt.Sprintf("%s:%d", key, slot)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k := range l.counts {
		if k != slotKey && strings.HasPrefix(k, key+":") {
			delete(l.counts, k)
		}
	}
	l.counts[slotKey]++
	return l.counts[slotKey] <= l.limit
}

func (l *FixedWindowLimiter) allowRedis(ctx context.Context, key string, slot int64) bool {
	redisKey := fmt.Sprintf("%s:%s:%d", l.redisPrefix, key, slot)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	res, err := fixedWindowScript.Run(ctx, l.redisClient, []string{redisKey}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false
	}
	return res <= int64(l.limit)
}

func (l *FixedWindowLimiter) Close() error {
	if l == nil || l.redisClient == nil {
		return nil
	}
	return l.redisClient.Close()
}
