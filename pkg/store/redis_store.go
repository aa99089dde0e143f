package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "logos:session"
	defaultSessionTTL  = 12 * time.Hour
	redisOpTimeout     = 3 * time.Second
)

// RedisConfig configures a Redis-backed session tier.
type RedisConfig struct {
	Addr      string
	Password  string
	Prefix    string
	SessionID string
	TTL       time.Duration
}

// RedisBackend keeps one session's values in Redis. Every key lives under
// <prefix>:<sessionID>: and carries the session TTL, so the session ends
// when the keys expire or Clear is called.
type RedisBackend struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// NewRedisBackend builds a Redis session backend.
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis session backend requires addr")
	}
	sessionID := strings.TrimSpace(cfg.SessionID)
	if sessionID == "" {
		return nil, errors.New("redis session backend requires session id")
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisBackend{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Password,
		}),
		namespace: fmt.Sprintf("%s:%s:", prefix, sessionID),
		ttl:       ttl,
	}, nil
}

func (r *RedisBackend) key(k string) string {
	return r.namespace + k
}

func (r *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	return r.client.Set(ctx, r.key(key), value, r.ttl).Err()
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// Clear deletes every key of this session.
func (r *RedisBackend) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	iter := r.client.Scan(ctx, 0, r.namespace+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan session keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// Close releases the Redis connection pool.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
