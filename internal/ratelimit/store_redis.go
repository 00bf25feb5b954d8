package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis so limits hold across instances.
// One INCR-based counter per key and window; the expiry set on first
// increment defines the window boundary.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed fixed-window store. The client
// lifecycle is managed externally.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Allow atomically increments the key's counter and reads its TTL in one
// pipeline. ExpireNX only arms the window once, so a client crashing
// mid-sequence cannot leave an immortal counter.
func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("rate limit pipeline: %w", err)
	}

	count := int(incr.Val())
	remainingWindow := ttl.Val()
	if remainingWindow < 0 {
		remainingWindow = window
	}

	now := time.Now()
	resetAt := now.Add(remainingWindow)

	if count > limit {
		return &Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(now, resetAt),
		}, nil
	}

	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - count,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the counter for a key.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
