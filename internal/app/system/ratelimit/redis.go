package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter implements Counter with INCR/PEXPIRE/PTTL. Redis serializes
// concurrent INCRs on one key, so no application-side locking is needed.
type RedisCounter struct {
	client redis.UniversalClient
}

var _ Counter = (*RedisCounter)(nil)

// NewRedisCounter wraps client.
func NewRedisCounter(client redis.UniversalClient) *RedisCounter {
	return &RedisCounter{client: client}
}

// Hit implements Counter.
func (c *RedisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	var incr *redis.IntCmd
	var pttl *redis.DurationCmd
	_, err := c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		pttl = p.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("incr %s: %w", key, err)
	}

	count, ttl := incr.Val(), pttl.Val()
	// First hit of the window, or a key that somehow lost its TTL: without
	// an expiry the key would count forever.
	if count == 1 || ttl < 0 {
		if err := c.client.PExpire(ctx, key, window).Err(); err != nil {
			return count, 0, fmt.Errorf("expire %s: %w", key, err)
		}
		ttl = window
	}
	return count, ttl, nil
}

// Del implements Counter.
func (c *RedisCounter) Del(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// Ping checks connectivity for health reporting.
func (c *RedisCounter) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
