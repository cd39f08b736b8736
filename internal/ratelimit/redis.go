package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window counter backed by Redis INCR + EXPIRE.
// Window expiry is the key's TTL; nothing is swept explicitly.
type RedisLimiter struct {
	client *redis.Client
	max    int64
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, max int, window time.Duration) *RedisLimiter {
	if max <= 0 {
		max = 20
	}
	if window <= 0 {
		window = 60 * time.Second
	}
	return &RedisLimiter{client: client, max: int64(max), window: window}
}

func key(identifier string) string {
	return "ratelimit:" + identifier
}

func (l *RedisLimiter) Check(ctx context.Context, identifier string) (bool, error) {
	k := key(identifier)

	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		// First hit opens the window.
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, err
		}
	}
	return n <= l.max, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, identifier string) error {
	return l.client.Del(ctx, key(identifier)).Err()
}
