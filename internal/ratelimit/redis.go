package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window limiter backed by Redis, for deployments
// running more than one ingest replica. Same window semantics as the
// in-memory Governor; Redis TTLs replace the lazy purge.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedisLimiter constructs a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) (*RedisLimiter, error) {
	if client == nil {
		return nil, errors.New("ratelimit: nil redis client")
	}
	if limit <= 0 {
		return nil, errors.New("ratelimit: limit must be positive")
	}
	if window <= 0 {
		return nil, errors.New("ratelimit: window must be positive")
	}
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "ratelimit:",
	}, nil
}

// Check counts one request against the key's current window.
func (l *RedisLimiter) Check(ctx context.Context, key string) (Verdict, error) {
	if l == nil {
		return Verdict{}, errors.New("ratelimit: nil limiter")
	}
	redisKey := l.prefix + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Verdict{}, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return Verdict{}, err
		}
	}

	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil {
		return Verdict{}, err
	}
	if ttl < 0 {
		// Key lost its TTL (e.g. the Expire above raced a flush); reset it
		// so the window cannot live forever.
		ttl = l.window
		_ = l.client.Expire(ctx, redisKey, l.window).Err()
	}
	resetAt := time.Now().UTC().Add(ttl)

	if count > int64(l.limit) {
		return Verdict{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}
	return Verdict{
		Allowed:   true,
		Remaining: l.limit - int(count),
		ResetAt:   resetAt,
	}, nil
}
