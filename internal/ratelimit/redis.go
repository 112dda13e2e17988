package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/doublev/bff-gateway/internal/config"
)

// redisTimeout bounds each limiter round trip so a slow Redis never stalls requests.
const redisTimeout = 2 * time.Second

// incrWindow counts one hit and starts the window on the first one.
// Returns {count, remaining window in ms}.
var incrWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

// RedisLimiter keeps counters in Redis so all replicas share one budget.
type RedisLimiter struct {
	client   *redis.Client
	window   time.Duration
	prefix   string
	fallback Limiter
}

// RedisOption configures a RedisLimiter.
type RedisOption func(*RedisLimiter)

// WithKeyPrefix namespaces the counters (rate_limit.key_prefix).
func WithKeyPrefix(prefix string) RedisOption {
	return func(l *RedisLimiter) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// WithFallback replaces the limiter used while Redis is unreachable.
// nil allows every request during an outage.
func WithFallback(fallback Limiter) RedisOption {
	return func(l *RedisLimiter) {
		l.fallback = fallback
	}
}

// NewRedis creates a Redis-backed limiter. Unless overridden, it falls back
// to a process-local limiter with the same window.
func NewRedis(client *redis.Client, window time.Duration, opts ...RedisOption) *RedisLimiter {
	window = windowOrDefault(window)
	l := &RedisLimiter{
		client:   client,
		window:   window,
		prefix:   config.DefaultRateLimitKeyPrefix,
		fallback: NewInMemory(window),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewRedisFromURL parses a redis:// URL and creates a limiter.
func NewRedisFromURL(rawURL string, window time.Duration, opts ...RedisOption) (*RedisLimiter, error) {
	redisOpts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedis(redis.NewClient(redisOpts), window, opts...), nil
}

// Allow counts one request for key.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int) Decision {
	limit = limitOrDefault(limit)
	if l.client == nil {
		return l.degraded(ctx, key, limit)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), redisTimeout)
	defer cancel()

	b, err := l.incr(ctx, l.prefix+key)
	if err != nil {
		log.Warn().Err(err).Str("key", l.prefix+key).Msg("redis rate limiter unavailable, using fallback")
		return l.degraded(ctx, key, limit)
	}
	return b.decision(limit)
}

func (l *RedisLimiter) incr(ctx context.Context, key string) (bucket, error) {
	vals, err := incrWindow.Run(ctx, l.client, []string{key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return bucket{}, err
	}
	if len(vals) != 2 {
		return bucket{}, fmt.Errorf("unexpected limiter reply %v", vals)
	}
	ttl := time.Duration(vals[1]) * time.Millisecond
	if ttl < 0 {
		ttl = l.window
	}
	return bucket{count: int(vals[0]), resetAt: time.Now().UTC().Add(ttl)}, nil
}

func (l *RedisLimiter) degraded(ctx context.Context, key string, limit int) Decision {
	if l.fallback != nil {
		return l.fallback.Allow(ctx, key, limit)
	}
	return bucket{resetAt: time.Now().UTC().Add(l.window)}.decision(limit)
}

// Close releases the Redis client.
func (l *RedisLimiter) Close() error {
	if l.client == nil {
		return nil
	}
	return l.client.Close()
}
