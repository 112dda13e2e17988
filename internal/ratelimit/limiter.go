// Package ratelimit implements fixed-window per-client request limits.
//
// Two implementations share the Limiter interface:
//   - InMemoryLimiter: process-local counters, the default
//   - RedisLimiter:    shared counters across gateway replicas, falling back
//     to an in-memory limiter when Redis is unreachable
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the result of one Allow call.
type Decision struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long a rejected client should wait.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait < time.Second {
		return time.Second
	}
	return wait
}

// Limiter counts requests per key.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int) Decision
}

// bucket is one client's counter for the current window.
type bucket struct {
	count   int
	resetAt time.Time
}

// decision reports the bucket against limit.
func (b bucket) decision(limit int) Decision {
	return Decision{
		Allowed:   b.count <= limit,
		Count:     b.count,
		Limit:     limit,
		Remaining: max(limit-b.count, 0),
		ResetAt:   b.resetAt,
	}
}

// InMemoryLimiter is a mutex-guarded fixed-window counter.
type InMemoryLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	buckets map[string]bucket
	now     func() time.Time
}

// NewInMemory creates a limiter with the given window (one minute if unset).
func NewInMemory(window time.Duration) *InMemoryLimiter {
	return &InMemoryLimiter{
		window:  windowOrDefault(window),
		buckets: make(map[string]bucket),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Allow counts one request for key.
func (l *InMemoryLimiter) Allow(_ context.Context, key string, limit int) Decision {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.evictExpired(now)
	b, ok := l.buckets[key]
	if !ok {
		b = bucket{resetAt: now.Add(l.window)}
	}
	b.count++
	l.buckets[key] = b
	return b.decision(limitOrDefault(limit))
}

func (l *InMemoryLimiter) evictExpired(now time.Time) {
	for k, b := range l.buckets {
		if now.After(b.resetAt) {
			delete(l.buckets, k)
		}
	}
}

func windowOrDefault(window time.Duration) time.Duration {
	if window <= 0 {
		return time.Minute
	}
	return window
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 1
	}
	return limit
}
