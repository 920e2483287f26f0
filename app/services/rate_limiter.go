package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	businessflow "github.com/linktum-io/linktum/business_flow"
)

// MemoryRateLimiter enforces a fixed window per account and action using an
// in-process map. Suitable for single-instance deployments and tests.
type MemoryRateLimiter struct {
	window time.Duration
	max    int64

	mu      sync.Mutex
	windows map[string]*rateWindow
	done    chan struct{}
}

type rateWindow struct {
	count     int64
	startedAt time.Time
}

// NewMemoryRateLimiter creates an in-memory limiter and starts a background
// sweep that evicts stale windows.
func NewMemoryRateLimiter(window time.Duration, max int64) *MemoryRateLimiter {
	l := &MemoryRateLimiter{
		window:  window,
		max:     max,
		windows: make(map[string]*rateWindow),
		done:    make(chan struct{}),
	}
	go l.evictLoop()
	return l
}

func (l *MemoryRateLimiter) Allow(_ context.Context, phone, action string) (bool, time.Duration, error) {
	key := phone + ":" + action
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.startedAt) >= l.window {
		l.windows[key] = &rateWindow{count: 1, startedAt: now}
		return true, 0, nil
	}

	if w.count >= l.max {
		return false, l.window - now.Sub(w.startedAt), nil
	}
	w.count++
	return true, 0, nil
}

// Stop terminates the eviction goroutine.
func (l *MemoryRateLimiter) Stop() {
	close(l.done)
}

func (l *MemoryRateLimiter) evictLoop() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.evictStale(time.Now())
		}
	}
}

func (l *MemoryRateLimiter) evictStale(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if now.Sub(w.startedAt) >= l.window {
			delete(l.windows, key)
		}
	}
}

// RedisRateLimiter enforces the same fixed window across multiple instances
// using an INCR counter with a window-long expiry.
type RedisRateLimiter struct {
	client *redis.Client
	window time.Duration
	max    int64
}

// NewRedisRateLimiter creates a Redis-backed limiter.
func NewRedisRateLimiter(client *redis.Client, window time.Duration, max int64) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, window: window, max: max}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, phone, action string) (bool, time.Duration, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", phone, action)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, 0, fmt.Errorf("failed to set rate limit expiry: %w", err)
		}
	}
	if count > l.max {
		ttl, err := l.client.TTL(ctx, key).Result()
		if err != nil || ttl < 0 {
			ttl = l.window
		}
		return false, ttl, nil
	}
	return true, 0, nil
}

var (
	_ businessflow.RateLimiter = (*MemoryRateLimiter)(nil)
	_ businessflow.RateLimiter = (*RedisRateLimiter)(nil)
)
