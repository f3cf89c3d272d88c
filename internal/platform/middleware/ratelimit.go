package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	dErrors "susu/pkg/domain-errors"
	"susu/pkg/platform/httputil"
)

// WindowStore counts requests per key inside a sliding window.
type WindowStore interface {
	// Incr records a hit for key and returns the count still inside the
	// window.
	Incr(ctx context.Context, key string, window time.Duration) (int, error)
}

// RateLimiter applies a per-client sliding window to mutating routes. A
// store failure fails open: availability over strictness for a limiter.
type RateLimiter struct {
	store    WindowStore
	requests int
	window   time.Duration
	logger   *slog.Logger
}

// NewRateLimiter builds a limiter allowing requests hits per window per
// client.
func NewRateLimiter(store WindowStore, requests int, window time.Duration, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{store: store, requests: requests, window: window, logger: logger}
}

// Limit is the middleware.
func (l *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := "ratelimit:" + clientIP(r)

		count, err := l.store.Incr(ctx, key, l.window)
		if err != nil {
			if l.logger != nil {
				l.logger.ErrorContext(ctx, "rate limit check failed", "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		remaining := l.requests - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > l.requests {
			w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RedisWindowStore counts hits in a Redis sorted set per key, trimming
// entries older than the window on each increment.
type RedisWindowStore struct {
	client *redis.Client
}

// NewRedisWindowStore wraps a redis client as a WindowStore.
func NewRedisWindowStore(client *redis.Client) *RedisWindowStore {
	return &RedisWindowStore{client: client}
}

// Incr adds a timestamped entry and returns the in-window count.
func (s *RedisWindowStore) Incr(ctx context.Context, key string, window time.Duration) (int, error) {
	now := time.Now()
	cutoff := now.Add(-window)

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff.UnixNano(), 10))
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	count := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(count.Val()), nil
}

// MemoryWindowStore is the in-process fallback when Redis is not
// configured, and the test double.
type MemoryWindowStore struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewMemoryWindowStore creates an empty window store.
func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{hits: make(map[string][]time.Time)}
}

// Incr records a hit and returns the in-window count.
func (s *MemoryWindowStore) Incr(_ context.Context, key string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-window)
	kept := s.hits[key][:0]
	for _, hit := range s.hits[key] {
		if hit.After(cutoff) {
			kept = append(kept, hit)
		}
	}
	kept = append(kept, now)
	s.hits[key] = kept
	return len(kept), nil
}
