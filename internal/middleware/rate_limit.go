package middleware

import (
	"context"
	"math"
	"sync"
	"time"
)

// Limiter is the admission gate the security dispatcher consults once per
// protected request.
type Limiter interface {
	Allow(ctx context.Context, clientID string) (bool, error)
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
	requests   []time.Time
}

// RateLimiter is an in-memory per-client token bucket with a 60 second
// sliding window enforced alongside it: a request is admitted only when the
// window holds fewer than requestsPerMinute entries AND a burst token is
// available. Refill and window mutation happen atomically within one Allow
// call, so per-client decisions are monotonic under any interleaving.
type RateLimiter struct {
	mu                sync.Mutex
	buckets           map[string]*bucket
	requestsPerMinute int
	burstSize         int
	now               func() time.Time
}

// RateLimiterOption defines a function to configure RateLimiter
type RateLimiterOption func(*RateLimiter)

// WithRequestsPerMinute sets the sustained rate.
func WithRequestsPerMinute(n int) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.requestsPerMinute = n
	}
}

// WithBurstSize sets the burst capacity.
func WithBurstSize(n int) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.burstSize = n
	}
}

// NewRateLimiter creates a new rate limiter instance
func NewRateLimiter(opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		buckets:           make(map[string]*bucket),
		requestsPerMinute: 60,
		burstSize:         10,
		now:               time.Now,
	}

	for _, opt := range opts {
		opt(rl)
	}

	return rl
}

// Allow reports whether the client may proceed, consuming one token on
// admission. The context is unused; it exists so distributed limiters can
// share the interface.
func (rl *RateLimiter) Allow(_ context.Context, clientID string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[clientID]
	if !ok {
		b = &bucket{tokens: float64(rl.burstSize), lastRefill: now}
		rl.buckets[clientID] = b
	}

	// Refill, capped at burst capacity.
	refillRate := float64(rl.requestsPerMinute) / 60.0
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = math.Min(float64(rl.burstSize), b.tokens+elapsed*refillRate)
	b.lastRefill = now

	// Drop window entries older than one minute.
	cutoff := now.Add(-time.Minute)
	valid := b.requests[:0]
	for _, t := range b.requests {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	b.requests = valid

	if len(b.requests) >= rl.requestsPerMinute {
		return false, nil
	}
	if b.tokens <= 0 {
		return false, nil
	}

	b.requests = append(b.requests, now)
	b.tokens--
	return true, nil
}

// RetryAfter returns the wait until a fresh token is available.
func (rl *RateLimiter) RetryAfter() time.Duration {
	return time.Duration(float64(time.Minute) / float64(rl.requestsPerMinute))
}

// StartCleanup drops buckets idle for more than five minutes until stopCh
// is closed.
func (rl *RateLimiter) StartCleanup(interval time.Duration, stopCh <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.mu.Lock()
				cutoff := rl.now().Add(-5 * time.Minute)
				for clientID, b := range rl.buckets {
					if b.lastRefill.Before(cutoff) {
						delete(rl.buckets, clientID)
					}
				}
				rl.mu.Unlock()
			case <-stopCh:
				return
			}
		}
	}()
}
