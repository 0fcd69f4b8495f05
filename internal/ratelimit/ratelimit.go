// Package ratelimit provides a token-bucket limiter used to pace calls to
// the advisor and quote upstreams. Rate limiting toward both is mandatory;
// unthrottled callers get throttled by the upstream instead.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter implements token bucket rate limiting.
type Limiter struct {
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
	mu         sync.Mutex
}

// NewLimiter creates a limiter holding at most maxTokens, adding one token
// every refillRate (e.g. 500ms = 2 calls/second sustained).
func NewLimiter(maxTokens int, refillRate time.Duration) *Limiter {
	return &Limiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		if l.TryAcquire() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// TryAcquire attempts to consume a token without blocking.
func (l *Limiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(l.lastRefill)

	if add := int(elapsed / l.refillRate); add > 0 {
		l.tokens += add
		if l.tokens > l.maxTokens {
			l.tokens = l.maxTokens
		}

		l.lastRefill = now
	}

	if l.tokens > 0 {
		l.tokens--

		return true
	}

	return false
}
