package adapters

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	ports "github.com/ZanzyTHEbar/agent-actions/actcore/executor/ports"
)

// ErrRateLimitExceeded is returned when no token became available before
// the caller's context ended.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// TokenBucket limits provider calls per key. Buckets start full and regain
// one token every refillEvery; Acquire waits for a token while ctx allows.
type TokenBucket struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	capacity    int
	refillEvery time.Duration
	now         func() time.Time
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

func NewTokenBucket(capacity int, refillEvery time.Duration) *TokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	if refillEvery <= 0 {
		refillEvery = time.Second
	}
	return &TokenBucket{
		buckets:     make(map[string]*bucket),
		capacity:    capacity,
		refillEvery: refillEvery,
		now:         time.Now,
	}
}

// Acquire takes one token for key. The returned release func is a no-op
// kept for the RateLimiter contract; spent tokens come back by refill only.
func (tb *TokenBucket) Acquire(ctx context.Context, key string) (func(), error) {
	for {
		wait, ok := tb.take(key)
		if ok {
			return func() {}, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s: %v", ErrRateLimitExceeded, key, ctx.Err())
		case <-timer.C:
		}
	}
}

// TryAcquire takes a token without waiting.
func (tb *TokenBucket) TryAcquire(key string) bool {
	_, ok := tb.take(key)
	return ok
}

func (tb *TokenBucket) take(key string) (time.Duration, bool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: tb.capacity, lastRefill: now}
		tb.buckets[key] = b
	}

	if refills := int(now.Sub(b.lastRefill) / tb.refillEvery); refills > 0 {
		b.tokens = min(b.tokens+refills, tb.capacity)
		b.lastRefill = b.lastRefill.Add(time.Duration(refills) * tb.refillEvery)
	}
	if b.tokens == tb.capacity {
		b.lastRefill = now
	}
	if b.tokens > 0 {
		b.tokens--
		return 0, true
	}
	return b.lastRefill.Add(tb.refillEvery).Sub(now), false
}

var _ ports.RateLimiter = (*TokenBucket)(nil)
