package network

import (
	"context"
	"sync"
	"time"

	"betsync/internal/infra/clock"
)

// TokenBucket allows capacity requests in a burst, refilled at rate per second.
type TokenBucket struct {
	mu       sync.Mutex
	capacity int
	tokens   float64
	rate     float64 // tokens per second
	last     time.Time
	clock    clock.Clock
}

func NewTokenBucket(capacity int, rate float64, c clock.Clock) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	if c == nil {
		c = clock.Real{}
	}
	return &TokenBucket{capacity: capacity, tokens: float64(capacity), rate: rate, last: c.Now(), clock: c}
}

func (b *TokenBucket) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(now)
	if b.tokens >= 1 {
		b.tokens -= 1
		return true
	}
	return false
}

// Wait blocks until a token is available or ctx is done, and returns how
// long it waited.
func (b *TokenBucket) Wait(ctx context.Context) (time.Duration, error) {
	var waited time.Duration
	for {
		b.mu.Lock()
		b.refill(b.clock.Now())
		if b.tokens >= 1 {
			b.tokens -= 1
			b.mu.Unlock()
			return waited, nil
		}
		var d time.Duration
		if b.rate > 0 {
			d = time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
		}
		b.mu.Unlock()
		if d <= 0 {
			d = time.Millisecond
		}
		if err := clock.Sleep(ctx, b.clock, d); err != nil {
			return waited, err
		}
		waited += d
	}
}

func (b *TokenBucket) refill(now time.Time) {
	dt := now.Sub(b.last).Seconds()
	if dt <= 0 {
		return
	}
	b.last = now
	b.tokens += b.rate * dt
	if b.tokens > float64(b.capacity) {
		b.tokens = float64(b.capacity)
	}
}
