// pacer.go implements token-bucket pacing for broker request categories.
//
// The Open API tolerates short bursts but rejects sustained request storms,
// so historical-data and catalog calls are held to roughly one per second
// with a small burst allowance. Order placement gets a looser bucket since
// the engine's own cooldowns already space trades out.
package broker

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a rate limiter with continuous refill. Callers block in
// Wait() until a token is available or the context is cancelled.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64 // current available tokens (fractional allowed)
	capacity float64 // maximum burst size
	rate     float64 // tokens refilled per second
	lastTime time.Time
}

// NewTokenBucket creates a rate limiter with the given capacity and refill rate.
func NewTokenBucket(capacity, ratePerSecond float64) *TokenBucket {
	return &TokenBucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     ratePerSecond,
		lastTime: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is cancelled.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.lastTime).Seconds()
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastTime = now

		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}

		wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			// retry
		}
	}
}

// Pacer groups token buckets by broker request category. Each adapter call
// waits on the matching bucket before hitting the wire.
type Pacer struct {
	History *TokenBucket // trendbar history pulls
	Catalog *TokenBucket // symbol list, trader info, reconcile
	Order   *TokenBucket // order placement, close, amend
}

// NewPacer creates buckets tuned to the Open API's tolerance: history and
// catalog at ~1/s with a burst of 2, orders at 5/s with a burst of 5.
func NewPacer() *Pacer {
	return &Pacer{
		History: NewTokenBucket(2, 1),
		Catalog: NewTokenBucket(2, 1),
		Order:   NewTokenBucket(5, 5),
	}
}
