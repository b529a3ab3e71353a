package scanner

import (
	"math"
	"sync"
	"time"
)

// TokenBucket gates aggregate request issuance across all workers to a
// configured requests-per-second ceiling. Tokens refill continuously in
// proportion to elapsed wall-clock time, capped at one second's worth of
// quota, so brief bursts up to capacity are allowed while the long-run
// average holds regardless of worker count.
type TokenBucket struct {
	mu       sync.Mutex
	rate     float64 // tokens added per second
	capacity float64
	tokens   float64
	last     time.Time

	// injectable for deterministic tests
	now   func() time.Time
	sleep func(time.Duration)
}

// BucketOption allows for customization of the bucket.
type BucketOption func(*TokenBucket)

// WithClock replaces the bucket's time source and sleep function.
func WithClock(now func() time.Time, sleep func(time.Duration)) BucketOption {
	return func(b *TokenBucket) {
		b.now = now
		b.sleep = sleep
	}
}

// NewTokenBucket creates a bucket allowing perSecond acquisitions per
// second. The bucket starts full, permitting an initial burst.
func NewTokenBucket(perSecond float64, opts ...BucketOption) *TokenBucket {
	if perSecond <= 0 {
		perSecond = 1
	}
	b := &TokenBucket{
		rate:     perSecond,
		capacity: perSecond,
		tokens:   perSecond,
		now:      time.Now,
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.last = b.now()
	return b
}

// Acquire blocks the caller until at least one token is available, then
// debits it. The check-refill-debit sequence is a single critical section;
// the sleep between attempts happens outside the lock.
func (b *TokenBucket) Acquire() {
	interval := time.Duration(float64(time.Second) / b.rate)
	for {
		b.mu.Lock()
		now := b.now()
		elapsed := now.Sub(b.last).Seconds()
		b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.rate)
		b.last = now

		if b.tokens >= 1.0 {
			b.tokens -= 1.0
			b.mu.Unlock()
			return
		}
		b.mu.Unlock()

		b.sleep(interval)
	}
}

// Tokens reports the current balance without refilling. Used by tests to
// observe bucket state.
func (b *TokenBucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}
