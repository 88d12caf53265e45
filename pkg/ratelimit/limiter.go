package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow reports whether a request may proceed now, consuming a token if so
	Allow() bool
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
}

// TokenBucket is a Limiter refilled at a steady rate
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket allows requestsPerMinute on average with bursts of up to burst requests
func NewTokenBucket(requestsPerMinute, burst int) *TokenBucket {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), burst),
	}
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	return tb.limiter.Allow()
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.limiter.Wait(ctx)
}

// Unlimited is a Limiter that never blocks
type Unlimited struct{}

func (Unlimited) Allow() bool                    { return true }
func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }

// Throttle inserts a pause between consecutive operations
type Throttle interface {
	Pause(ctx context.Context) error
}

// RandomDelay pauses for a uniformly random duration in [Min, Max]
type RandomDelay struct {
	min, max time.Duration

	mu    sync.Mutex
	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRandomDelay creates a throttle pausing between min and max. max is
// raised to min when smaller.
func NewRandomDelay(min, max time.Duration) *RandomDelay {
	if max < min {
		max = min
	}
	return &RandomDelay{
		min:   min,
		max:   max,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: Sleep,
	}
}

// WithSleeper replaces the sleep function, e.g. to record delays in tests
func (d *RandomDelay) WithSleeper(sleep func(ctx context.Context, d time.Duration) error) *RandomDelay {
	d.sleep = sleep
	return d
}

// Next returns the next delay without sleeping
func (d *RandomDelay) Next() time.Duration {
	if d.max == d.min {
		return d.min
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.min + time.Duration(d.rng.Int63n(int64(d.max-d.min)+1))
}

// Pause sleeps for the next delay or until ctx is done
func (d *RandomDelay) Pause(ctx context.Context) error {
	return d.sleep(ctx, d.Next())
}

// NoDelay is a Throttle that only checks for cancellation
type NoDelay struct{}

func (NoDelay) Pause(ctx context.Context) error { return ctx.Err() }

// Sleep waits for d or until ctx is done, whichever comes first
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
