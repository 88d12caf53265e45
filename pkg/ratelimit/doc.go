// Package ratelimit paces outgoing requests.
//
// TokenBucket caps the steady request rate against instagram.com. RandomDelay
// inserts a uniformly random pause between consecutive operations, which is
// how timeline pages and media downloads are spaced out:
//
//	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize)
//	pause := ratelimit.NewRandomDelay(2*time.Second, 4*time.Second)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//	...
//	if err := pause.Pause(ctx); err != nil {
//	    return err
//	}
package ratelimit
