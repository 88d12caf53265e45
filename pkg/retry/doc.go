// Package retry re-runs operations that fail with transient errors.
//
// It is a thin layer over github.com/cenkalti/backoff/v4 that classifies
// errors with igmedia/pkg/errors and logs each retry:
//
//	err := retry.Do(ctx, log, "download post_001_img.jpg", func() error {
//	    return fetch(ctx)
//	}, retry.ConstantConfig(3, 2*time.Second))
//
// Errors for which Config.RetryIf returns false stop the loop immediately and
// are returned unwrapped.
package retry
