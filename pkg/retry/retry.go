package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	igerrors "igmedia/pkg/errors"
	"igmedia/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func() error

// OperationWithResult is a function that returns a result and might need retrying
type OperationWithResult[T any] func() (T, error)

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int
	// InitialInterval is the delay before the first retry
	InitialInterval time.Duration
	// MaxInterval caps the delay between retries
	MaxInterval time.Duration
	// Multiplier grows the delay after each retry; values <= 1 keep it constant
	Multiplier float64
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns an exponential retry configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      1.5,
		RetryIf:         DefaultRetryIf,
	}
}

// ConstantConfig retries up to attempts times in total with a fixed delay
func ConstantConfig(attempts int, delay time.Duration) Config {
	return Config{
		MaxAttempts:     attempts,
		InitialInterval: delay,
		MaxInterval:     delay,
		Multiplier:      1,
		RetryIf:         DefaultRetryIf,
	}
}

// DefaultRetryIf retries typed errors whose type is retryable and any
// untyped error except context cancellation
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return igerrors.IsRetryableError(err)
}

func (cfg Config) backOff() backoff.BackOff {
	var b backoff.BackOff
	if cfg.Multiplier <= 1 {
		b = backoff.NewConstantBackOff(cfg.InitialInterval)
	} else {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = cfg.InitialInterval
		exp.MaxInterval = cfg.MaxInterval
		exp.Multiplier = cfg.Multiplier
		exp.MaxElapsedTime = 0
		exp.Reset()
		b = exp
	}

	retries := cfg.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(b, uint64(retries))
}

// Do executes op until it succeeds, fails with a non-retryable error, runs
// out of attempts or ctx is done
func Do(ctx context.Context, log logger.Logger, operationName string, op Operation, cfg Config) error {
	if log == nil {
		log = logger.NewNopLogger()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}

	attempt := 0
	wrapped := func() error {
		attempt++
		err := op()
		if err != nil && !retryIf(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, next)
		}
		log.WarnWithFields("Operation failed, retrying", map[string]interface{}{
			"operation":       operationName,
			"attempt":         attempt,
			"error":           err.Error(),
			"next_attempt_in": next.Round(time.Millisecond).String(),
		})
	}

	err := backoff.RetryNotify(wrapped, backoff.WithContext(cfg.backOff(), ctx), notify)
	if err != nil && attempt > 1 {
		log.ErrorWithFields("Operation failed after retries", map[string]interface{}{
			"operation": operationName,
			"attempts":  attempt,
			"error":     err.Error(),
		})
	}
	return err
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, log logger.Logger, operationName string, op OperationWithResult[T], cfg Config) (T, error) {
	var result T
	err := Do(ctx, log, operationName, func() error {
		var opErr error
		result, opErr = op()
		return opErr
	}, cfg)
	return result, err
}
