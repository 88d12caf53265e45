package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	igerrors "igmedia/pkg/errors"
	"igmedia/pkg/logger"
)

func fastConfig(attempts int) Config {
	return ConstantConfig(attempts, time.Millisecond)
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), logger.NewNopLogger(), "op", func() error {
		calls++
		return nil
	}, fastConfig(3))

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientErrors(t *testing.T) {
	log := logger.NewTestLogger()
	calls := 0
	err := Do(context.Background(), log, "fetch", func() error {
		calls++
		if calls < 3 {
			return igerrors.Transport(0, "connection reset", nil)
		}
		return nil
	}, fastConfig(3))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, log.GetMessagesByLevel("WARN"), 2)
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	log := logger.NewTestLogger()
	calls := 0
	boom := igerrors.FromStatus(503, "unavailable")
	err := Do(context.Background(), log, "fetch", func() error {
		calls++
		return boom
	}, fastConfig(3))

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
	assert.True(t, log.HasMessage("Operation failed after retries"))
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	notFound := igerrors.FromStatus(404, "gone")
	err := Do(context.Background(), nil, "fetch", func() error {
		calls++
		return notFound
	}, fastConfig(5))

	assert.Equal(t, 1, calls)
	assert.Same(t, notFound, err)
	assert.True(t, igerrors.IsType(err, igerrors.ErrorTypeNotFound))
}

func TestDoCustomRetryIf(t *testing.T) {
	sentinel := errors.New("try again")
	cfg := fastConfig(4)
	cfg.RetryIf = func(err error) bool { return errors.Is(err, sentinel) }

	var attempts []int
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	}

	calls := 0
	err := Do(context.Background(), nil, "op", func() error {
		calls++
		return sentinel
	}, cfg)

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestDoRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, nil, "op", func() error {
		calls++
		cancel()
		return igerrors.Transport(0, "reset", nil)
	}, ConstantConfig(5, time.Hour))

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), nil, "op", func() (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	}, fastConfig(2))

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, calls)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(igerrors.Protocol("bad json", nil)))
	assert.False(t, DefaultRetryIf(igerrors.FromStatus(401, "unauthorized")))
	assert.True(t, DefaultRetryIf(igerrors.FromStatus(429, "slow down")))
	assert.True(t, DefaultRetryIf(igerrors.FromStatus(502, "bad gateway")))
	assert.True(t, DefaultRetryIf(errors.New("unexpected EOF")))
}

func TestDefaultConfigIsExponential(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Greater(t, cfg.Multiplier, 1.0)
	assert.NotNil(t, cfg.RetryIf)
}
