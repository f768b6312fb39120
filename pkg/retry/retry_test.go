package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igcrawler/pkg/config"
	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/logger"
)

func fastConfig(attempts int) *Config {
	return &Config{
		MaxAttempts: attempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     func(err error) bool { return true },
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{6, 1 * time.Second},
	}

	for _, tt := range tests {
		if got := backoff.NextDelay(tt.attempt); got != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, got)
		}
	}
}

func TestExponentialBackoffWithJitter(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	delays := make(map[time.Duration]bool)
	for i := 0; i < 20; i++ {
		d := backoff.NextDelay(2)
		assert.InDelta(t, float64(200*time.Millisecond), float64(d), float64(60*time.Millisecond))
		delays[d] = true
	}
	assert.Greater(t, len(delays), 1, "jitter should vary delays")
}

func TestExponentialBackoffZeroMultiplier(t *testing.T) {
	backoff := &ExponentialBackoff{BaseDelay: 10 * time.Millisecond}
	assert.Equal(t, 10*time.Millisecond, backoff.NextDelay(4))
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, fastConfig(5))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	persistent := errors.New("persistent error")
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return persistent
	}, fastConfig(3))

	require.Error(t, err)
	assert.ErrorIs(t, err, persistent)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithNonRetryableError(t *testing.T) {
	attempts := 0
	cfg := fastConfig(5)
	cfg.RetryIf = DefaultRetryIf

	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errs.FromStatus(404)
	}, cfg)

	assert.True(t, errs.IsType(err, errs.ErrorTypeNotFound))
	assert.Equal(t, 1, attempts)
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{
		MaxAttempts: 10,
		Backoff:     &ConstantBackoff{Delay: time.Minute},
		OnRetry:     func(int, error, time.Duration) { cancel() },
	}

	attempts := 0
	err := Do(ctx, func(ctx context.Context) error {
		attempts++
		return errs.NewNetworkError("connection reset", nil)
	}, cfg)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, errs.IsType(err, errs.ErrorTypeNetwork))
	assert.Equal(t, 1, attempts)
}

func TestRetryAfterRaisesDelay(t *testing.T) {
	var delays []time.Duration
	cfg := fastConfig(3)
	cfg.OnRetry = func(_ int, _ error, delay time.Duration) { delays = append(delays, delay) }

	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		switch attempts {
		case 1:
			return &errs.Error{Type: errs.ErrorTypeRateLimit, Code: 429, RetryAfter: 30 * time.Millisecond}
		case 2:
			return errs.NewNetworkError("connection reset", nil)
		}
		return nil
	}, cfg)

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{30 * time.Millisecond, time.Millisecond}, delays)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(errs.NewParseError("data.user", "missing", nil)))
	assert.False(t, DefaultRetryIf(errs.FromStatus(403)))
	assert.True(t, DefaultRetryIf(errs.FromStatus(429)))
	assert.True(t, DefaultRetryIf(errs.FromStatus(503)))
	assert.True(t, DefaultRetryIf(errors.New("read: connection reset")))
}

func TestErrorTypeBackoff(t *testing.T) {
	etb := NewErrorTypeBackoff()

	assert.Same(t, etb.NetworkErrorBackoff, etb.For(errs.NewNetworkError("x", nil)))
	assert.Same(t, etb.RateLimitBackoff, etb.For(errs.FromStatus(429)))
	assert.Same(t, etb.ServerErrorBackoff, etb.For(errs.FromStatus(500)))
	assert.Same(t, etb.DefaultBackoff, etb.For(errors.New("other")))
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     10 * time.Second,
		Multiplier:     3,
	}, logger.NewTestLogger())

	assert.Equal(t, 4, cfg.MaxAttempts)
	b := cfg.backoffFor(errs.FromStatus(502)).(*ExponentialBackoff)
	assert.Equal(t, 2*time.Second, b.BaseDelay)
	assert.Equal(t, 10*time.Second, b.MaxDelay)

	rl := cfg.backoffFor(errs.FromStatus(429)).(*ExponentialBackoff)
	assert.Equal(t, 30*time.Second, rl.BaseDelay)
}

func TestRetryLogsAttempts(t *testing.T) {
	log := logger.NewTestLogger()
	cfg := fastConfig(2)
	cfg.Logger = log

	_ = Do(context.Background(), func(ctx context.Context) error {
		return errors.New("fail")
	}, cfg)

	assert.True(t, log.HasMessage("retrying operation"))
	assert.True(t, log.HasMessage("max retry attempts exceeded"))
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "partial", errors.New("temporary error")
		}
		return "success", nil
	}, fastConfig(3))

	require.NoError(t, err)
	assert.Equal(t, "success", result)

	result, err = DoWithResult(context.Background(), func(ctx context.Context) (string, error) {
		return "body", errs.FromStatus(400)
	}, &Config{MaxAttempts: 3, Backoff: &ConstantBackoff{}})

	require.Error(t, err)
	assert.Equal(t, "body", result)
}
