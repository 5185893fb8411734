package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:        maxRetries,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestRetry_SucceedsAfterTransientErrors(t *testing.T) {
	r := NewRetry(fastConfig(3))

	var retries []int
	r.config.OnRetry = func(attempt int, err error, backoff time.Duration) {
		retries = append(retries, attempt)
	}

	calls := 0
	attempts, err := r.Execute(context.Background(), func(attempt int) error {
		calls++
		if calls < 3 {
			return ErrRateLimited
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, retries)
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	r := NewRetry(fastConfig(5))
	permanent := &StatusError{Code: 401, Message: "unauthorized"}

	attempts, err := r.Execute(context.Background(), func(int) error { return permanent })

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, permanent)
	assert.NotErrorIs(t, err, ErrMaxRetriesExceeded)
}

func TestRetry_ExhaustsRetries(t *testing.T) {
	r := NewRetry(fastConfig(2))

	attempts, err := r.Execute(context.Background(), func(int) error { return ErrUnavailable })

	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRetry_ZeroRetries(t *testing.T) {
	r := NewRetry(fastConfig(0))

	attempts, err := r.Execute(context.Background(), func(int) error { return ErrUnavailable })

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRetry_CancelledDuringBackoff(t *testing.T) {
	r := NewRetry(RetryConfig{MaxRetries: 3, InitialBackoff: time.Second, MaxBackoff: time.Second})
	ctx, cancel := context.WithCancel(context.Background())

	attempts, err := r.Execute(ctx, func(int) error {
		cancel()
		return ErrUnavailable
	})

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRetry_CustomChecker(t *testing.T) {
	cfg := fastConfig(2)
	cfg.RetryableChecker = func(error) bool { return true }
	r := NewRetry(cfg)

	attempts, err := r.Execute(context.Background(), func(int) error { return errors.New("anything") })

	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
}

func TestRetry_CalculateBackoff(t *testing.T) {
	r := NewRetry(RetryConfig{
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2.0,
	})

	assert.Equal(t, 100*time.Millisecond, r.calculateBackoff(0))
	assert.Equal(t, 200*time.Millisecond, r.calculateBackoff(1))
	assert.Equal(t, 400*time.Millisecond, r.calculateBackoff(2))
	assert.Equal(t, time.Second, r.calculateBackoff(10))
}

func TestRetry_JitterStaysInBounds(t *testing.T) {
	r := NewRetry(RetryConfig{
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
		JitterFraction:    0.1,
	})

	for i := 0; i < 100; i++ {
		b := r.calculateBackoff(0)
		assert.GreaterOrEqual(t, b, 90*time.Millisecond)
		assert.LessOrEqual(t, b, 110*time.Millisecond)
	}
}

func TestNewRetry_NormalizesConfig(t *testing.T) {
	r := NewRetry(RetryConfig{MaxRetries: -1, JitterFraction: 3})
	cfg := r.Config()

	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, DefaultRetryConfig().InitialBackoff, cfg.InitialBackoff)
	assert.Equal(t, DefaultRetryConfig().JitterFraction, cfg.JitterFraction)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestRetryPreset(t *testing.T) {
	tests := []struct {
		name        string
		wantOK      bool
		wantRetries int
	}{
		{"fast", true, 2},
		{"Standard", true, DefaultRetryConfig().MaxRetries},
		{" persistent ", true, 5},
		{"eager", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, ok := RetryPreset(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantRetries, cfg.MaxRetries)
		})
	}
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		category  ErrorCategory
		transient bool
	}{
		{"nil", nil, ErrorCategoryUnknown, false},
		{"canceled", context.Canceled, ErrorCategoryCanceled, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ErrorCategoryTimeout, true},
		{"rate limited", ErrRateLimited, ErrorCategoryRateLimit, true},
		{"unavailable", ErrUnavailable, ErrorCategoryServerError, true},
		{"429", &StatusError{Code: 429}, ErrorCategoryRateLimit, true},
		{"503", fmt.Errorf("wrap: %w", &StatusError{Code: 503}), ErrorCategoryServerError, true},
		{"400", &StatusError{Code: 400}, ErrorCategoryClientError, false},
		{"net error", timeoutErr{}, ErrorCategoryNetwork, true},
		{"refused string", errors.New("dial tcp: Connection Refused"), ErrorCategoryNetwork, true},
		{"plain", errors.New("bad prompt"), ErrorCategoryUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.category, CategorizeError(tt.err))
			assert.Equal(t, tt.transient, IsTransient(tt.err))
		})
	}
}

func TestErrorCategory_String(t *testing.T) {
	assert.Equal(t, "rate_limit", ErrorCategoryRateLimit.String())
	assert.Equal(t, "unknown", ErrorCategory(99).String())
}
