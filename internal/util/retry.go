package util

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig controls RetryWithBackoff
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RandomizeFactor float64
	// RetryableFunc decides whether an error is worth another attempt;
	// nil means IsRetryableError
	RetryableFunc func(error) bool
	// OnRetry, when set, is called before each wait
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultRetryConfig suits reads against a remote prediction API
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    time.Second,
		MaxDelay:        30 * time.Second,
		Multiplier:      2,
		RandomizeFactor: 0.3,
	}
}

// IsRetryableError treats everything but a done context as transient
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// RetryWithBackoff calls fn until it succeeds, returns a non-retryable error,
// runs out of attempts or ctx is done. The returned error wraps the last
// error from fn, or ctx.Err() when the wait was interrupted.
func RetryWithBackoff(ctx context.Context, config *RetryConfig, operation string, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	retryable := config.RetryableFunc
	if retryable == nil {
		retryable = IsRetryableError
	}
	attempts := max(config.MaxAttempts, 1)

	var err error
	delay := config.InitialDelay
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !retryable(err) {
			return fmt.Errorf("%s failed (non-retryable): %w", operation, err)
		}
		if attempt == attempts {
			return fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, err)
		}

		wait := jitter(delay, config.RandomizeFactor, config.MaxDelay)
		if config.OnRetry != nil {
			config.OnRetry(attempt, wait, err)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s cancelled after %d attempts: %w", operation, attempt, ctx.Err())
		case <-timer.C:
		}

		delay = min(time.Duration(float64(delay)*config.Multiplier), config.MaxDelay)
	}
}

// jitter spreads base by +/- factor, clamped to [1ms, limit]
func jitter(base time.Duration, factor float64, limit time.Duration) time.Duration {
	spread := float64(base) * factor
	d := time.Duration(float64(base) - spread + rand.Float64()*2*spread)
	if limit > 0 && d > limit {
		d = limit
	}
	return max(d, time.Millisecond)
}
