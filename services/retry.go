package services

import (
	"context"
	"strings"
	"time"

	"github.com/vicradon/media-fetcher/models"
)

// RetryPolicy configures WithRetry.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	IsRetryable func(error) bool
	// Sleep waits between attempts. Nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy retries rate-limited failures three times starting at 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		IsRetryable: IsRateLimited,
	}
}

// WithRetry runs op until it succeeds, fails with a non-retryable error, or
// MaxAttempts is reached. The wait before attempt n+1 is BaseDelay * 2^n.
// op must be safe to repeat.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	isRetryable := policy.IsRetryable
	if isRetryable == nil {
		isRetryable = IsRateLimited
	}
	sleep := policy.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	attempts := max(policy.MaxAttempts, 1)

	var (
		result T
		err    error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		result, err = op(ctx)
		if err == nil {
			return result, nil
		}
		if !isRetryable(err) {
			return result, err
		}
		if attempt < attempts-1 {
			if serr := sleep(ctx, policy.BaseDelay*time.Duration(1<<attempt)); serr != nil {
				return result, err
			}
		}
	}
	return result, err
}

// IsRateLimited reports whether err signals provider rate limiting.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if models.IsKind(err, models.KindRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return containsAny(msg, "429", "rate limit", "rate-limit", "too many requests")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
