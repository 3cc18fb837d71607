package unifiedllm

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures retry behavior with exponential backoff.
type RetryPolicy struct {
	MaxRetries        int     // total retry attempts (not counting initial)
	BaseDelay         float64 // initial delay in seconds
	MinDelay          float64 // floor applied to every delay, in seconds
	MaxDelay          float64 // maximum delay between retries
	BackoffMultiplier float64 // exponential backoff factor
	Jitter            bool    // add random jitter to prevent thundering herd

	// ShouldRetry decides whether a failed attempt is retried. Nil means
	// IsRetryable. Cancellation is never retried regardless of the answer.
	ShouldRetry func(err error) bool

	// OnRetry runs before each backoff wait.
	OnRetry func(err error, attempt int, delay time.Duration)

	// wait blocks for d or until ctx is done. Nil means a timer.
	wait func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns the default policy for ad-hoc provider calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        2,
		BaseDelay:         1.0,
		MaxDelay:          60.0,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// GatewayRetryPolicy returns the policy used for gateway queries: ten
// attempts in total, waits of 4s, 4s, 4s, 8s, 16s, 32s, then 60s, and every
// failure retried except cancellation.
//
// retryAuth controls whether an AuthenticationError from the credential chain
// or the gateway is retried like a transport failure.
func GatewayRetryPolicy(retryAuth bool) RetryPolicy {
	return RetryPolicy{
		MaxRetries:        9,
		BaseDelay:         1.0,
		MinDelay:          4.0,
		MaxDelay:          60.0,
		BackoffMultiplier: 2.0,
		ShouldRetry:       retryUnlessFatal(retryAuth),
	}
}

// retryUnlessFatal retries everything except errors whose outcome cannot
// change between attempts.
func retryUnlessFatal(retryAuth bool) func(error) bool {
	return func(err error) bool {
		var (
			cfgErr   *ConfigurationError
			modelErr *UnknownModelError
			authErr  *AuthenticationError
		)
		switch {
		case errors.As(err, &cfgErr), errors.As(err, &modelErr), IsCancellation(err):
			return false
		case errors.As(err, &authErr):
			return retryAuth
		}
		return true
	}
}

// Delay calculates the delay for attempt n (0-indexed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := math.Min(p.BaseDelay*math.Pow(p.BackoffMultiplier, float64(attempt)), p.MaxDelay)
	delay = math.Max(delay, p.MinDelay)
	if p.Jitter {
		// +/- 50% jitter
		delay = delay * (0.5 + rand.Float64()) // rand in [0,1) -> [0.5, 1.5)
	}
	return seconds(delay)
}

func (p RetryPolicy) shouldRetry(err error) bool {
	if p.ShouldRetry != nil {
		return p.ShouldRetry(err)
	}
	return IsRetryable(err)
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.wait != nil {
		return p.wait(ctx, d)
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

// Retry executes fn with the configured retry policy.
// Only errors accepted by the policy are retried; when attempts run out the
// last error is returned as-is.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		if ctx.Err() != nil || IsCancellation(err) {
			return zero, abortError(ctx, err)
		}
		if attempt >= policy.MaxRetries || !policy.shouldRetry(err) {
			return zero, err
		}

		// A Retry-After hint can stretch the wait but never past MaxDelay.
		delay := policy.Delay(attempt)
		if ra := retryAfterOf(err); ra != nil {
			hinted := seconds(math.Min(*ra, policy.MaxDelay))
			if hinted > delay {
				delay = hinted
			}
		}

		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt+1, delay)
		}

		if werr := policy.sleep(ctx, delay); werr != nil {
			return zero, &AbortError{SDKError: SDKError{Message: "request cancelled during retry", Cause: werr}}
		}
	}
}

func abortError(ctx context.Context, err error) error {
	if abort, ok := err.(*AbortError); ok {
		return abort
	}
	cause := ctx.Err()
	if cause == nil {
		cause = err
	}
	return &AbortError{SDKError: SDKError{Message: "request cancelled", Cause: cause}}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
