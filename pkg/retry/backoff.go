package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	errs "postmedia/pkg/errors"
)

// BackoffStrategy returns the delay before retry number attempt (1-based).
// Attempt 0 never waits.
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows the delay by Multiplier per attempt, capped at
// MaxDelay, then spreads it by +/- JitterFactor.
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// DefaultExponentialBackoff keeps a few retries well inside a single page
// fetch timeout.
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    250 * time.Millisecond,
		MaxDelay:     4 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		jitter := delay * eb.JitterFactor
		delay += rand.Float64()*2*jitter - jitter
	}
	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// ConstantBackoff waits the same Delay before every retry
type ConstantBackoff struct {
	Delay time.Duration
}

func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait sleeps for delay or until ctx is done
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrorTypeBackoff picks a backoff strategy from the failure class of the
// previous attempt.
type ErrorTypeBackoff struct {
	TransportBackoff   BackoffStrategy
	ThrottleBackoff    BackoffStrategy // 429
	ServerErrorBackoff BackoffStrategy // 5xx
	DefaultBackoff     BackoffStrategy
}

// NewErrorTypeBackoff returns the delays the fetch client retries with.
// Throttled pages wait longest; a dropped connection is retried almost
// immediately.
func NewErrorTypeBackoff() *ErrorTypeBackoff {
	return &ErrorTypeBackoff{
		TransportBackoff: &ExponentialBackoff{
			BaseDelay:    200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.2,
		},
		ThrottleBackoff: &ExponentialBackoff{
			BaseDelay:    2 * time.Second,
			MaxDelay:     8 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.3,
		},
		ServerErrorBackoff: &ExponentialBackoff{
			BaseDelay:    500 * time.Millisecond,
			MaxDelay:     4 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		DefaultBackoff: DefaultExponentialBackoff(),
	}
}

// For returns the strategy matching err
func (etb *ErrorTypeBackoff) For(err error) BackoffStrategy {
	var typed *errs.Error
	if !errors.As(err, &typed) {
		return etb.DefaultBackoff
	}
	switch {
	case typed.Type == errs.ErrorTypeTransport:
		return etb.TransportBackoff
	case typed.Type == errs.ErrorTypeStatus && typed.Code == 429:
		return etb.ThrottleBackoff
	case typed.Type == errs.ErrorTypeStatus && typed.Code >= 500:
		return etb.ServerErrorBackoff
	default:
		return etb.DefaultBackoff
	}
}
