package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy computes the delay before the next attempt
type BackoffStrategy interface {
	// NextDelay returns the delay to wait after the given attempt number
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements exponential backoff with jitter
type ExponentialBackoff struct {
	// BaseDelay is the initial delay duration
	BaseDelay time.Duration
	// MaxDelay is the maximum delay duration
	MaxDelay time.Duration
	// Multiplier is the factor by which delay increases
	Multiplier float64
	// JitterFactor adds randomness to avoid thundering herd (0.0 to 1.0)
	JitterFactor float64
}

// DefaultExponentialBackoff returns a backoff with sensible defaults
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay calculates the next delay with exponential backoff and jitter
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
		// Random value between -jitter and +jitter
		randomJitter := (rand.Float64() * 2 * jitter) - jitter
		delay += randomJitter
	}

	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// LinearBackoff implements linear backoff strategy
type LinearBackoff struct {
	// BaseDelay is the delay after the first attempt
	BaseDelay time.Duration
	// MaxDelay is the maximum delay duration
	MaxDelay time.Duration
	// Increment is the amount to increase delay by each attempt
	Increment time.Duration
	// JitterFactor adds randomness (0.0 to 1.0)
	JitterFactor float64
}

// DefaultLinearBackoff returns a linear backoff with sensible defaults
func DefaultLinearBackoff() *LinearBackoff {
	return &LinearBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     30 * time.Second,
		Increment:    1 * time.Second,
		JitterFactor: 0.1,
	}
}

// NextDelay calculates the next delay with linear backoff
func (lb *LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(lb.BaseDelay + lb.Increment*time.Duration(attempt-1))

	if delay > float64(lb.MaxDelay) {
		delay = float64(lb.MaxDelay)
	}

	if lb.JitterFactor > 0 {
		jitter := delay * lb.JitterFactor
		randomJitter := (rand.Float64() * 2 * jitter) - jitter
		delay += randomJitter
	}

	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait waits for the specified duration or until context is cancelled
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
