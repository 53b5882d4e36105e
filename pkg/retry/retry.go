package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "civitdl/pkg/errors"
	"civitdl/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func() error

// OperationWithResult is a function that returns a result and might need retrying
type OperationWithResult[T any] func() (T, error)

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the total number of attempts, including the first (0 means unlimited)
	MaxAttempts int
	// Backoff strategy to use
	Backoff BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration)
	// Context for cancellation
	Context context.Context
	// Logger for retry attempts
	Logger logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
		OnRetry:     nil,
		Context:     context.Background(),
		Logger:      logger.GetLogger(),
	}
}

// DefaultRetryIf is the default retry predicate
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}

	// Context errors are never retried
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Default to retrying unknown errors
	return true
}

// Do executes an operation with retry logic
func Do(op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var lastErr error
	attempt := 0

	for {
		attempt++

		if cfg.MaxAttempts > 0 && attempt > cfg.MaxAttempts {
			if cfg.Logger != nil {
				cfg.Logger.ErrorWithFields("max retry attempts exceeded", map[string]interface{}{
					"attempts":   attempt - 1,
					"last_error": lastErr.Error(),
				})
			}
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
		}

		err := op()
		if err == nil {
			if attempt > 1 && cfg.Logger != nil {
				cfg.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}

		lastErr = err

		if !cfg.RetryIf(err) {
			if cfg.Logger != nil {
				cfg.Logger.DebugWithFields("error is not retryable", map[string]interface{}{
					"error": err.Error(),
				})
			}
			return err
		}

		delay := cfg.Backoff.NextDelay(attempt)

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		if cfg.Logger != nil {
			cfg.Logger.WarnWithFields("retrying operation", map[string]interface{}{
				"attempt":      attempt,
				"error":        err.Error(),
				"delay_ms":     delay.Milliseconds(),
				"max_attempts": cfg.MaxAttempts,
			})
		}

		if err := Wait(cfg.Context, delay); err != nil {
			if cfg.Logger != nil {
				cfg.Logger.WarnWithFields("retry cancelled", map[string]interface{}{
					"attempt": attempt,
					"reason":  err.Error(),
				})
			}
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](op OperationWithResult[T], cfg *Config) (T, error) {
	var result T

	err := Do(func() error {
		var opErr error
		result, opErr = op()
		return opErr
	}, cfg)

	return result, err
}
