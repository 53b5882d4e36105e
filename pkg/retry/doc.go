// Package retry provides backoff and retry logic for handling transient
// failures in network operations, particularly CivitAI API calls and
// media downloads.
//
// Features:
//   - Multiple backoff strategies (exponential, linear, constant)
//   - Jitter to avoid thundering herd problems
//   - Context support for cancellation
//   - Configurable retry predicates driven by typed errors
//
// MaxAttempts counts every attempt including the first, so MaxAttempts: 3
// means at most two retries after the initial try.
//
// Basic usage:
//
//	// Simple retry with defaults
//	err := retry.Do(func() error {
//		return client.Ping()
//	}, nil)
//
//	// Custom configuration
//	cfg := &retry.Config{
//		MaxAttempts: 5,
//		Backoff: &retry.ExponentialBackoff{
//			BaseDelay:    2 * time.Second,
//			MaxDelay:     30 * time.Second,
//			Multiplier:   2.0,
//			JitterFactor: 0.1,
//		},
//		RetryIf: retry.DefaultRetryIf,
//		Logger:  logger.GetLogger(),
//	}
//	body, err := retry.DoWithResult(func() ([]byte, error) {
//		return client.DownloadFile(ctx, url)
//	}, cfg)
//
// The default predicate retries network, rate-limit and server errors and
// gives up immediately on auth, not-found, parsing and write errors.
package retry
