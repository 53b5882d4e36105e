// Package ratelimit paces requests against the CivitAI API.
//
// Large collections produce thousands of TRPC calls in a tight loop; the
// sliding window limiter keeps the request rate under the API's threshold
// so runs don't degrade into 429 retry storms.
//
// All limiters implement the Limiter interface:
//   - Allow() bool - check if a request is admitted right now
//   - Wait() - block until a request is admitted
//   - Reset() - clear the limiter state
//
// Usage:
//
//	// At most 120 requests in any one-minute window
//	limiter := ratelimit.NewSlidingWindow(120, time.Minute)
//
//	// Block until allowed, then proceed with the request
//	limiter.Wait()
package ratelimit
