package ratelimit

import (
	"sync"
	"time"
)

// Limiter paces outgoing API requests.
type Limiter interface {
	// Allow reports whether a request may proceed right now
	Allow() bool
	// Wait blocks until the limiter admits another request
	Wait()
	// Reset clears the limiter state
	Reset()
}

// SlidingWindow admits at most maxRequests within any window of the
// configured size. It is safe for concurrent use.
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	mu          sync.Mutex
}

// NewSlidingWindow creates a sliding window limiter.
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
	}
}

// Allow records and admits a request if the window has room.
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	sw.evict(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return true
	}

	return false
}

// Wait blocks until a request is admitted.
func (sw *SlidingWindow) Wait() {
	for !sw.Allow() {
		sw.mu.Lock()
		var sleep time.Duration
		if len(sw.requests) > 0 {
			sleep = sw.windowSize - time.Since(sw.requests[0])
		}
		sw.mu.Unlock()

		if sleep <= 0 {
			sleep = 10 * time.Millisecond
		}
		time.Sleep(sleep)
	}
}

// Reset clears all recorded requests.
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

// evict drops requests that have left the window.
func (sw *SlidingWindow) evict(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && sw.requests[i].Before(cutoff) {
		i++
	}

	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}
