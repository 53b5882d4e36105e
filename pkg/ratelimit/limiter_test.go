package ratelimit

import (
	"testing"
	"time"
)

func TestSlidingWindowAdmitsUpToLimit(t *testing.T) {
	sw := NewSlidingWindow(3, time.Second)

	for i := 0; i < 3; i++ {
		if !sw.Allow() {
			t.Errorf("request %d should be admitted", i+1)
		}
	}

	if sw.Allow() {
		t.Error("request over the limit should be denied")
	}
}

func TestSlidingWindowSlides(t *testing.T) {
	sw := NewSlidingWindow(2, 100*time.Millisecond)

	sw.Allow()
	sw.Allow()
	if sw.Allow() {
		t.Fatal("window should be full")
	}

	time.Sleep(150 * time.Millisecond)
	if !sw.Allow() {
		t.Error("request should be admitted after the window slides")
	}
}

func TestSlidingWindowReset(t *testing.T) {
	sw := NewSlidingWindow(1, time.Minute)

	sw.Allow()
	if sw.Allow() {
		t.Fatal("window should be full")
	}

	sw.Reset()
	if !sw.Allow() {
		t.Error("request should be admitted after reset")
	}
}

func TestSlidingWindowWaitBlocksUntilAdmitted(t *testing.T) {
	sw := NewSlidingWindow(1, 50*time.Millisecond)

	sw.Allow()

	start := time.Now()
	sw.Wait()
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("Wait returned after %v, expected it to block for the window", elapsed)
	}
}
