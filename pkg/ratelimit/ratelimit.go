package ratelimit

import (
	"sync"
	"time"
)

// RateLimiter admits at most maxCalls within any trailing period.
// It never queues or sleeps; callers decide what to do on rejection.
type RateLimiter struct {
	mu         sync.Mutex
	maxCalls   int
	period     time.Duration
	timestamps []time.Time
	now        func() time.Time
}

// NewRateLimiter creates a sliding-window limiter.
// maxCalls: calls admitted per window (e.g. 10)
// period: window length (e.g. 60s)
func NewRateLimiter(maxCalls int, period time.Duration) *RateLimiter {
	if maxCalls <= 0 {
		maxCalls = 1
	}
	return &RateLimiter{
		maxCalls:   maxCalls,
		period:     period,
		timestamps: make([]time.Time, 0, maxCalls),
		now:        time.Now,
	}
}

// WithClock swaps the time source; used by tests.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.now = now
	return rl
}

// Acquire prunes expired timestamps and records the call if under the cap.
func (rl *RateLimiter) Acquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.prune(now)
	if len(rl.timestamps) >= rl.maxCalls {
		return false
	}
	rl.timestamps = append(rl.timestamps, now)
	return true
}

// Usage returns the calls currently inside the window and the cap.
func (rl *RateLimiter) Usage() (used int, limit int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.prune(rl.now())
	return len(rl.timestamps), rl.maxCalls
}

// prune drops timestamps that are period or older. Caller holds mu.
func (rl *RateLimiter) prune(now time.Time) {
	keep := rl.timestamps[:0]
	for _, ts := range rl.timestamps {
		if now.Sub(ts) < rl.period {
			keep = append(keep, ts)
		}
	}
	rl.timestamps = keep
}
