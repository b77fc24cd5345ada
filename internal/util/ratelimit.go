package util

import (
	"fmt"
	"sync"
	"time"
)

const rateLimitWindow = time.Minute

// RateLimiter allows at most Max events per key in any one-minute window
type RateLimiter struct {
	Max int
	now func() time.Time

	mu       sync.Mutex
	requests map[string][]time.Time
}

// NewRateLimiter creates a limiter allowing max events per minute per key
func NewRateLimiter(max int) *RateLimiter {
	return &RateLimiter{
		Max:      max,
		now:      time.Now,
		requests: make(map[string][]time.Time),
	}
}

// RateLimitError reports how long the caller has to wait
type RateLimitError struct {
	Max        int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: maximum %d submissions per minute, retry in %v", e.Max, e.RetryAfter.Round(time.Second))
}

// Allow records an event for key, or returns a *RateLimitError when the key
// has already used its allowance for the current window.
func (l *RateLimiter) Allow(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-rateLimitWindow)

	recent := l.requests[key][:0]
	for _, t := range l.requests[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.Max {
		l.requests[key] = recent
		return &RateLimitError{
			Max:        l.Max,
			RetryAfter: recent[0].Add(rateLimitWindow).Sub(now),
		}
	}

	l.requests[key] = append(recent, now)
	return nil
}

// Cleanup drops keys with no events in the current window
func (l *RateLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-rateLimitWindow)
	for key, times := range l.requests {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(l.requests, key)
		}
	}
}
