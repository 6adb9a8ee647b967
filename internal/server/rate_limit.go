package server

import (
	"sync"
	"time"
)

// PrintRateLimiter restricts how frequently a single client
// can send print payloads via WebSocket.
type PrintRateLimiter struct {
	mu        sync.Mutex
	attempts  map[string][]time.Time
	maxPerMin int
	now       func() time.Time
}

// NewPrintRateLimiter creates a limiter allowing maxPerMinute prints per client.
// A non-positive limit disables limiting.
func NewPrintRateLimiter(maxPerMinute int) *PrintRateLimiter {
	return &PrintRateLimiter{
		attempts:  make(map[string][]time.Time),
		maxPerMin: maxPerMinute,
		now:       time.Now,
	}
}

// Allow returns true if the client has not exceeded the rate limit.
func (rl *PrintRateLimiter) Allow(clientAddr string) bool {
	if rl.maxPerMin <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-time.Minute)

	recent := make([]time.Time, 0, rl.maxPerMin)
	for _, t := range rl.attempts[clientAddr] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= rl.maxPerMin {
		rl.attempts[clientAddr] = recent
		return false
	}

	rl.attempts[clientAddr] = append(recent, now)
	return true
}
