// Package server implements a token bucket rate limiter for per-connection
// throttling of inbound chat events.
package server

import (
	"sync"
	"time"
)

// rateLimiter holds up to burst tokens and earns one back every refill/burst.
type rateLimiter struct {
	mu       sync.Mutex
	burst    float64
	perToken time.Duration
	tokens   float64
	last     time.Time
	now      func() time.Time
}

func newRateLimiter(burst int, refill time.Duration) *rateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if refill <= 0 {
		refill = time.Second
	}

	return &rateLimiter{
		burst:    float64(burst),
		perToken: refill / time.Duration(burst),
		tokens:   float64(burst),
		last:     time.Now(),
		now:      time.Now,
	}
}

// allow takes one token if available.
func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}

func (rl *rateLimiter) refill() {
	now := rl.now()
	elapsed := now.Sub(rl.last)
	rl.last = now
	if elapsed <= 0 || rl.perToken <= 0 {
		return
	}

	rl.tokens += float64(elapsed) / float64(rl.perToken)
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
}
