package notification

import (
	"sync"
	"time"
)

// PushRateLimiter is a token bucket in front of push providers so a burst of
// failing saves cannot flood a chat channel.
type PushRateLimiter struct {
	rate       int // tokens per interval
	interval   time.Duration
	tokens     int
	maxTokens  int
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewPushRateLimiter allows perMinute sends on average with bursts up to burst
func NewPushRateLimiter(perMinute, burst int) *PushRateLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	if burst <= 0 {
		burst = 5
	}
	return &PushRateLimiter{
		rate:       perMinute,
		interval:   time.Minute,
		tokens:     burst,
		maxTokens:  burst,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// Allow consumes a token if one is available
func (rl *PushRateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	elapsed := now.Sub(rl.lastRefill)
	refill := int(float64(rl.rate) * (elapsed.Seconds() / rl.interval.Seconds()))
	if refill > 0 {
		rl.tokens = min(rl.maxTokens, rl.tokens+refill)
		rl.lastRefill = now
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}
