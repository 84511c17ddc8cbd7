package console

import (
	"sync"
	"time"

	"github.com/Tyrowin/linecast/internal/config"
)

// rateLimiter bounds how many commands one observer may submit. Each
// observer starts with Burst commands; one more becomes available every
// RefillInterval/Burst, up to Burst.
type rateLimiter struct {
	mu       sync.Mutex
	burst    float64
	perToken time.Duration
	budget   float64
	refilled time.Time
	now      func() time.Time
}

func newRateLimiter(cfg config.RateLimitConfig) *rateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	interval := cfg.RefillInterval
	if interval <= 0 {
		interval = time.Second
	}

	rl := &rateLimiter{
		burst:    float64(burst),
		perToken: interval / time.Duration(burst),
		budget:   float64(burst),
		now:      time.Now,
	}
	rl.refilled = rl.now()
	return rl
}

// allow spends one command from the budget, if there is one.
func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if since := now.Sub(rl.refilled); since > 0 && rl.perToken > 0 {
		rl.budget = min(rl.burst, rl.budget+float64(since)/float64(rl.perToken))
	}
	rl.refilled = now

	if rl.budget < 1 {
		return false
	}
	rl.budget--
	return true
}
