package console

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Tyrowin/linecast/internal/config"
)

func TestRateLimiterRefill(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := newRateLimiter(config.RateLimitConfig{Burst: 2, RefillInterval: time.Second})
	rl.now = func() time.Time { return now }
	rl.refilled = now

	assert.True(t, rl.allow())
	assert.True(t, rl.allow())
	assert.False(t, rl.allow(), "burst exhausted")

	now = now.Add(500 * time.Millisecond)
	assert.True(t, rl.allow(), "half the interval refills one token")
	assert.False(t, rl.allow())

	now = now.Add(time.Hour)
	assert.True(t, rl.allow())
	assert.True(t, rl.allow())
	assert.False(t, rl.allow(), "refill is capped at capacity")
}

func TestRateLimiterDefaults(t *testing.T) {
	rl := newRateLimiter(config.RateLimitConfig{})
	assert.Equal(t, float64(1), rl.burst)
	assert.Equal(t, time.Second, rl.perToken)
}

func TestOriginPolicy(t *testing.T) {
	p := newOriginPolicy([]string{" HTTP://Localhost:8080 ", "not a url", ""}, nil)
	assert.False(t, p.allowAll)
	assert.Len(t, p.allowed, 1)

	_, ok := p.allowed["http://localhost:8080"]
	assert.True(t, ok)

	all := newOriginPolicy([]string{"*"}, nil)
	assert.True(t, all.allowAll)
}
