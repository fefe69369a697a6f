package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	rl := newRateLimiter(3, 3*time.Second, start)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow(start), "token %d", i)
	}
	assert.False(t, rl.allow(start))

	assert.False(t, rl.allow(start.Add(500*time.Millisecond)))
	assert.True(t, rl.allow(start.Add(time.Second)))
	assert.False(t, rl.allow(start.Add(time.Second)))
}

func TestRateLimiter_RefillIsCapped(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	rl := newRateLimiter(2, time.Second, start)

	later := start.Add(time.Hour)
	assert.True(t, rl.allow(later))
	assert.True(t, rl.allow(later))
	assert.False(t, rl.allow(later))
}

func TestSenderLimiter_SeparateBuckets(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newSenderLimiter(RateLimitConfig{Burst: 1, RefillInterval: time.Second}, func() time.Time { return now })

	assert.True(t, l.allow("alice"))
	assert.False(t, l.allow("alice"))
	assert.True(t, l.allow("bob"))
	assert.Equal(t, 2, l.size())
}

func TestSenderLimiter_PrunesIdleBuckets(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newSenderLimiter(RateLimitConfig{Burst: 1, RefillInterval: time.Second}, func() time.Time { return now })

	l.allow("alice")
	l.allow("bob")
	assert.Equal(t, 2, l.size())

	now = now.Add(2 * time.Minute)
	assert.True(t, l.allow("carol"))
	assert.Equal(t, 1, l.size())
}
