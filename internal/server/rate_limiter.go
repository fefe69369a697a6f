package server

import (
	"sync"
	"time"
)

// rateLimiter is a token bucket holding up to capacity tokens and refilling
// capacity tokens per interval.
type rateLimiter struct {
	mu        sync.Mutex
	tokens    float64
	capacity  float64
	rate      float64
	lastCheck time.Time
}

func newRateLimiter(capacity int, interval time.Duration, now time.Time) *rateLimiter {
	if capacity <= 0 {
		capacity = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	rate := float64(capacity) / interval.Seconds()
	if rate <= 0 {
		rate = float64(capacity)
	}

	return &rateLimiter{
		tokens:    float64(capacity),
		capacity:  float64(capacity),
		rate:      rate,
		lastCheck: now,
	}
}

func (rl *rateLimiter) allow(now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	elapsed := now.Sub(rl.lastCheck).Seconds()
	rl.lastCheck = now

	if elapsed > 0 {
		rl.tokens += elapsed * rl.rate
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
	}

	if rl.tokens < 1 {
		return false
	}

	rl.tokens--
	return true
}

func (rl *rateLimiter) idleSince(now time.Time) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return now.Sub(rl.lastCheck)
}

// senderLimiter keeps one token bucket per sender id. Buckets untouched for
// idleAfter have refilled completely and are dropped.
type senderLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*rateLimiter
	capacity  int
	interval  time.Duration
	idleAfter time.Duration
	lastPrune time.Time
	now       func() time.Time
}

func newSenderLimiter(cfg RateLimitConfig, now func() time.Time) *senderLimiter {
	if now == nil {
		now = time.Now
	}

	idleAfter := time.Duration(cfg.Burst) * cfg.RefillInterval
	if idleAfter < time.Minute {
		idleAfter = time.Minute
	}

	return &senderLimiter{
		buckets:   make(map[string]*rateLimiter),
		capacity:  cfg.Burst,
		interval:  cfg.RefillInterval,
		idleAfter: idleAfter,
		lastPrune: now(),
		now:       now,
	}
}

func (l *senderLimiter) allow(sender string) bool {
	now := l.now()

	l.mu.Lock()
	if now.Sub(l.lastPrune) >= l.idleAfter {
		l.pruneLocked(now)
	}
	bucket, ok := l.buckets[sender]
	if !ok {
		bucket = newRateLimiter(l.capacity, l.interval, now)
		l.buckets[sender] = bucket
	}
	l.mu.Unlock()

	return bucket.allow(now)
}

func (l *senderLimiter) pruneLocked(now time.Time) {
	for sender, bucket := range l.buckets {
		if bucket.idleSince(now) >= l.idleAfter {
			delete(l.buckets, sender)
		}
	}
	l.lastPrune = now
}

func (l *senderLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
