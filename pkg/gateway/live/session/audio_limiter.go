package session

import (
	"time"

	"github.com/vango-go/vai-interview/pkg/core/live"
)

// audioLimiter bounds inbound audio to a multiple of real time for the
// negotiated format. Tokens are bytes.
type audioLimiter struct {
	now        func() time.Time
	rate       int64
	capacity   int64
	tokens     int64
	lastRefill time.Time
}

func newAudioLimiter(now func() time.Time, format live.AudioConfig, realtimeFactor float64, burst time.Duration) *audioLimiter {
	if realtimeFactor <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	if burst <= 0 {
		burst = time.Second
	}
	rate := int64(float64(format.BytesPerSecond()) * realtimeFactor)
	if rate <= 0 {
		return nil
	}
	capacity := rate * int64(burst) / int64(time.Second)
	if capacity < rate/10 {
		capacity = rate / 10
	}
	return &audioLimiter{
		now:        now,
		rate:       rate,
		capacity:   capacity,
		tokens:     capacity,
		lastRefill: now(),
	}
}

func (l *audioLimiter) Allow(frameBytes int) bool {
	if l == nil {
		return true
	}
	l.refill()
	if frameBytes < 0 {
		frameBytes = 0
	}
	if l.tokens < int64(frameBytes) {
		return false
	}
	l.tokens -= int64(frameBytes)
	return true
}

func (l *audioLimiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill)
	if elapsed <= 0 {
		return
	}
	add := (elapsed.Nanoseconds() * l.rate) / int64(time.Second)
	if add <= 0 {
		return
	}
	l.tokens += add
	if l.tokens > l.capacity {
		l.tokens = l.capacity
	}
	l.lastRefill = now
}
