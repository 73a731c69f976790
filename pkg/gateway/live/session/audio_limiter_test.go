package session

import (
	"testing"
	"time"

	"github.com/vango-go/vai-interview/pkg/core/live"
)

func TestAudioLimiter_AllowsBurstThenDenies(t *testing.T) {
	now := time.Date(2026, 2, 26, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	// 16 kHz mono 16-bit is 32000 B/s; factor 1 with a 1s burst holds 32000 bytes.
	lim := newAudioLimiter(clock, live.DefaultInputAudioConfig(), 1, time.Second)
	for i := 0; i < 10; i++ {
		if !lim.Allow(3200) {
			t.Fatalf("expected allow at i=%d", i)
		}
	}
	if lim.Allow(3200) {
		t.Fatalf("expected deny once burst is spent")
	}

	now = now.Add(100 * time.Millisecond)
	if !lim.Allow(3200) {
		t.Fatalf("expected allow after 100ms refill")
	}
	if lim.Allow(1) {
		t.Fatalf("expected deny again without more time")
	}
}

func TestAudioLimiter_CapsAtCapacity(t *testing.T) {
	now := time.Date(2026, 2, 26, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	lim := newAudioLimiter(clock, live.DefaultInputAudioConfig(), 2, time.Second)
	now = now.Add(time.Hour)
	if !lim.Allow(64000) {
		t.Fatalf("expected allow up to capacity")
	}
	if lim.Allow(1) {
		t.Fatalf("idle time must not grow tokens past capacity")
	}
}

func TestAudioLimiter_DisabledIsNil(t *testing.T) {
	if lim := newAudioLimiter(nil, live.DefaultInputAudioConfig(), 0, time.Second); lim != nil {
		t.Fatalf("expected nil limiter when factor is 0")
	}
	var lim *audioLimiter
	if !lim.Allow(1 << 20) {
		t.Fatalf("nil limiter must allow")
	}
}
