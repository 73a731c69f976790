package interview

import (
	"testing"
	"time"
)

func recvTimerEvent(t *testing.T, ch <-chan TimerEvent, timeout time.Duration) TimerEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for timer event")
		return TimerEvent{}
	}
}

func TestTimer_TicksThenExpires(t *testing.T) {
	out := make(chan TimerEvent, 16)
	cfg := TimerConfig{Budget: 200 * time.Millisecond, TickInterval: 60 * time.Millisecond}
	tm := StartTimer(cfg, 7, 2, 0, out)
	defer tm.Stop()

	var ticks int
	last := time.Duration(1<<62 - 1)
	for {
		ev := recvTimerEvent(t, out, 2*time.Second)
		if ev.Generation != 7 || ev.QuestionIndex != 2 {
			t.Fatalf("event=%+v, want generation 7 index 2", ev)
		}
		if ev.Expired {
			if ev.RemainingSec() != 0 {
				t.Fatalf("expired event remaining=%d", ev.RemainingSec())
			}
			break
		}
		ticks++
		if ev.Remaining > last {
			t.Fatalf("remaining increased: %v after %v", ev.Remaining, last)
		}
		last = ev.Remaining
	}
	if ticks < 2 {
		t.Fatalf("ticks=%d, want at least 2 before expiry", ticks)
	}
}

func TestTimer_BudgetOverride(t *testing.T) {
	out := make(chan TimerEvent, 4)
	tm := StartTimer(TimerConfig{Budget: time.Hour, TickInterval: time.Hour}, 1, 0, 30*time.Millisecond, out)
	defer tm.Stop()

	ev := recvTimerEvent(t, out, time.Second)
	if !ev.Expired {
		t.Fatalf("event=%+v, want expiry from override budget", ev)
	}
}

func TestTimer_StopSilencesTimer(t *testing.T) {
	out := make(chan TimerEvent, 16)
	tm := StartTimer(TimerConfig{Budget: 100 * time.Millisecond, TickInterval: 20 * time.Millisecond}, 1, 0, 0, out)
	tm.Stop()
	tm.Stop()

	// Drain anything emitted before Stop returned, then expect silence.
	for len(out) > 0 {
		<-out
	}
	select {
	case ev := <-out:
		t.Fatalf("event after Stop: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestTimer_StopUnblocksPendingSend(t *testing.T) {
	out := make(chan TimerEvent) // nobody reads
	tm := StartTimer(TimerConfig{Budget: time.Second, TickInterval: 5 * time.Millisecond}, 1, 0, 0, out)
	time.Sleep(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		tm.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Stop blocked on a pending send")
	}
}

// A replaced timer never delivers after its successor starts: every event
// read after the swap belongs to the new generation.
func TestTimer_ReplacementIsMonotonic(t *testing.T) {
	out := make(chan TimerEvent, 64)
	cfg := TimerConfig{Budget: time.Second, TickInterval: 5 * time.Millisecond}

	first := StartTimer(cfg, 1, 0, 0, out)
	time.Sleep(40 * time.Millisecond)
	first.Stop()
	for len(out) > 0 {
		<-out
	}
	second := StartTimer(cfg, 2, 1, 0, out)
	defer second.Stop()

	for i := 0; i < 5; i++ {
		ev := recvTimerEvent(t, out, time.Second)
		if ev.Generation != 2 || ev.QuestionIndex != 1 {
			t.Fatalf("event %d=%+v, want only generation 2", i, ev)
		}
	}
}

func TestTimerEvent_RemainingSec(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{in: -time.Second, want: 0},
		{in: 0, want: 0},
		{in: 269999 * time.Millisecond, want: 270},
		{in: 1400 * time.Millisecond, want: 1},
	}
	for _, tt := range tests {
		if got := (TimerEvent{Remaining: tt.in}).RemainingSec(); got != tt.want {
			t.Fatalf("RemainingSec(%v)=%d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNilTimerIsSafe(t *testing.T) {
	var tm *Timer
	tm.Stop()
	if tm.Remaining() != 0 || tm.Generation() != 0 {
		t.Fatalf("nil timer accessors returned non-zero values")
	}
}
