package interview

import (
	"sync"
	"time"
)

// TimerConfig configures the per-question countdown.
type TimerConfig struct {
	// Budget is the default time allowed per question. Default: 300s
	Budget time.Duration

	// TickInterval is how often remaining time is reported. Default: 30s
	TickInterval time.Duration
}

// DefaultTimerConfig returns the standard countdown settings.
func DefaultTimerConfig() TimerConfig {
	return TimerConfig{
		Budget:       300 * time.Second,
		TickInterval: 30 * time.Second,
	}
}

func (c TimerConfig) withDefaults() TimerConfig {
	def := DefaultTimerConfig()
	if c.Budget <= 0 {
		c.Budget = def.Budget
	}
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	return c
}

// TimerEvent is delivered to the owning session for every tick and once on expiry.
type TimerEvent struct {
	Generation    uint64
	QuestionIndex int
	Remaining     time.Duration
	Expired       bool
}

// RemainingSec rounds the remaining time to whole seconds, never below zero.
func (e TimerEvent) RemainingSec() int {
	if e.Remaining <= 0 {
		return 0
	}
	return int((e.Remaining + time.Second/2) / time.Second)
}

// Timer is the single scheduled task for one active question. Ticks and the
// deadline share one goroutine so a stopped timer cannot leave a stray
// interval behind.
type Timer struct {
	generation    uint64
	questionIndex int
	deadline      time.Time

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// StartTimer arms a countdown for the question at questionIndex. Events are
// sent to out tagged with generation; budget <= 0 uses cfg.Budget.
func StartTimer(cfg TimerConfig, generation uint64, questionIndex int, budget time.Duration, out chan<- TimerEvent) *Timer {
	cfg = cfg.withDefaults()
	if budget <= 0 {
		budget = cfg.Budget
	}
	t := &Timer{
		generation:    generation,
		questionIndex: questionIndex,
		deadline:      time.Now().Add(budget),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go t.run(budget, cfg.TickInterval, out)
	return t
}

// Generation returns the generation this timer was started with.
func (t *Timer) Generation() uint64 {
	if t == nil {
		return 0
	}
	return t.generation
}

// Remaining returns max(0, deadline-now).
func (t *Timer) Remaining() time.Duration {
	if t == nil {
		return 0
	}
	d := time.Until(t.deadline)
	if d < 0 {
		return 0
	}
	return d
}

// Stop cancels the timer and waits for its goroutine to exit. Once Stop
// returns no further events from this timer will be sent. Safe to call more
// than once and on a nil timer.
func (t *Timer) Stop() {
	if t == nil {
		return
	}
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.done
}

func (t *Timer) run(budget, tick time.Duration, out chan<- TimerEvent) {
	defer close(t.done)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	expire := time.NewTimer(budget)
	defer expire.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if !t.emit(out, TimerEvent{
				Generation:    t.generation,
				QuestionIndex: t.questionIndex,
				Remaining:     t.Remaining(),
			}) {
				return
			}
		case <-expire.C:
			t.emit(out, TimerEvent{
				Generation:    t.generation,
				QuestionIndex: t.questionIndex,
				Expired:       true,
			})
			return
		}
	}
}

func (t *Timer) emit(out chan<- TimerEvent, ev TimerEvent) bool {
	select {
	case <-t.stop:
		return false
	default:
	}
	select {
	case out <- ev:
		return true
	case <-t.stop:
		return false
	}
}
