// Package ratelimit bounds how fast and how many live interview sessions a
// single tenant may open on this process.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

type Config struct {
	// ConnectRPS and ConnectBurst shape session opens per tenant. Either <= 0
	// disables the bucket.
	ConnectRPS   float64
	ConnectBurst int

	// MaxSessions caps concurrent live sessions per tenant. <= 0 is unlimited.
	MaxSessions int

	// Operational bounds for the in-memory map (single-process only).
	MaxEntries int
	EntryTTL   time.Duration
}

// Enabled reports whether any limit is configured.
func (c Config) Enabled() bool {
	return (c.ConnectRPS > 0 && c.ConnectBurst > 0) || c.MaxSessions > 0
}

type Limiter struct {
	cfg Config

	mu sync.Mutex
	m  map[string]*tenantLimiter
}

type tenantLimiter struct {
	mu sync.Mutex

	tb     tokenBucket
	active int

	lastSeen time.Time
}

type tokenBucket struct {
	rps      float64
	capacity float64

	tokens float64
	last   time.Time
}

func New(cfg Config) *Limiter {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10_000
	}
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = 30 * time.Minute
	}
	return &Limiter{
		cfg: cfg,
		m:   make(map[string]*tenantLimiter),
	}
}

// Permit holds one session slot until released. Release is idempotent.
type Permit struct {
	once    sync.Once
	release func()
}

func (p *Permit) Release() {
	if p == nil || p.release == nil {
		return
	}
	p.once.Do(p.release)
}

type Decision struct {
	Allowed bool
	// RetryAfter is a whole-second hint for denied decisions.
	RetryAfter int
	// Reason is "rate" or "concurrency" when denied.
	Reason string
	Permit *Permit
}

// AcquireSession admits one session open for tenant. A nil Limiter admits
// everything.
func (l *Limiter) AcquireSession(tenant string, now time.Time) Decision {
	if l == nil {
		return Decision{Allowed: true, Permit: &Permit{}}
	}
	if tenant == "" {
		tenant = "anonymous"
	}

	tl := l.getOrCreate(tenant, now)
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.lastSeen = now

	if l.cfg.MaxSessions > 0 && tl.active >= l.cfg.MaxSessions {
		return Decision{Allowed: false, RetryAfter: 1, Reason: "concurrency"}
	}
	if l.cfg.ConnectRPS > 0 && l.cfg.ConnectBurst > 0 {
		if ok, retryAfter := tl.allowToken(now, l.cfg.ConnectRPS, l.cfg.ConnectBurst); !ok {
			return Decision{Allowed: false, RetryAfter: retryAfter, Reason: "rate"}
		}
	}

	tl.active++
	return Decision{
		Allowed: true,
		Permit: &Permit{release: func() {
			tl.mu.Lock()
			tl.active--
			tl.mu.Unlock()
		}},
	}
}

// Active returns the number of sessions currently holding a permit for tenant.
func (l *Limiter) Active(tenant string) int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	tl, ok := l.m[tenant]
	l.mu.Unlock()
	if !ok {
		return 0
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.active
}

func (l *Limiter) getOrCreate(tenant string, now time.Time) *tenantLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if tl, ok := l.m[tenant]; ok {
		return tl
	}
	if len(l.m) >= l.cfg.MaxEntries {
		l.gcLocked(now)
	}
	tl := &tenantLimiter{lastSeen: now}
	l.m[tenant] = tl
	return tl
}

// gcLocked drops idle tenants. Tenants with live sessions are kept so their
// permits keep counting against the right entry.
func (l *Limiter) gcLocked(now time.Time) {
	for k, v := range l.m {
		v.mu.Lock()
		idle := v.active == 0 && now.Sub(v.lastSeen) > l.cfg.EntryTTL
		v.mu.Unlock()
		if idle {
			delete(l.m, k)
		}
	}
}

// allowToken must be called with tl.mu held.
func (tl *tenantLimiter) allowToken(now time.Time, rps float64, burst int) (bool, int) {
	capacity := float64(burst)
	if tl.tb.capacity == 0 {
		tl.tb = tokenBucket{
			rps:      rps,
			capacity: capacity,
			tokens:   capacity,
			last:     now,
		}
	}
	tl.tb.rps = rps
	tl.tb.capacity = capacity

	elapsed := now.Sub(tl.tb.last).Seconds()
	if elapsed > 0 {
		tl.tb.tokens = math.Min(tl.tb.capacity, tl.tb.tokens+(elapsed*tl.tb.rps))
		tl.tb.last = now
	}

	if tl.tb.tokens >= 1.0 {
		tl.tb.tokens -= 1.0
		return true, 0
	}

	needed := 1.0 - tl.tb.tokens
	retryAfter := int(math.Ceil(needed / tl.tb.rps))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return false, retryAfter
}
