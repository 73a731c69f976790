// Package sessions keeps the set of live interview sessions served by this
// process so they can be observed and drained on shutdown.
package sessions

import (
	"context"
	"sync"

	"github.com/vango-go/vai-interview/pkg/store"
)

// Handle is how the tracker reaches a running session.
type Handle struct {
	TenantID string
	Cancel   func()
	Notify   func(code, message string) error
	Progress func() store.Progress
}

// Tracker is safe for concurrent use. The zero value is not; use NewTracker.
// A nil *Tracker tracks nothing.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*entry
	live    sync.WaitGroup
}

type entry struct {
	handle Handle
	left   sync.Once
}

func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]*entry)}
}

// Register adds a session and returns its idempotent unregister func. A
// session already registered under the same id is cancelled and removed, so
// the newest connection for a session id wins.
func (t *Tracker) Register(sessionID string, h Handle) (unregister func()) {
	if t == nil {
		return func() {}
	}
	e := &entry{handle: h}

	t.mu.Lock()
	prev := t.entries[sessionID]
	t.entries[sessionID] = e
	t.live.Add(1)
	t.mu.Unlock()

	if prev != nil {
		if prev.handle.Cancel != nil {
			prev.handle.Cancel()
		}
		t.leave(sessionID, prev)
	}
	return func() { t.leave(sessionID, e) }
}

func (t *Tracker) leave(sessionID string, e *entry) {
	e.left.Do(func() {
		t.mu.Lock()
		if t.entries[sessionID] == e {
			delete(t.entries, sessionID)
		}
		t.mu.Unlock()
		t.live.Done()
	})
}

// Count is the number of registered sessions.
func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Lookup returns the newest handle registered under sessionID.
func (t *Tracker) Lookup(sessionID string) (Handle, bool) {
	if t == nil {
		return Handle{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[sessionID]; ok {
		return e.handle, true
	}
	return Handle{}, false
}

// handles copies the registered handles so callbacks run without the lock.
func (t *Tracker) handles() []Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Handle, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.handle)
	}
	return out
}

// NotifyAll sends a best-effort message to every session and reports how
// many were reached.
func (t *Tracker) NotifyAll(code, message string) (sent int) {
	if t == nil {
		return 0
	}
	for _, h := range t.handles() {
		if h.Notify == nil {
			continue
		}
		_ = h.Notify(code, message)
		sent++
	}
	return sent
}

// CancelAll cancels every session. Sessions unregister themselves as they
// wind down.
func (t *Tracker) CancelAll() (canceled int) {
	if t == nil {
		return 0
	}
	for _, h := range t.handles() {
		if h.Cancel == nil {
			continue
		}
		h.Cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every registered session has unregistered. It returns
// false if ctx ends first.
func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}
	done := make(chan struct{})
	go func() {
		t.live.Wait()
		close(done)
	}()
	if ctx == nil {
		<-done
		return true
	}
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
