package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/vango-go/vai-interview/pkg/gateway/lifecycle"
	"github.com/vango-go/vai-interview/pkg/gateway/live/sessions"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// Pinger is satisfied by stores that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type ReadyHandler struct {
	Store     Pinger
	Lifecycle *lifecycle.Lifecycle
	Sessions  *sessions.Tracker
	Timeout   time.Duration
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK             bool       `json:"ok"`
		Draining       bool       `json:"draining"`
		DrainingSince  *time.Time `json:"draining_since,omitempty"`
		ActiveSessions int        `json:"active_sessions"`
		Issues         []string   `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 2)
	draining := h.Lifecycle.IsDraining()
	var since *time.Time
	if draining {
		issues = append(issues, "draining")
		if t := h.Lifecycle.DrainingSince(); !t.IsZero() {
			since = &t
		}
	}
	if h.Store != nil {
		timeout := h.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		err := h.Store.Ping(ctx)
		cancel()
		if err != nil {
			issues = append(issues, "store unreachable")
		}
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:             ok,
		Draining:       draining,
		DrainingSince:  since,
		ActiveSessions: h.Sessions.Count(),
		Issues:         issues,
	})
}
