package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vango-go/vai-interview/pkg/core"
	"github.com/vango-go/vai-interview/pkg/gateway/lifecycle"
	"github.com/vango-go/vai-interview/pkg/gateway/live/sessions"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_OK(t *testing.T) {
	rr := httptest.NewRecorder()
	HealthHandler{}.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestReadyHandler(t *testing.T) {
	tests := []struct {
		name       string
		store      Pinger
		draining   bool
		wantStatus int
	}{
		{name: "no store", wantStatus: http.StatusOK},
		{name: "store up", store: pingerFunc(func(context.Context) error { return nil }), wantStatus: http.StatusOK},
		{name: "store down", store: pingerFunc(func(context.Context) error { return errors.New("refused") }), wantStatus: http.StatusServiceUnavailable},
		{name: "draining", draining: true, wantStatus: http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lc := &lifecycle.Lifecycle{}
			lc.SetDraining(tc.draining)
			h := ReadyHandler{Store: tc.store, Lifecycle: lc, Sessions: sessions.NewTracker()}

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rr.Code != tc.wantStatus {
				t.Fatalf("status=%d, want %d body=%q", rr.Code, tc.wantStatus, rr.Body.String())
			}
			var resp map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if ok, _ := resp["ok"].(bool); ok != (tc.wantStatus == http.StatusOK) {
				t.Fatalf("ok=%v, want %v", ok, tc.wantStatus == http.StatusOK)
			}
			if _, has := resp["draining_since"]; has != tc.draining {
				t.Fatalf("draining_since present=%v, want %v", has, tc.draining)
			}
		})
	}
}

func TestNotFoundHandler_JSON(t *testing.T) {
	rr := httptest.NewRecorder()
	NotFoundHandler{}.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := decodeErrorType(t, rr.Body.Bytes()); got != core.ErrNotFound {
		t.Fatalf("type=%q, want %q", got, core.ErrNotFound)
	}
}
