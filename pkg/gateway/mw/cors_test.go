package mw

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vango-go/vai-interview/pkg/core"
	"github.com/vango-go/vai-interview/pkg/gateway/config"
)

func corsConfig(origins ...string) config.Config {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return config.Config{AllowedOrigins: allowed}
}

func TestCORS_SimpleRequests(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		origin     string
		wantOrigin string
	}{
		{name: "empty allow-list", origin: "http://localhost:3000"},
		{name: "no origin header", origins: []string{"https://app.example"}},
		{name: "unlisted origin", origins: []string{"https://app.example"}, origin: "https://evil.example"},
		{name: "listed origin", origins: []string{"https://app.example"}, origin: "https://app.example", wantOrigin: "https://app.example"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			h := CORS(corsConfig(tc.origins...), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if !called {
				t.Fatalf("next handler not called")
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
				t.Fatalf("Access-Control-Allow-Origin=%q, want %q", got, tc.wantOrigin)
			}
			if tc.wantOrigin != "" && rr.Header().Get("Access-Control-Expose-Headers") != corsExposedHeaders {
				t.Fatalf("Access-Control-Expose-Headers=%q", rr.Header().Get("Access-Control-Expose-Headers"))
			}
		})
	}
}

func TestCORS_PreflightAllowed(t *testing.T) {
	h := CORS(corsConfig("https://app.example"), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("next handler called for preflight")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/v1/interview/sessions/s1/progress", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status=%d, want 204", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Headers"); got != corsAllowedHeaders {
		t.Fatalf("Access-Control-Allow-Headers=%q", got)
	}
	if got := rr.Header().Get("Access-Control-Max-Age"); got != corsMaxAge {
		t.Fatalf("Access-Control-Max-Age=%q", got)
	}
}

func TestCORS_PreflightRejectedAsJSON(t *testing.T) {
	h := RequestID(CORS(corsConfig("https://app.example"), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("next handler called for rejected preflight")
	})))

	req := httptest.NewRequest(http.MethodOptions, "/v1/interview/live", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status=%d, want 403", rr.Code)
	}
	var env struct {
		Error core.Error `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal %q: %v", rr.Body.String(), err)
	}
	if env.Error.Type != core.ErrPermission || env.Error.RequestID == "" {
		t.Fatalf("error=%+v, want permission_error with request_id", env.Error)
	}
}
