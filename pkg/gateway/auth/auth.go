package auth

import (
	"net/http"
	"strings"
)

// ParseBearer extracts a bearer token from the Authorization header. The
// scheme is matched case-insensitively.
func ParseBearer(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// TokenFromRequest returns the session credential from the Authorization
// header, falling back to the token query parameter. Browsers cannot set
// headers on a websocket upgrade, so the query form is the common case.
func TokenFromRequest(r *http.Request) (string, bool) {
	if token, ok := ParseBearer(r); ok {
		return token, true
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	return token, token != ""
}
