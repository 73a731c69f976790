// Package apierror turns Go errors into the gateway's JSON error envelope.
package apierror

import (
	"context"
	"errors"
	"net/http"

	"github.com/vango-go/vai-interview/pkg/core"
	"github.com/vango-go/vai-interview/pkg/gateway/auth"
	"github.com/vango-go/vai-interview/pkg/store"
)

type Envelope struct {
	Error *core.Error `json:"error"`
}

// sentinel maps a well-known error onto a fixed public body.
type sentinel struct {
	err     error
	typ     core.ErrorType
	message string
	code    string
	status  int
}

// Checked in order; the first errors.Is match wins.
var sentinels = []sentinel{
	{err: context.DeadlineExceeded, typ: core.ErrAPI, message: "request timeout", status: http.StatusGatewayTimeout},
	{err: context.Canceled, typ: core.ErrAPI, message: "request cancelled", code: "cancelled", status: http.StatusRequestTimeout},
	{err: auth.ErrMissingCredential, typ: core.ErrAuthentication, message: "missing session credential", code: "missing_credential", status: http.StatusUnauthorized},
	{err: auth.ErrExpiredCredential, typ: core.ErrAuthentication, message: "session credential expired", code: "expired_credential", status: http.StatusUnauthorized},
	{err: auth.ErrInvalidCredential, typ: core.ErrAuthentication, message: "invalid session credential", code: "invalid_credential", status: http.StatusUnauthorized},
	{err: store.ErrInterviewNotFound, typ: core.ErrNotFound, message: "interview not found", status: http.StatusNotFound},
}

// FromError maps err onto the canonical error body and its HTTP status.
// Unrecognized errors become a generic internal error; their text is never
// exposed.
func FromError(err error, requestID string) (*core.Error, int) {
	if err == nil {
		return nil, http.StatusOK
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr != nil {
		out := *coreErr
		out.RequestID = requestID
		return &out, StatusFor(coreErr.Type)
	}

	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return &core.Error{Type: s.typ, Message: s.message, Code: s.code, RequestID: requestID}, s.status
		}
	}

	return &core.Error{Type: core.ErrAPI, Message: "internal error", RequestID: requestID}, http.StatusInternalServerError
}

// StatusFor is the HTTP status a canonical error type is served with.
func StatusFor(t core.ErrorType) int {
	switch t {
	case core.ErrInvalidRequest:
		return http.StatusBadRequest
	case core.ErrAuthentication:
		return http.StatusUnauthorized
	case core.ErrPermission:
		return http.StatusForbidden
	case core.ErrNotFound:
		return http.StatusNotFound
	case core.ErrRateLimit:
		return http.StatusTooManyRequests
	case core.ErrOverloaded:
		return 529
	case core.ErrProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
