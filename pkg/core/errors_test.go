package core

import (
	"errors"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{
			err:  &Error{Type: ErrInvalidRequest, Message: "invalid origin header"},
			want: "invalid_request_error: invalid origin header",
		},
		{
			err:  &Error{Type: ErrOverloaded, Message: "gateway is draining", Code: "draining"},
			want: "overloaded_error: gateway is draining (code: draining)",
		},
	}
	for _, tc := range tests {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("Error()=%q, want %q", got, tc.want)
		}
	}
}

func TestConstructors(t *testing.T) {
	if e := NewPermissionError("x"); e.Type != ErrPermission || e.Message != "x" {
		t.Fatalf("NewPermissionError=%+v", e)
	}
	if e := NewRateLimitError("x"); e.Type != ErrRateLimit || e.Message != "x" {
		t.Fatalf("NewRateLimitError=%+v", e)
	}
}

func TestNewProviderError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewProviderError("cartesia", cause)
	if err.Type != ErrProvider {
		t.Fatalf("Type=%v, want %v", err.Type, ErrProvider)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("provider error does not unwrap to its cause")
	}
	if err.Message != "cartesia: connection refused" {
		t.Fatalf("Message=%q", err.Message)
	}
}

func TestError_Temporary(t *testing.T) {
	tests := []struct {
		typ  ErrorType
		want bool
	}{
		{ErrRateLimit, true},
		{ErrOverloaded, true},
		{ErrProvider, true},
		{ErrAuthentication, false},
		{ErrPermission, false},
		{ErrAPI, false},
	}
	for _, tc := range tests {
		if got := (&Error{Type: tc.typ}).Temporary(); got != tc.want {
			t.Fatalf("%s Temporary()=%v, want %v", tc.typ, got, tc.want)
		}
	}
}
