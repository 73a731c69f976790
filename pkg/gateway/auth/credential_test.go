package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

var testSecret = []byte("test-secret")

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestMintVerify_EmbedInvite(t *testing.T) {
	iss := NewIssuer(testSecret, "interview-gateway", time.Minute)
	token, err := iss.Mint(EmbedInvite{SessionID: "s1", TenantID: "t1", InterviewID: "iv1", InvitationID: "inv1"})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	cred, err := NewVerifier(testSecret, "interview-gateway").Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	invite, ok := cred.(EmbedInvite)
	if !ok {
		t.Fatalf("cred=%T, want EmbedInvite", cred)
	}
	if invite.InvitationID != "inv1" || invite.Expiry.IsZero() {
		t.Fatalf("invite=%+v", invite)
	}
	id := cred.Identity()
	if id.SessionID != "s1" || id.TenantID != "t1" || id.InterviewID != "iv1" {
		t.Fatalf("identity=%+v", id)
	}
	if id.CandidateID != "invite:inv1" {
		t.Fatalf("candidate=%q, want invite:inv1", id.CandidateID)
	}
}

func TestMintVerify_WebUser(t *testing.T) {
	iss := NewIssuer(testSecret, "", 0)
	token, err := iss.Mint(WebUser{SessionID: "s2", TenantID: "t2", UserID: "u2", InterviewID: "iv2"})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	cred, err := NewVerifier(testSecret, "").Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if cred.Flow() != FlowWeb {
		t.Fatalf("flow=%q, want web", cred.Flow())
	}
	if got := cred.Identity().CandidateID; got != "u2" {
		t.Fatalf("candidate=%q, want u2", got)
	}
}

func TestVerify_Rejects(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	iss := NewIssuer(testSecret, "gw", time.Minute)
	iss.now = fixedClock(now)
	token, err := iss.Mint(WebUser{SessionID: "s", TenantID: "t", UserID: "u", InterviewID: "i"})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	t.Run("empty", func(t *testing.T) {
		if _, err := NewVerifier(testSecret, "gw").Verify("  "); !errors.Is(err, ErrMissingCredential) {
			t.Fatalf("err=%v, want ErrMissingCredential", err)
		}
	})
	t.Run("wrong secret", func(t *testing.T) {
		v := NewVerifier([]byte("other"), "gw")
		v.now = fixedClock(now)
		if _, err := v.Verify(token); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("err=%v, want ErrInvalidCredential", err)
		}
	})
	t.Run("wrong issuer", func(t *testing.T) {
		v := NewVerifier(testSecret, "someone-else")
		v.now = fixedClock(now)
		if _, err := v.Verify(token); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("err=%v, want ErrInvalidCredential", err)
		}
	})
	t.Run("expired", func(t *testing.T) {
		v := NewVerifier(testSecret, "gw")
		v.now = fixedClock(now.Add(2 * time.Minute))
		if _, err := v.Verify(token); !errors.Is(err, ErrExpiredCredential) {
			t.Fatalf("err=%v, want ErrExpiredCredential", err)
		}
	})
	t.Run("garbage", func(t *testing.T) {
		if _, err := NewVerifier(testSecret, "gw").Verify("not.a.jwt"); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("err=%v, want ErrInvalidCredential", err)
		}
	})
}

func TestMint_ValidatesFields(t *testing.T) {
	iss := NewIssuer(testSecret, "gw", time.Minute)
	if _, err := iss.Mint(EmbedInvite{SessionID: "s", TenantID: "t", InterviewID: "i"}); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("err=%v, want ErrInvalidCredential for missing invitation", err)
	}
	if _, err := iss.Mint(nil); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("err=%v, want ErrMissingCredential", err)
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/v1/interview/live?token=q-token", nil)
	if tok, ok := TokenFromRequest(r); !ok || tok != "q-token" {
		t.Fatalf("query token=%q ok=%v", tok, ok)
	}
	r.Header.Set("Authorization", "Bearer h-token")
	if tok, ok := TokenFromRequest(r); !ok || tok != "h-token" {
		t.Fatalf("header token=%q ok=%v, want header to win", tok, ok)
	}

	r = httptest.NewRequest("GET", "/v1/interview/live", nil)
	r.Header.Set("Authorization", "Basic abc")
	if _, ok := TokenFromRequest(r); ok {
		t.Fatal("expected no token")
	}
}

func TestParseBearer(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc", want: "abc", ok: true},
		{header: "bearer  abc ", want: "abc", ok: true},
		{header: "Bearer", ok: false},
		{header: "Bearer   ", ok: false},
		{header: "Token abc", ok: false},
		{header: "", ok: false},
	}
	for _, tc := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		got, ok := ParseBearer(r)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseBearer(%q)=%q,%v, want %q,%v", tc.header, got, ok, tc.want, tc.ok)
		}
	}
}
