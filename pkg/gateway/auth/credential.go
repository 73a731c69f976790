package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingCredential = errors.New("auth: missing session credential")
	ErrInvalidCredential = errors.New("auth: invalid session credential")
	ErrExpiredCredential = errors.New("auth: session credential expired")
)

// Flow names how a session credential was obtained.
type Flow string

const (
	// FlowEmbed is a credential minted from an invitation link embedded on a
	// customer site.
	FlowEmbed Flow = "embed"
	// FlowWeb is a credential minted for a signed-in candidate.
	FlowWeb Flow = "web"
)

// Identity is what every session needs regardless of flow.
type Identity struct {
	SessionID   string
	TenantID    string
	CandidateID string
	InterviewID string
}

// Credential is a verified session credential: EmbedInvite or WebUser.
type Credential interface {
	Flow() Flow
	Identity() Identity
	ExpiresAt() time.Time
	validate() error
}

// EmbedInvite is a credential born from an invitation code.
type EmbedInvite struct {
	SessionID    string
	TenantID     string
	InterviewID  string
	InvitationID string
	// CandidateID is optional; invitations may be anonymous until submission.
	CandidateID string
	Expiry      time.Time
}

func (c EmbedInvite) Flow() Flow           { return FlowEmbed }
func (c EmbedInvite) ExpiresAt() time.Time { return c.Expiry }

func (c EmbedInvite) Identity() Identity {
	candidate := c.CandidateID
	if candidate == "" {
		candidate = "invite:" + c.InvitationID
	}
	return Identity{
		SessionID:   c.SessionID,
		TenantID:    c.TenantID,
		CandidateID: candidate,
		InterviewID: c.InterviewID,
	}
}

func (c EmbedInvite) validate() error {
	return requireFields(map[string]string{
		"sid": c.SessionID,
		"tid": c.TenantID,
		"iid": c.InterviewID,
		"inv": c.InvitationID,
	})
}

// WebUser is a credential born from an authenticated web session.
type WebUser struct {
	SessionID   string
	TenantID    string
	UserID      string
	InterviewID string
	Expiry      time.Time
}

func (c WebUser) Flow() Flow           { return FlowWeb }
func (c WebUser) ExpiresAt() time.Time { return c.Expiry }

func (c WebUser) Identity() Identity {
	return Identity{
		SessionID:   c.SessionID,
		TenantID:    c.TenantID,
		CandidateID: c.UserID,
		InterviewID: c.InterviewID,
	}
}

func (c WebUser) validate() error {
	return requireFields(map[string]string{
		"sid": c.SessionID,
		"tid": c.TenantID,
		"sub": c.UserID,
		"iid": c.InterviewID,
	})
}

func requireFields(fields map[string]string) error {
	var missing []string
	for _, name := range []string{"sid", "tid", "sub", "iid", "inv"} {
		v, ok := fields[name]
		if ok && strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidCredential, strings.Join(missing, ", "))
	}
	return nil
}

// claims is the JWT wire form shared by both flows.
type claims struct {
	Flow         Flow   `json:"flow"`
	SessionID    string `json:"sid"`
	TenantID     string `json:"tid"`
	InterviewID  string `json:"iid,omitempty"`
	InvitationID string `json:"inv,omitempty"`
	CandidateID  string `json:"cid,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 session credentials.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewVerifier creates a verifier for tokens signed with secret by issuer.
func NewVerifier(secret []byte, issuer string) *Verifier {
	return &Verifier{secret: secret, issuer: issuer, now: time.Now}
}

// Verify parses and validates a token into its flow-specific credential.
func (v *Verifier) Verify(token string) (Credential, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingCredential
	}

	var c claims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredCredential
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	var expiry time.Time
	if c.ExpiresAt != nil {
		expiry = c.ExpiresAt.Time
	}

	var cred Credential
	switch c.Flow {
	case FlowEmbed:
		cred = EmbedInvite{
			SessionID:    c.SessionID,
			TenantID:     c.TenantID,
			InterviewID:  c.InterviewID,
			InvitationID: c.InvitationID,
			CandidateID:  c.CandidateID,
			Expiry:       expiry,
		}
	case FlowWeb:
		cred = WebUser{
			SessionID:   c.SessionID,
			TenantID:    c.TenantID,
			UserID:      c.Subject,
			InterviewID: c.InterviewID,
			Expiry:      expiry,
		}
	default:
		return nil, fmt.Errorf("%w: unknown flow %q", ErrInvalidCredential, c.Flow)
	}
	if err := cred.validate(); err != nil {
		return nil, err
	}
	return cred, nil
}

// Issuer mints session credentials. The gateway only verifies; minting is
// used by the token command and tests.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer. ttl <= 0 defaults to 15 minutes.
func NewIssuer(secret []byte, issuer string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Issuer{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}
}

// Mint signs cred. Its Expiry is ignored; the issuer's ttl applies.
func (i *Issuer) Mint(cred Credential) (string, error) {
	if cred == nil {
		return "", ErrMissingCredential
	}
	if err := cred.validate(); err != nil {
		return "", err
	}
	now := i.now()
	c := claims{
		Flow: cred.Flow(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	switch v := cred.(type) {
	case EmbedInvite:
		c.SessionID, c.TenantID, c.InterviewID = v.SessionID, v.TenantID, v.InterviewID
		c.InvitationID, c.CandidateID = v.InvitationID, v.CandidateID
	case WebUser:
		c.SessionID, c.TenantID, c.InterviewID = v.SessionID, v.TenantID, v.InterviewID
		c.Subject = v.UserID
	default:
		return "", fmt.Errorf("%w: unsupported credential %T", ErrInvalidCredential, cred)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
}
