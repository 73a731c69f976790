package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vango-go/vai-interview/pkg/gateway/auth"
)

type tokenOptions struct {
	flow         string
	secret       string
	issuer       string
	ttl          time.Duration
	sessionID    string
	tenantID     string
	interviewID  string
	invitationID string
	candidateID  string
	userID       string
}

func newTokenCmd(stdout io.Writer) *cobra.Command {
	var opts tokenOptions
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a session credential for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, cred, err := mintToken(opts)
			if err != nil {
				return err
			}
			id := cred.Identity()
			fmt.Fprintf(cmd.ErrOrStderr(), "session_id=%s interview_id=%s flow=%s\n", id.SessionID, id.InterviewID, cred.Flow())
			_, err = fmt.Fprintln(stdout, token)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.flow, "flow", string(auth.FlowEmbed), "credential flow: embed or web")
	f.StringVar(&opts.secret, "secret", "", "HS256 secret (default $INTERVIEW_CREDENTIAL_SECRET)")
	f.StringVar(&opts.issuer, "issuer", "", "issuer claim (default $INTERVIEW_CREDENTIAL_ISSUER or vai-interview)")
	f.DurationVar(&opts.ttl, "ttl", 15*time.Minute, "credential lifetime")
	f.StringVar(&opts.sessionID, "session", "", "session id (default: random)")
	f.StringVar(&opts.tenantID, "tenant", "", "tenant id")
	f.StringVar(&opts.interviewID, "interview", "", "interview id")
	f.StringVar(&opts.invitationID, "invitation", "", "invitation id (embed flow)")
	f.StringVar(&opts.candidateID, "candidate", "", "candidate id (embed flow, optional)")
	f.StringVar(&opts.userID, "user", "", "user id (web flow)")
	return cmd
}

func mintToken(opts tokenOptions) (string, auth.Credential, error) {
	secret := opts.secret
	if secret == "" {
		secret = strings.TrimSpace(os.Getenv("INTERVIEW_CREDENTIAL_SECRET"))
	}
	if secret == "" {
		return "", nil, fmt.Errorf("--secret or INTERVIEW_CREDENTIAL_SECRET is required")
	}
	issuer := opts.issuer
	if issuer == "" {
		issuer = strings.TrimSpace(os.Getenv("INTERVIEW_CREDENTIAL_ISSUER"))
	}
	if issuer == "" {
		issuer = "vai-interview"
	}
	sessionID := opts.sessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var cred auth.Credential
	switch auth.Flow(strings.ToLower(strings.TrimSpace(opts.flow))) {
	case auth.FlowEmbed:
		cred = auth.EmbedInvite{
			SessionID:    sessionID,
			TenantID:     opts.tenantID,
			InterviewID:  opts.interviewID,
			InvitationID: opts.invitationID,
			CandidateID:  opts.candidateID,
		}
	case auth.FlowWeb:
		cred = auth.WebUser{
			SessionID:   sessionID,
			TenantID:    opts.tenantID,
			UserID:      opts.userID,
			InterviewID: opts.interviewID,
		}
	default:
		return "", nil, fmt.Errorf("unknown flow %q (want embed or web)", opts.flow)
	}

	token, err := auth.NewIssuer([]byte(secret), issuer, opts.ttl).Mint(cred)
	if err != nil {
		return "", nil, fmt.Errorf("mint credential: %w", err)
	}
	return token, cred, nil
}
