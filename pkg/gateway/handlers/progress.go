package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/vango-go/vai-interview/pkg/core"
	"github.com/vango-go/vai-interview/pkg/gateway/auth"
	"github.com/vango-go/vai-interview/pkg/gateway/live/sessions"
	"github.com/vango-go/vai-interview/pkg/gateway/mw"
	"github.com/vango-go/vai-interview/pkg/gateway/sse"
	"github.com/vango-go/vai-interview/pkg/store"
)

const defaultProgressPollInterval = time.Second

// keepaliveEvery is how many quiet polls pass before a keepalive comment.
const keepaliveEvery = 15

// ProgressHandler streams a live session's progress as server-sent events.
// It is mounted on a pattern with an {id} wildcard.
type ProgressHandler struct {
	Logger       *slog.Logger
	Sessions     *sessions.Tracker
	Verifier     *auth.Verifier
	PollInterval time.Duration
}

type progressEvent struct {
	SessionID     string    `json:"sessionId"`
	InterviewID   string    `json:"interviewId"`
	CandidateID   string    `json:"candidateId,omitempty"`
	QuestionIndex int       `json:"questionIndex"`
	RunningScore  float64   `json:"runningScore"`
	Status        string    `json:"status"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type closedEvent struct {
	SessionID string `json:"sessionId"`
}

func (h ProgressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodGet {
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrInvalidRequest, Message: "method not allowed", Code: "method_not_allowed"}, http.StatusMethodNotAllowed)
		return
	}
	cred, err := verifyCredential(h.Verifier, r)
	if err != nil {
		writeErrorJSON(w, reqID, err)
		return
	}

	sessionID := r.PathValue("id")
	handle, ok := h.Sessions.Lookup(sessionID)
	if !ok || !canWatch(cred, sessionID, handle) {
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrNotFound, Message: "no live session with that id", Param: "id"}, http.StatusNotFound)
		return
	}

	stream, err := sse.New(w)
	if err != nil {
		writeErrorJSON(w, reqID, err)
		return
	}

	logger := loggerOrDefault(h.Logger)
	interval := h.PollInterval
	if interval <= 0 {
		interval = defaultProgressPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last store.Progress
	sent := false
	quiet := 0
	for {
		current, live := h.Sessions.Lookup(sessionID)
		if !live {
			_ = stream.Send("closed", closedEvent{SessionID: sessionID})
			return
		}
		if current.Progress != nil {
			p := current.Progress()
			if !sent || p != last {
				if err := stream.Send("progress", toProgressEvent(sessionID, p)); err != nil {
					logger.Debug("progress stream write failed", "session_id", sessionID, "request_id", reqID, "error", err)
					return
				}
				last, sent, quiet = p, true, 0
			} else {
				quiet++
				if quiet >= keepaliveEvery {
					if err := stream.Comment("keepalive"); err != nil {
						return
					}
					quiet = 0
				}
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// canWatch allows credentials of the session's tenant. Embed credentials
// only see their own session.
func canWatch(cred auth.Credential, sessionID string, h sessions.Handle) bool {
	id := cred.Identity()
	if id.TenantID == "" || id.TenantID != h.TenantID {
		return false
	}
	if cred.Flow() == auth.FlowEmbed && id.SessionID != sessionID {
		return false
	}
	return true
}

func toProgressEvent(sessionID string, p store.Progress) progressEvent {
	if p.SessionID != "" {
		sessionID = p.SessionID
	}
	return progressEvent{
		SessionID:     sessionID,
		InterviewID:   p.InterviewID,
		CandidateID:   p.CandidateID,
		QuestionIndex: p.QuestionIndex,
		RunningScore:  p.RunningScore,
		Status:        p.Status,
		UpdatedAt:     p.UpdatedAt,
	}
}
