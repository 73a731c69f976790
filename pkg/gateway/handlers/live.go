package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/vai-interview/pkg/core"
	"github.com/vango-go/vai-interview/pkg/core/interview"
	"github.com/vango-go/vai-interview/pkg/core/live"
	"github.com/vango-go/vai-interview/pkg/gateway/auth"
	"github.com/vango-go/vai-interview/pkg/gateway/config"
	"github.com/vango-go/vai-interview/pkg/gateway/lifecycle"
	"github.com/vango-go/vai-interview/pkg/gateway/live/session"
	"github.com/vango-go/vai-interview/pkg/gateway/live/sessions"
	"github.com/vango-go/vai-interview/pkg/gateway/mw"
	"github.com/vango-go/vai-interview/pkg/gateway/ratelimit"
	"github.com/vango-go/vai-interview/pkg/store"
)

// LiveHandler handles /v1/interview/live websocket sessions.
type LiveHandler struct {
	Config     config.Config
	Logger     *slog.Logger
	Lifecycle  *lifecycle.Lifecycle
	Sessions   *sessions.Tracker
	Verifier   *auth.Verifier
	Interviews store.InterviewSource
	Sink       store.ResponseSink
	Evaluator  session.Evaluator
	STT        session.STTProvider
	TTS        session.TTSProvider
	// Limiter is optional; nil admits every tenant.
	Limiter *ratelimit.Limiter
}

func (h LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodGet {
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrInvalidRequest, Message: "method not allowed", Code: "method_not_allowed"}, http.StatusMethodNotAllowed)
		return
	}
	if h.Lifecycle.IsDraining() {
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrOverloaded, Message: "gateway is draining", Code: "draining"}, 529)
		return
	}
	if !h.Config.OriginAllowed(r.Header.Get("Origin")) {
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrPermission, Message: "origin is not allowed", Param: "Origin"}, http.StatusForbidden)
		return
	}
	cred, err := verifyCredential(h.Verifier, r)
	if err != nil {
		writeErrorJSON(w, reqID, err)
		return
	}
	decision := h.Limiter.AcquireSession(cred.Identity().TenantID, time.Now())
	if !decision.Allowed {
		h.logger().Info("live session rate limited",
			"request_id", reqID,
			"tenant_id", cred.Identity().TenantID,
			"reason", decision.Reason,
		)
		w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfter))
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrRateLimit, Message: "too many live sessions for tenant", Code: "rate_limited"}, http.StatusTooManyRequests)
		return
	}
	defer decision.Permit.Release()

	// Origin was checked above with a JSON rejection; the upgrader must not
	// repeat it with a bare 403.
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	logger := h.logger()
	s, err := session.New(session.Dependencies{
		Conn:       conn,
		Logger:     logger,
		STT:        h.STT,
		TTS:        h.TTS,
		Evaluator:  h.Evaluator,
		Interviews: h.Interviews,
		Sink:       h.Sink,
		Credential: cred,
		RequestID:  reqID,
		Config:     sessionConfig(h.Config),
	})
	if err != nil {
		logger.Error("live session init failed", "request_id", reqID, "error", err)
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session unavailable"))
		return
	}

	unregister := h.Sessions.Register(s.ID(), sessions.Handle{
		TenantID: cred.Identity().TenantID,
		Cancel:   s.Cancel,
		Notify:   s.Notify,
		Progress: s.Progress,
	})
	defer unregister()

	if err := s.Run(); err != nil {
		logger.Warn("live session ended with error", "session_id", s.ID(), "request_id", reqID, "error", err)
	}
}

func verifyCredential(v *auth.Verifier, r *http.Request) (auth.Credential, error) {
	token, ok := auth.TokenFromRequest(r)
	if !ok {
		return nil, auth.ErrMissingCredential
	}
	if v == nil {
		return nil, auth.ErrInvalidCredential
	}
	return v.Verify(token)
}

func (h LiveHandler) logger() *slog.Logger {
	return loggerOrDefault(h.Logger)
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

func sessionConfig(cfg config.Config) session.Config {
	return session.Config{
		HandshakeTimeout:    cfg.HandshakeTimeout,
		PingInterval:        cfg.WSPingInterval,
		WriteTimeout:        cfg.WSWriteTimeout,
		ReadTimeout:         cfg.WSReadTimeout,
		MaxMessageBytes:     cfg.MaxMessageBytes,
		MaxSessionDuration:  cfg.MaxSessionDuration,
		AudioRealtimeFactor: cfg.AudioRealtimeCap,
		Timer: interview.TimerConfig{
			Budget:       cfg.QuestionBudget,
			TickInterval: cfg.TickInterval,
		},
		VAD: live.VADConfig{
			EnterThreshold: cfg.VADEnter,
			ExitThreshold:  cfg.VADExit,
			HistorySize:    cfg.VADHistory,
		},
		STT: session.STTConfig{
			Model:    cfg.STTModel,
			Language: cfg.STTLanguage,
		},
		TTS: session.TTSConfig{
			Voice:      cfg.TTSVoiceID,
			Language:   cfg.STTLanguage,
			SampleRate: cfg.TTSSampleRate,
		},
	}
}
