package server

import (
	"log/slog"
	"net/http"

	"github.com/vango-go/vai-interview/pkg/gateway/auth"
	"github.com/vango-go/vai-interview/pkg/gateway/config"
	"github.com/vango-go/vai-interview/pkg/gateway/handlers"
	"github.com/vango-go/vai-interview/pkg/gateway/lifecycle"
	"github.com/vango-go/vai-interview/pkg/gateway/live/session"
	"github.com/vango-go/vai-interview/pkg/gateway/live/sessions"
	"github.com/vango-go/vai-interview/pkg/gateway/mw"
	"github.com/vango-go/vai-interview/pkg/gateway/ratelimit"
	"github.com/vango-go/vai-interview/pkg/store"
)

const (
	// LivePath is where candidates open their interview websocket.
	LivePath = "/v1/interview/live"
	// ProgressPattern streams a live session's progress as server-sent events.
	ProgressPattern = "GET /v1/interview/sessions/{id}/progress"
)

// Deps are the collaborators the gateway serves sessions with.
type Deps struct {
	Interviews store.InterviewSource
	Sink       store.ResponseSink
	Evaluator  session.Evaluator
	STT        session.STTProvider
	TTS        session.TTSProvider
	// Store is pinged by /readyz when set.
	Store handlers.Pinger
}

type Server struct {
	cfg       config.Config
	logger    *slog.Logger
	mux       *http.ServeMux
	deps      Deps
	lifecycle *lifecycle.Lifecycle
	sessions  *sessions.Tracker
	verifier  *auth.Verifier
	limiter   *ratelimit.Limiter
}

func New(cfg config.Config, logger *slog.Logger, deps Deps) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		mux:       http.NewServeMux(),
		deps:      deps,
		lifecycle: &lifecycle.Lifecycle{},
		sessions:  sessions.NewTracker(),
		verifier:  auth.NewVerifier([]byte(cfg.CredentialSecret), cfg.CredentialIssuer),
	}

	limits := ratelimit.Config{
		ConnectRPS:   cfg.TenantConnectRPS,
		ConnectBurst: cfg.TenantConnectBurst,
		MaxSessions:  cfg.TenantMaxSessions,
	}
	if limits.Enabled() {
		s.limiter = ratelimit.New(limits)
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{
		Store:     s.deps.Store,
		Lifecycle: s.lifecycle,
		Sessions:  s.sessions,
	})
	s.mux.Handle(LivePath, handlers.LiveHandler{
		Config:     s.cfg,
		Logger:     s.logger,
		Lifecycle:  s.lifecycle,
		Sessions:   s.sessions,
		Verifier:   s.verifier,
		Interviews: s.deps.Interviews,
		Sink:       s.deps.Sink,
		Evaluator:  s.deps.Evaluator,
		STT:        s.deps.STT,
		TTS:        s.deps.TTS,
		Limiter:    s.limiter,
	})
	s.mux.Handle(ProgressPattern, handlers.ProgressHandler{
		Logger:       s.logger,
		Sessions:     s.sessions,
		Verifier:     s.verifier,
		PollInterval: s.cfg.ProgressPoll,
	})
	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// Lifecycle exposes the draining flag shared with the handlers.
func (s *Server) Lifecycle() *lifecycle.Lifecycle { return s.lifecycle }

// Sessions exposes the live session registry for draining.
func (s *Server) Sessions() *sessions.Tracker { return s.sessions }
