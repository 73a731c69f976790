package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/vai-interview/pkg/core/evaluate"
	"github.com/vango-go/vai-interview/pkg/core/interview"
	"github.com/vango-go/vai-interview/pkg/core/live"
	"github.com/vango-go/vai-interview/pkg/core/voice/stt"
	"github.com/vango-go/vai-interview/pkg/gateway/auth"
	"github.com/vango-go/vai-interview/pkg/gateway/live/protocol"
	"github.com/vango-go/vai-interview/pkg/store"
)

const (
	outboundPriorityQueueSize = 8
	defaultOutboundQueueSize  = 256
)

const (
	statusConnected = protocol.StatusConnected
	statusListening = protocol.StatusListening
	statusThinking  = protocol.StatusThinking
	statusSpeaking  = protocol.StatusSpeaking
	statusSubmitted = protocol.StatusSubmitted

	codeInvalidSession = protocol.CodeInvalidSession
	codeInvalidMessage = protocol.CodeInvalidMessage
	codeSTTError       = protocol.CodeSTTError
	codeTTSError       = protocol.CodeTTSError
)

var (
	errBackpressure       = errors.New("live outbound backpressure")
	errHandshakeTimeout   = errors.New("live session: hello not received in time")
	errCredentialExpired  = errors.New("live session: credential expired")
	errInterviewUnusable  = errors.New("live session: interview unavailable")
	errSessionIDMismatch  = errors.New("live session: session id mismatch")
	errMissingConnection  = errors.New("connection is required")
	errMissingInterviews  = errors.New("interview source is required")
	errMissingEvaluator   = errors.New("evaluator is required")
	errMissingCredentials = errors.New("credential is required")
)

// Conn is the subset of *websocket.Conn a session uses.
type Conn interface {
	wsWriter
	ReadMessage() (messageType int, p []byte, err error)
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// Evaluator scores one answer. *evaluate.Step implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, in evaluate.Input) (evaluate.Decision, error)
}

type Config struct {
	HandshakeTimeout    time.Duration
	PingInterval        time.Duration
	WriteTimeout        time.Duration
	ReadTimeout         time.Duration
	MaxMessageBytes     int64
	MaxSessionDuration  time.Duration
	OutboundQueueSize   int
	LoadTimeout         time.Duration
	PersistTimeout      time.Duration
	AudioRealtimeFactor float64
	AudioBurst          time.Duration
	Timer               interview.TimerConfig
	VAD                 live.VADConfig
	STT                 STTConfig
	TTS                 TTSConfig
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.OutboundQueueSize <= 0 {
		c.OutboundQueueSize = defaultOutboundQueueSize
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = 10 * time.Second
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 5 * time.Second
	}
	if c.AudioRealtimeFactor == 0 {
		c.AudioRealtimeFactor = 2
	}
	if c.AudioBurst <= 0 {
		c.AudioBurst = 2 * time.Second
	}
	if c.VAD.Validate() != nil {
		c.VAD = live.DefaultVADConfig()
	}
	if c.STT.Model == "" {
		c.STT.Model = "ink-whisper"
	}
	if c.STT.Language == "" {
		c.STT.Language = "en"
	}
	if c.STT.Encoding == "" {
		c.STT.Encoding = "pcm_s16le"
	}
	return c
}

type Dependencies struct {
	Conn       Conn
	Logger     *slog.Logger
	STT        STTProvider
	TTS        TTSProvider
	Evaluator  Evaluator
	Interviews store.InterviewSource
	Sink       store.ResponseSink
	Credential auth.Credential
	RequestID  string
	Config     Config
	Now        func() time.Time
	// OnClose runs once when the session tears down.
	OnClose func()
}

// Session is one candidate connection. All state below the channels is
// owned by the goroutine running Run; other goroutines only post events.
type Session struct {
	conn       Conn
	logger     *slog.Logger
	stt        STTProvider
	tts        TTSProvider
	evaluator  Evaluator
	interviews store.InterviewSource
	persist    *persister
	identity   auth.Identity
	expiresAt  time.Time
	cfg        Config
	now        func() time.Time
	onClose    func()
	startTime  time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	outboundPriority chan outboundFrame
	outboundNormal   chan outboundFrame
	canceledThrough  atomic.Uint64

	sttOpenCh chan sttOpenResult
	timerCh   chan interview.TimerEvent
	evalCh    chan evalResult
	ttsCh     chan ttsEvent

	closeOnce sync.Once
	sendErr   error

	snapshotMu sync.Mutex
	snapshot   store.Progress

	status         string
	helloDone      bool
	started        bool
	sampleRate     int
	seq            *interview.Sequencer
	score          float64
	answer         string
	questionActive bool
	questionStart  time.Time
	endAfterReply  bool
	turn           uint64

	vad     *live.VAD
	limiter *audioLimiter

	timer    *interview.Timer
	timerGen uint64

	sttStream  STTSession
	sttEvents  <-chan stt.Event
	sttAttempt uint64
	sttOpening bool

	utterance       uint64
	activeUtterance uint64
	ttsCancel       context.CancelFunc
}

type inboundFrame struct {
	messageType int
	data        []byte
	err         error
}

func New(deps Dependencies) (*Session, error) {
	if deps.Conn == nil {
		return nil, errMissingConnection
	}
	if deps.Interviews == nil {
		return nil, errMissingInterviews
	}
	if deps.Evaluator == nil {
		return nil, errMissingEvaluator
	}
	if deps.Credential == nil {
		return nil, errMissingCredentials
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	cfg := deps.Config.withDefaults()
	identity := deps.Credential.Identity()
	logger := deps.Logger.With("session_id", identity.SessionID, "request_id", deps.RequestID)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		conn:             deps.Conn,
		logger:           logger,
		stt:              deps.STT,
		tts:              deps.TTS,
		evaluator:        deps.Evaluator,
		interviews:       deps.Interviews,
		persist:          newPersister(deps.Sink, logger, cfg.PersistTimeout),
		identity:         identity,
		expiresAt:        deps.Credential.ExpiresAt(),
		cfg:              cfg,
		now:              deps.Now,
		onClose:          deps.OnClose,
		startTime:        deps.Now(),
		ctx:              ctx,
		cancel:           cancel,
		outboundPriority: make(chan outboundFrame, outboundPriorityQueueSize),
		outboundNormal:   make(chan outboundFrame, cfg.OutboundQueueSize),
		sttOpenCh:        make(chan sttOpenResult, 1),
		timerCh:          make(chan interview.TimerEvent, 4),
		evalCh:           make(chan evalResult, 1),
		ttsCh:            make(chan ttsEvent, 16),
		status:           statusConnected,
		vad:              live.NewVAD(cfg.VAD),
	}
	return s, nil
}

// ID returns the session identifier from the credential.
func (s *Session) ID() string { return s.identity.SessionID }

// Run serves the connection until the client leaves, a fatal error occurs or
// the session is cancelled. Teardown always runs before Run returns.
func (s *Session) Run() (err error) {
	var writerErrCh chan error
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("live session panic", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("live session panic: %v", r)
		}
		s.teardown()
		if writerErrCh != nil {
			wait := 100 * time.Millisecond
			if s.cfg.WriteTimeout > 0 && s.cfg.WriteTimeout < wait {
				wait = s.cfg.WriteTimeout
			}
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-writerErrCh:
			case <-timer.C:
			}
		}
	}()

	if s.cfg.MaxMessageBytes > 0 {
		s.conn.SetReadLimit(s.cfg.MaxMessageBytes)
	}
	if s.cfg.ReadTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		})
	}

	readCh := make(chan inboundFrame, 64)
	writerErrCh = make(chan error, 1)
	go s.readLoop(readCh)
	go func() {
		w := outboundWriter{
			ws:           s.conn,
			ctx:          s.ctx,
			pingInterval: s.cfg.PingInterval,
			writeTimeout: s.cfg.WriteTimeout,
			priority:     s.outboundPriority,
			normal:       s.outboundNormal,
			isCanceled:   s.isUtteranceCanceled,
		}
		writerErrCh <- w.Run()
		close(writerErrCh)
	}()

	handshake := time.NewTimer(s.cfg.HandshakeTimeout)
	defer handshake.Stop()

	var sessionTimerC <-chan time.Time
	if s.cfg.MaxSessionDuration > 0 {
		sessionTimer := time.NewTimer(s.cfg.MaxSessionDuration)
		defer sessionTimer.Stop()
		sessionTimerC = sessionTimer.C
	}

	var expiryC <-chan time.Time
	if !s.expiresAt.IsZero() {
		expiry := time.NewTimer(s.expiresAt.Sub(s.now()))
		defer expiry.Stop()
		expiryC = expiry.C
	}

	s.logger.Info("live session started", "interview_id", s.identity.InterviewID, "tenant_id", s.identity.TenantID)

	for {
		if s.sendErr != nil {
			return s.sendErr
		}
		select {
		case <-s.ctx.Done():
			return nil
		case err := <-writerErrCh:
			if err != nil {
				return err
			}
			return nil
		case frame, ok := <-readCh:
			if !ok || frame.err != nil {
				return nil
			}
			if err := s.handleFrame(frame); err != nil {
				return err
			}
		case <-handshake.C:
			if !s.helloDone {
				s.fatal(codeInvalidSession, "hello not received in time")
				return errHandshakeTimeout
			}
		case <-expiryC:
			s.fatal(codeInvalidSession, "session credential expired")
			return errCredentialExpired
		case <-sessionTimerC:
			s.logger.Info("max session duration reached")
			s.submit()
		case r := <-s.sttOpenCh:
			s.handleSTTOpened(r)
		case ev, ok := <-s.sttEvents:
			s.handleSTTEvent(ev, ok)
		case ev := <-s.timerCh:
			s.handleTimer(ev)
		case r := <-s.evalCh:
			s.handleEvaluation(r)
		case ev := <-s.ttsCh:
			s.handleTTS(ev)
		}
	}
}

// Cancel ends the session from outside the actor.
func (s *Session) Cancel() {
	if s == nil || s.cancel == nil {
		return
	}
	s.cancel()
}

// Notify sends a non-fatal error message. Safe for concurrent use.
func (s *Session) Notify(code, message string) error {
	if s == nil {
		return nil
	}
	return s.enqueueNormal(outboundFrame{payload: mustJSON(protocol.Error(code, message))})
}

// Progress returns the last recorded progress snapshot. Safe for concurrent use.
func (s *Session) Progress() store.Progress {
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()
	return s.snapshot
}

// teardown releases everything the session owns. It runs once; later calls
// are no-ops.
func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		s.stopTimer()
		s.cancelSpeech()
		s.closeSTT()
		s.cancel()
		s.wg.Wait()
		s.persist.close(s.cfg.PersistTimeout)
		if s.onClose != nil {
			s.onClose()
		}
		s.logger.Info("live session ended",
			"status", s.status,
			"score", s.score,
			"duration_ms", s.now().Sub(s.startTime).Milliseconds(),
		)
	})
}

func (s *Session) handleFrame(frame inboundFrame) error {
	switch frame.messageType {
	case websocket.BinaryMessage:
		s.handleAudio(frame.data)
		return nil
	case websocket.TextMessage:
	default:
		return nil
	}

	msg, decErr := protocol.DecodeClientMessage(frame.data)
	if decErr != nil {
		s.sendError(codeInvalidMessage, decErr.Error())
		return nil
	}
	switch m := msg.(type) {
	case protocol.ClientHello:
		return s.handleHello(m)
	case protocol.ClientStart:
		s.handleStart(m)
	case protocol.ClientAudio:
		s.handleAudio(m.PCM)
	case protocol.ClientEndQuestion:
		s.handleEndQuestion()
	case protocol.ClientSubmit:
		s.handleSubmit()
	case protocol.ClientPing:
		s.sendPriority(protocol.Pong(m.T))
	}
	return nil
}

func (s *Session) handleHello(m protocol.ClientHello) error {
	if s.helloDone {
		s.sendError(codeInvalidMessage, "hello already received")
		return nil
	}
	if m.SessionID != s.identity.SessionID {
		s.logger.Warn("hello session mismatch", "hello_session_id", m.SessionID)
		s.sendError(codeInvalidSession, "session id does not match credential")
		return nil
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.LoadTimeout)
	iv, err := s.interviews.LoadInterview(ctx, s.identity.InterviewID)
	cancel()
	if err != nil {
		s.logger.Warn("load interview failed", "interview_id", s.identity.InterviewID, "error", err)
		s.fatal(codeInvalidSession, "interview unavailable")
		return fmt.Errorf("%w: %v", errInterviewUnusable, err)
	}
	if iv.TenantID != "" && iv.TenantID != s.identity.TenantID {
		s.logger.Warn("interview tenant mismatch", "interview_id", iv.ID)
		s.fatal(codeInvalidSession, "interview unavailable")
		return errSessionIDMismatch
	}
	if len(iv.Questions) == 0 {
		s.fatal(codeInvalidSession, "interview has no questions")
		return errInterviewUnusable
	}

	s.seq = interview.NewSequencer(iv.Questions)
	s.helloDone = true
	s.logger.Info("interview loaded", "interview_id", iv.ID, "questions", s.seq.Len(), "client_version", m.ClientVersion)
	s.setStatus(statusConnected)
	return nil
}

func (s *Session) readLoop(out chan<- inboundFrame) {
	defer close(out)
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case out <- inboundFrame{err: err}:
			case <-s.ctx.Done():
			}
			return
		}
		select {
		case out <- inboundFrame{messageType: messageType, data: data}:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) isUtteranceCanceled(id uint64) bool {
	return id != 0 && id <= s.canceledThrough.Load()
}

func mustJSON(v any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal %T: %v", v, err))
	}
	return payload
}

// send queues a control message. A full queue means the client stopped
// reading; the session ends on the next loop iteration.
func (s *Session) send(v any) {
	if err := s.enqueueNormal(outboundFrame{payload: mustJSON(v)}); err != nil && s.sendErr == nil {
		s.logger.Warn("outbound queue full; closing session")
		s.sendErr = err
	}
}

func (s *Session) sendPriority(v any) {
	if err := s.enqueuePriority(outboundFrame{payload: mustJSON(v)}); err != nil && s.sendErr == nil {
		s.sendErr = err
	}
}

func (s *Session) sendError(code, message string) {
	s.send(protocol.Error(code, message))
}

// fatal queues an error ahead of everything else; the caller then returns
// from Run so the writer flushes it and closes.
func (s *Session) fatal(code, message string) {
	_ = s.enqueuePriority(outboundFrame{payload: mustJSON(protocol.Error(code, message))})
}

func (s *Session) sendTTS(utterance uint64, audio []byte) error {
	return s.enqueueNormal(outboundFrame{utterance: utterance, payload: mustJSON(protocol.TTSChunk(audio))})
}

func (s *Session) enqueueNormal(frame outboundFrame) error {
	if s.isUtteranceCanceled(frame.utterance) {
		return nil
	}
	select {
	case s.outboundNormal <- frame:
		return nil
	default:
		return errBackpressure
	}
}

func (s *Session) enqueuePriority(frame outboundFrame) error {
	for i := 0; i < 4; i++ {
		select {
		case s.outboundPriority <- frame:
			return nil
		default:
		}
		select {
		case <-s.outboundPriority:
		default:
		}
	}
	select {
	case s.outboundPriority <- frame:
		return nil
	default:
		return errBackpressure
	}
}
