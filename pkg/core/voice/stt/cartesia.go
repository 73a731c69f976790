package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	cartesiaWSBaseURL = "wss://api.cartesia.ai"
	cartesiaVersion   = "2025-04-16"
)

// CartesiaConfig carries everything the Cartesia client needs. Nothing is
// read from the process environment.
type CartesiaConfig struct {
	APIKey           string
	BaseURL          string        // websocket base, default wss://api.cartesia.ai
	Version          string        // Cartesia-Version header
	HandshakeTimeout time.Duration // default 10s
	MinVolume        float64       // provider-side noise floor, default 0.01
}

// CartesiaProvider implements Provider over Cartesia's streaming websocket.
type CartesiaProvider struct {
	cfg CartesiaConfig
}

// NewCartesia creates a new Cartesia STT provider.
func NewCartesia(cfg CartesiaConfig) *CartesiaProvider {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = cartesiaWSBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = cartesiaVersion
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.MinVolume <= 0 {
		cfg.MinVolume = 0.01
	}
	return &CartesiaProvider{cfg: cfg}
}

// Name returns the provider identifier.
func (c *CartesiaProvider) Name() string {
	return "cartesia"
}

func (c *CartesiaProvider) streamURL(opts StreamOptions) (string, error) {
	u, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/") + "/stt/websocket")
	if err != nil {
		return "", fmt.Errorf("parse websocket URL: %w", err)
	}
	sampleRate := opts.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	q := url.Values{}
	q.Set("model", orDefault(opts.Model, "ink-whisper"))
	q.Set("language", orDefault(opts.Language, "en"))
	q.Set("encoding", orDefault(opts.Encoding, "pcm_s16le"))
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	q.Set("min_volume", strconv.FormatFloat(c.cfg.MinVolume, 'g', -1, 64))
	q.Set("api_key", c.cfg.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// NewStream dials a streaming STT session.
func (c *CartesiaProvider) NewStream(ctx context.Context, opts StreamOptions) (Stream, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, fmt.Errorf("cartesia stt: missing api key")
	}
	wsURL, err := c.streamURL(opts)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("X-API-Key", c.cfg.APIKey)
	headers.Set("Cartesia-Version", c.cfg.Version)

	dialCtx, cancelDial := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancelDial()
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(dialCtx, wsURL, headers)
	if err != nil {
		return nil, dialError(resp, err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s := &StreamingSTT{
		conn:   conn,
		events: make(chan Event, 100),
		ctx:    streamCtx,
		cancel: cancel,
	}
	go s.readLoop()
	return s, nil
}

// dialError folds the rejected handshake's status and body into err.
func dialError(resp *http.Response, err error) error {
	if resp == nil {
		return fmt.Errorf("cartesia stt: connect: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if detail := strings.TrimSpace(string(body)); detail != "" {
		return fmt.Errorf("cartesia stt: connect: status %d: %s", resp.StatusCode, detail)
	}
	return fmt.Errorf("cartesia stt: connect: status %d: %w", resp.StatusCode, err)
}

// StreamingSTT is a live Cartesia transcription session.
type StreamingSTT struct {
	conn    *websocket.Conn
	events  chan Event
	closed  atomic.Bool
	writeMu sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
}

// sttMessage is a server frame. Type is one of transcript, flush_done, done
// or error.
type sttMessage struct {
	Type     string  `json:"type"`
	Text     string  `json:"text"`
	IsFinal  bool    `json:"is_final"`
	Duration float64 `json:"duration"`
	Error    string  `json:"error"`
	Message  string  `json:"message"`
}

func (s *StreamingSTT) readLoop() {
	defer close(s.events)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			s.emit(Event{Err: fmt.Errorf("cartesia stt: %w", err)})
			return
		}

		var msg sttMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "transcript":
			if !s.emit(Event{Text: msg.Text, IsFinal: msg.IsFinal, Timestamp: msg.Duration}) {
				return
			}
		case "flush_done":
			continue
		case "done":
			return
		case "error":
			detail := msg.Error
			if detail == "" {
				detail = msg.Message
			}
			s.emit(Event{Err: fmt.Errorf("cartesia stt error: %s", detail)})
			return
		}
	}
}

func (s *StreamingSTT) emit(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// SendAudio sends one PCM frame.
func (s *StreamingSTT) SendAudio(data []byte) error {
	return s.write(websocket.BinaryMessage, data)
}

func (s *StreamingSTT) write(messageType int, data []byte) error {
	if s.closed.Load() {
		return ErrStreamClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

// Events returns the transcript channel.
func (s *StreamingSTT) Events() <-chan Event {
	return s.events
}

// Close ends the session. Only the first call has an effect.
func (s *StreamingSTT) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.cancel()

	s.writeMu.Lock()
	deadline := time.Now().Add(time.Second)
	_ = s.conn.SetWriteDeadline(deadline)
	_ = s.conn.WriteMessage(websocket.TextMessage, []byte("done"))
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	s.writeMu.Unlock()

	return s.conn.Close()
}
