package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	cartesiaWSBaseURL = "wss://api.cartesia.ai"
	cartesiaVersion   = "2025-04-16"
)

// Default voice ID - deployments should configure their own.
const defaultVoiceID = "a0e99841-438c-4a64-b679-ae501e7d6091"

// CartesiaConfig carries everything the Cartesia client needs.
type CartesiaConfig struct {
	APIKey           string
	BaseURL          string // websocket base, default wss://api.cartesia.ai
	Version          string
	ModelID          string // default sonic-3
	VoiceID          string
	HandshakeTimeout time.Duration // default 10s
}

// CartesiaProvider implements Provider over Cartesia's streaming websocket.
type CartesiaProvider struct {
	cfg CartesiaConfig
}

// NewCartesia creates a new Cartesia TTS provider.
func NewCartesia(cfg CartesiaConfig) *CartesiaProvider {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = cartesiaWSBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = cartesiaVersion
	}
	if cfg.ModelID == "" {
		cfg.ModelID = "sonic-3"
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = defaultVoiceID
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &CartesiaProvider{cfg: cfg}
}

// Name returns the provider identifier.
func (c *CartesiaProvider) Name() string {
	return "cartesia"
}

type cartesiaVoiceSpec struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding,omitempty"`
	SampleRate int    `json:"sample_rate"`
}

type cartesiaGenerationConfig struct {
	Speed float64 `json:"speed,omitempty"`
}

// cartesiaStreamingRequest is the request format for streaming TTS with continuation.
type cartesiaStreamingRequest struct {
	ModelID          string                    `json:"model_id"`
	Transcript       string                    `json:"transcript"`
	Voice            cartesiaVoiceSpec         `json:"voice"`
	OutputFormat     cartesiaOutputFormat      `json:"output_format"`
	ContextID        string                    `json:"context_id"`
	Continue         bool                      `json:"continue"`
	MaxBufferDelayMs int                       `json:"max_buffer_delay_ms,omitempty"`
	GenerationConfig *cartesiaGenerationConfig `json:"generation_config,omitempty"`
	Language         *string                   `json:"language,omitempty"`
}

type cartesiaWSResponse struct {
	Type       string `json:"type"` // "chunk", "done", "flush_done", "error"
	Data       string `json:"data,omitempty"`
	Done       bool   `json:"done,omitempty"`
	Error      string `json:"error,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

func buildStreamingOutputFormat(sampleRate int) cartesiaOutputFormat {
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	return cartesiaOutputFormat{
		Container:  "raw",
		Encoding:   "pcm_s16le",
		SampleRate: sampleRate,
	}
}

func (c *CartesiaProvider) wsURL() (string, error) {
	u, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/") + "/tts/websocket")
	if err != nil {
		return "", fmt.Errorf("parse websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("api_key", c.cfg.APIKey)
	q.Set("cartesia_version", c.cfg.Version)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// NewStreamingContext dials a streaming context for one utterance.
func (c *CartesiaProvider) NewStreamingContext(ctx context.Context, opts StreamingContextOptions) (*StreamingContext, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, fmt.Errorf("cartesia tts: missing api key")
	}
	wsURL, err := c.wsURL()
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	dialCtx, cancelDial := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancelDial()
	conn, _, err := dialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}

	voiceID := opts.Voice
	if voiceID == "" {
		voiceID = c.cfg.VoiceID
	}
	maxBufferDelay := opts.MaxBufferDelayMs
	if maxBufferDelay == 0 {
		maxBufferDelay = 500
	}

	baseReq := cartesiaStreamingRequest{
		ModelID: c.cfg.ModelID,
		Voice: cartesiaVoiceSpec{
			Mode: "id",
			ID:   voiceID,
		},
		OutputFormat:     buildStreamingOutputFormat(opts.SampleRate),
		ContextID:        "ctx_" + uuid.NewString(),
		MaxBufferDelayMs: maxBufferDelay,
	}
	if opts.Speed != 0 {
		baseReq.GenerationConfig = &cartesiaGenerationConfig{Speed: opts.Speed}
	}
	if opts.Language != "" {
		lang := opts.Language
		baseReq.Language = &lang
	}

	var writeMu sync.Mutex
	send := func(text string, isFinal bool) error {
		writeMu.Lock()
		defer writeMu.Unlock()

		req := baseReq
		req.Transcript = text
		// Continue must stay true until the last chunk or Cartesia closes the
		// context and rejects further text.
		req.Continue = !isFinal
		return conn.WriteJSON(req)
	}
	sc := newStreamingContext(send, conn.Close)

	go func() {
		defer conn.Close()
		defer sc.endAudio()

		for {
			var msg cartesiaWSResponse
			if err := conn.ReadJSON(&msg); err != nil {
				select {
				case <-sc.Done():
					return
				default:
				}
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					return
				}
				sc.fail(fmt.Errorf("cartesia tts: %w", err))
				return
			}

			switch msg.Type {
			case "chunk":
				audioData, err := base64.StdEncoding.DecodeString(msg.Data)
				if err != nil {
					sc.fail(fmt.Errorf("decode audio: %w", err))
					return
				}
				if !sc.push(audioData) {
					return
				}
			case "done":
				sc.complete()
				return
			case "flush_done":
				continue
			case "error":
				sc.fail(fmt.Errorf("cartesia tts error: %s", msg.Error))
				return
			}
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = sc.Close()
		case <-sc.Done():
		}
	}()

	return sc, nil
}
