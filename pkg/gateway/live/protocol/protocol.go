package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Client message types.
const (
	TypeHello       = "hello"
	TypeStart       = "start"
	TypeAudio       = "audio"
	TypeEndQuestion = "endQuestion"
	TypeSubmit      = "submit"
	TypePing        = "ping"
)

// Server message types.
const (
	TypeState   = "state"
	TypeCaption = "caption"
	TypePrompt  = "prompt"
	TypeTTS     = "tts"
	TypeTimer   = "timer"
	TypeResult  = "result"
	TypePong    = "pong"
	TypeError   = "error"
)

// Error codes carried by server error messages.
const (
	CodeInvalidSession = "INVALID_SESSION"
	CodeInvalidMessage = "INVALID_MESSAGE"
	CodeSTTError       = "STT_ERROR"
	CodeTTSError       = "TTS_ERROR"
	CodeServerDraining = "SERVER_DRAINING"
)

// Session statuses as they appear on the wire.
const (
	StatusConnected = "connected"
	StatusListening = "listening"
	StatusThinking  = "thinking"
	StatusSpeaking  = "speaking"
	StatusSubmitted = "submitted"
)

// Accepted start.sampleRate range, in Hz.
const (
	MinSampleRate = 8000
	MaxSampleRate = 48000
)

// DecodeError describes an inbound frame that could not be accepted.
// Code is always CodeInvalidMessage.
type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: CodeInvalidMessage, Message: message, Param: param}
}

type ClientHello struct {
	Type          string `json:"type"`
	SessionID     string `json:"sessionId"`
	ClientVersion string `json:"clientVersion,omitempty"`
}

type ClientStart struct {
	Type       string `json:"type"`
	SampleRate int    `json:"sampleRate"`
}

// ClientAudio carries one PCM frame. Chunk is the base64 text from the wire;
// PCM holds the decoded bytes.
type ClientAudio struct {
	Type  string `json:"type"`
	Chunk string `json:"chunk"`
	PCM   []byte `json:"-"`
}

type ClientEndQuestion struct {
	Type string `json:"type"`
}

type ClientSubmit struct {
	Type string `json:"type"`
}

type ClientPing struct {
	Type string  `json:"type"`
	T    float64 `json:"t"`
}

// DecodeClientMessage parses one JSON text frame into its typed message.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case TypeHello:
		var msg ClientHello
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid hello frame", "")
		}
		msg.SessionID = strings.TrimSpace(msg.SessionID)
		if msg.SessionID == "" {
			return nil, badRequest("hello.sessionId is required", "sessionId")
		}
		return msg, nil
	case TypeStart:
		var msg ClientStart
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid start frame", "")
		}
		if msg.SampleRate < MinSampleRate || msg.SampleRate > MaxSampleRate {
			return nil, badRequest(fmt.Sprintf("start.sampleRate must be between %d and %d", MinSampleRate, MaxSampleRate), "sampleRate")
		}
		return msg, nil
	case TypeAudio:
		var msg ClientAudio
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid audio frame", "")
		}
		if strings.TrimSpace(msg.Chunk) == "" {
			return nil, badRequest("audio.chunk is required", "chunk")
		}
		pcm, err := base64.StdEncoding.DecodeString(msg.Chunk)
		if err != nil {
			return nil, badRequest("audio.chunk must be base64", "chunk")
		}
		msg.PCM = pcm
		return msg, nil
	case TypeEndQuestion:
		var msg ClientEndQuestion
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid endQuestion frame", "")
		}
		return msg, nil
	case TypeSubmit:
		var msg ClientSubmit
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid submit frame", "")
		}
		return msg, nil
	case TypePing:
		var msg ClientPing
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid ping frame", "")
		}
		return msg, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

type ServerState struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	QIndex int    `json:"qIndex"`
	QTotal int    `json:"qTotal"`
}

type ServerCaption struct {
	Type    string `json:"type"`
	Partial bool   `json:"partial"`
	Text    string `json:"text"`
}

type ServerPrompt struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ServerTTS struct {
	Type        string `json:"type"`
	StreamChunk string `json:"streamChunk"`
}

type ServerTimer struct {
	Type         string `json:"type"`
	RemainingSec int    `json:"remainingSec"`
}

type ServerResult struct {
	Type        string `json:"type"`
	QuestionID  string `json:"questionId"`
	Transcript  string `json:"transcript"`
	DurationSec int    `json:"durationSec"`
}

type ServerPong struct {
	Type string  `json:"type"`
	T    float64 `json:"t"`
}

type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func State(status string, qIndex, qTotal int) ServerState {
	return ServerState{Type: TypeState, Status: status, QIndex: qIndex, QTotal: qTotal}
}

func Caption(text string, partial bool) ServerCaption {
	return ServerCaption{Type: TypeCaption, Partial: partial, Text: text}
}

func Prompt(text string) ServerPrompt {
	return ServerPrompt{Type: TypePrompt, Text: text}
}

// TTSChunk base64-encodes one synthesized audio chunk.
func TTSChunk(audio []byte) ServerTTS {
	return ServerTTS{Type: TypeTTS, StreamChunk: base64.StdEncoding.EncodeToString(audio)}
}

func Timer(remainingSec int) ServerTimer {
	if remainingSec < 0 {
		remainingSec = 0
	}
	return ServerTimer{Type: TypeTimer, RemainingSec: remainingSec}
}

func Result(questionID, transcript string, durationSec int) ServerResult {
	return ServerResult{Type: TypeResult, QuestionID: questionID, Transcript: transcript, DurationSec: durationSec}
}

func Pong(t float64) ServerPong {
	return ServerPong{Type: TypePong, T: t}
}

func Error(code, message string) ServerError {
	return ServerError{Type: TypeError, Code: code, Message: message}
}
