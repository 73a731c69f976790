// Package stt provides streaming speech-to-text clients.
package stt

import (
	"context"
	"errors"
)

// ErrStreamClosed is returned when writing to a closed stream.
var ErrStreamClosed = errors.New("stt: stream closed")

// Provider opens streaming transcription sessions.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// NewStream dials a new streaming session. The dial is bounded by ctx
	// and the provider's handshake timeout.
	NewStream(ctx context.Context, opts StreamOptions) (Stream, error)
}

// Stream is one live transcription session.
//
// Events carries interim and final transcripts in provider order. A
// connection failure is delivered as a single Event with Err set, after
// which the channel is closed. The channel is also closed on Close.
type Stream interface {
	SendAudio(pcm []byte) error
	Events() <-chan Event
	Close() error
}

// StreamOptions configures a streaming session.
type StreamOptions struct {
	Model      string // Provider-specific model (default: "ink-whisper")
	Language   string // ISO language code (default: "en")
	Encoding   string // Input encoding (default: "pcm_s16le")
	SampleRate int    // Input sample rate in Hz (default: 16000)
}

// Event is a streaming transcript update or a terminal error.
type Event struct {
	Text      string  // Transcript text for this segment
	IsFinal   bool    // True if the provider marked the segment stable
	Timestamp float64 // Audio duration covered so far, in seconds
	Err       error   // Non-nil for the terminal error event
}
