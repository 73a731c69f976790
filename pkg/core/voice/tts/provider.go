// Package tts provides streaming text-to-speech clients.
package tts

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrContextClosed is returned when text is sent to a closed context.
var ErrContextClosed = errors.New("streaming context closed")

// Provider opens one streaming synthesis context per utterance.
type Provider interface {
	Name() string
	NewStreamingContext(ctx context.Context, opts StreamingContextOptions) (*StreamingContext, error)
}

type StreamingContextOptions struct {
	Voice    string
	Language string
	// Speed is a multiplier in [0.6, 1.5]; 0 keeps the voice default.
	Speed float64
	// SampleRate of the raw pcm_s16le output.
	SampleRate int
	// MaxBufferDelayMs bounds how long the provider buffers text before
	// generating. 0 uses 500.
	MaxBufferDelayMs int
}

// StreamingContext is one incremental utterance. Text goes in with SendText
// and Flush; audio comes out on Audio until the channel closes.
//
// The channel closes when the provider finishes, fails, or the context is
// closed. Completed is true only in the first case, so a cancelled utterance
// never looks finished.
type StreamingContext struct {
	send  func(text string, isFinal bool) error
	close func() error

	audio chan []byte
	done  chan struct{}

	errMu sync.Mutex
	err   error

	closed    atomic.Bool
	completed atomic.Bool
	closeOnce sync.Once
	endOnce   sync.Once
}

func newStreamingContext(send func(string, bool) error, closeFn func() error) *StreamingContext {
	return &StreamingContext{
		send:  send,
		close: closeFn,
		audio: make(chan []byte, 100),
		done:  make(chan struct{}),
	}
}

// SendText queues text for synthesis. isFinal marks the last chunk.
func (sc *StreamingContext) SendText(text string, isFinal bool) error {
	if sc.closed.Load() {
		return ErrContextClosed
	}
	if sc.send == nil {
		return nil
	}
	return sc.send(text, isFinal)
}

// Flush tells the provider no more text follows.
func (sc *StreamingContext) Flush() error {
	return sc.SendText("", true)
}

func (sc *StreamingContext) Audio() <-chan []byte { return sc.audio }

// Done is closed once Close has run.
func (sc *StreamingContext) Done() <-chan struct{} { return sc.done }

func (sc *StreamingContext) Err() error {
	sc.errMu.Lock()
	defer sc.errMu.Unlock()
	return sc.err
}

// Completed reports whether the provider signalled the end of the utterance.
func (sc *StreamingContext) Completed() bool {
	return sc.completed.Load() && !sc.closed.Load()
}

// Close cancels the utterance. Safe to call more than once.
func (sc *StreamingContext) Close() error {
	var err error
	sc.closeOnce.Do(func() {
		sc.closed.Store(true)
		if sc.close != nil {
			err = sc.close()
		}
		close(sc.done)
	})
	return err
}

// push delivers a chunk unless the context is closed.
func (sc *StreamingContext) push(chunk []byte) bool {
	if sc.closed.Load() {
		return false
	}
	select {
	case sc.audio <- chunk:
		return true
	case <-sc.done:
		return false
	}
}

func (sc *StreamingContext) fail(err error) {
	sc.errMu.Lock()
	sc.err = err
	sc.errMu.Unlock()
}

func (sc *StreamingContext) complete() {
	sc.completed.Store(true)
	sc.endAudio()
}

func (sc *StreamingContext) endAudio() {
	sc.endOnce.Do(func() { close(sc.audio) })
}
