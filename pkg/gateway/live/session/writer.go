package session

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultPingInterval = 20 * time.Second
	defaultWriteTimeout = 5 * time.Second

	shutdownFlushWindow = 100 * time.Millisecond
	shutdownFlushFrames = 8
)

type wsWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// outboundFrame is one JSON text message. utterance is non-zero for tts
// audio so frames of a cancelled utterance can be dropped before writing.
type outboundFrame struct {
	utterance uint64
	payload   []byte
}

// outboundWriter is the only goroutine that writes to the socket. Priority
// frames (pong, fatal errors) jump ahead of queued state and audio frames.
type outboundWriter struct {
	ws           wsWriter
	ctx          context.Context
	pingInterval time.Duration
	writeTimeout time.Duration
	priority     <-chan outboundFrame
	normal       <-chan outboundFrame
	isCanceled   func(utterance uint64) bool
}

// Run writes frames until both queues are closed, the context ends, or a
// write fails. On context end it flushes a few priority frames and sends a
// close frame.
func (w *outboundWriter) Run() error {
	if w == nil || w.ws == nil {
		return nil
	}
	if w.pingInterval <= 0 {
		w.pingInterval = defaultPingInterval
	}
	if w.writeTimeout <= 0 {
		w.writeTimeout = defaultWriteTimeout
	}
	var done <-chan struct{}
	if w.ctx != nil {
		done = w.ctx.Done()
	}

	ping := time.NewTicker(w.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			w.shutdown()
			return nil
		default:
		}

		if frame, ok := w.pollPriority(); ok {
			if err := w.write(frame); err != nil {
				return err
			}
			continue
		}
		if w.priority == nil && w.normal == nil {
			return nil
		}

		var (
			frame outboundFrame
			ok    bool
		)
		select {
		case <-done:
			continue
		case <-ping.C:
			if err := w.ws.WriteControl(websocket.PingMessage, []byte("ping"), w.deadline()); err != nil {
				return err
			}
			continue
		case frame, ok = <-w.priority:
			if !ok {
				w.priority = nil
				continue
			}
		case frame, ok = <-w.normal:
			if !ok {
				w.normal = nil
				continue
			}
		}
		if err := w.write(frame); err != nil {
			return err
		}
	}
}

// pollPriority takes a queued priority frame without blocking. A closed
// priority queue is detached.
func (w *outboundWriter) pollPriority() (outboundFrame, bool) {
	if w.priority == nil {
		return outboundFrame{}, false
	}
	select {
	case frame, ok := <-w.priority:
		if !ok {
			w.priority = nil
			return outboundFrame{}, false
		}
		return frame, true
	default:
		return outboundFrame{}, false
	}
}

func (w *outboundWriter) shutdown() {
	window := shutdownFlushWindow
	if w.writeTimeout < window {
		window = w.writeTimeout
	}
	until := time.Now().Add(window)
	for n := 0; n < shutdownFlushFrames && time.Now().Before(until); n++ {
		frame, ok := w.pollPriority()
		if !ok {
			break
		}
		_ = w.write(frame)
	}
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.ws.WriteControl(websocket.CloseMessage, closeMsg, w.deadline())
	_ = w.ws.Close()
}

func (w *outboundWriter) deadline() time.Time {
	return time.Now().Add(w.writeTimeout)
}

func (w *outboundWriter) write(frame outboundFrame) error {
	if len(frame.payload) == 0 {
		return nil
	}
	if frame.utterance != 0 && w.isCanceled != nil && w.isCanceled(frame.utterance) {
		return nil
	}
	if err := w.ws.SetWriteDeadline(w.deadline()); err != nil {
		return err
	}
	return w.ws.WriteMessage(websocket.TextMessage, frame.payload)
}
