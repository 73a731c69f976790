// Package sse writes text/event-stream responses.
package sse

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
)

type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// New prepares w for streaming and writes the response headers. w must
// implement http.Flusher.
func New(w http.ResponseWriter) (*Writer, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("sse: response writer does not support flushing")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	f.Flush()
	return &Writer{w: w, flusher: f}, nil
}

// Send writes one named event with data encoded as JSON.
func (sw *Writer) Send(event string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return sw.emit("event: " + event + "\ndata: " + string(b) + "\n\n")
}

// Comment writes a comment line. Clients ignore it; proxies see traffic.
func (sw *Writer) Comment(text string) error {
	return sw.emit(": " + strings.ReplaceAll(text, "\n", " ") + "\n\n")
}

func (sw *Writer) emit(frame string) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if _, err := io.WriteString(sw.w, frame); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}
