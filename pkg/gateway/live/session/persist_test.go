package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/vango-go/vai-interview/pkg/store"
)

// gatedSink blocks its first progress write until release is closed.
type gatedSink struct {
	fakeSink
	entered chan struct{}
	release chan struct{}
	gated   bool
}

func (s *gatedSink) SaveProgress(ctx context.Context, p store.Progress) error {
	s.mu.Lock()
	first := !s.gated
	s.gated = true
	s.mu.Unlock()
	if first {
		close(s.entered)
		<-s.release
	}
	return s.fakeSink.SaveProgress(ctx, p)
}

func TestPersister_SlowSinkKeepsResponsesAndLatestProgress(t *testing.T) {
	sink := &gatedSink{entered: make(chan struct{}), release: make(chan struct{})}
	p := newPersister(sink, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Second)

	p.saveProgress(store.Progress{SessionID: "sess-1", QuestionIndex: 0})
	select {
	case <-sink.entered:
	case <-time.After(waitTimeout):
		t.Fatalf("first progress write never started")
	}

	for i := 1; i <= 3*maxPendingResponses; i++ {
		p.saveProgress(store.Progress{SessionID: "sess-1", QuestionIndex: i})
	}
	p.saveResponse(store.Response{SessionID: "sess-1", QuestionID: "q1"})
	p.saveProgress(store.Progress{SessionID: "sess-1", QuestionIndex: 1000})
	p.saveResponse(store.Response{SessionID: "sess-1", QuestionID: "q2"})

	close(sink.release)
	p.close(waitTimeout)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.responses) != 2 || sink.responses[0].QuestionID != "q1" || sink.responses[1].QuestionID != "q2" {
		t.Fatalf("responses=%+v, want q1 then q2", sink.responses)
	}
	if len(sink.progress) != 2 {
		t.Fatalf("progress writes=%d, want 2 (in-flight plus newest)", len(sink.progress))
	}
	if got := sink.progress[1].QuestionIndex; got != 1000 {
		t.Fatalf("last progress qIndex=%d, want 1000", got)
	}
}

func TestPersister_CloseDrainsAndRejectsLateRecords(t *testing.T) {
	sink := &fakeSink{}
	p := newPersister(sink, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Second)

	p.saveResponse(store.Response{QuestionID: "q1"})
	p.close(waitTimeout)
	p.close(waitTimeout)
	p.saveResponse(store.Response{QuestionID: "late"})
	p.saveProgress(store.Progress{Status: "submitted"})

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.responses) != 1 || sink.responses[0].QuestionID != "q1" {
		t.Fatalf("responses=%+v, want only q1", sink.responses)
	}
	if len(sink.progress) != 0 {
		t.Fatalf("progress=%+v, want none after close", sink.progress)
	}
}

func TestPersister_NilIsSafe(t *testing.T) {
	var p *persister
	p.saveResponse(store.Response{})
	p.saveProgress(store.Progress{})
	p.close(time.Millisecond)
	if newPersister(nil, nil, 0) != nil {
		t.Fatalf("persister without a sink should be nil")
	}
}
