package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vango-go/vai-interview/pkg/store"
)

const maxPendingResponses = 64

// persister writes a session's records on its own goroutine so a slow
// database never stalls the actor. Scored responses are written in order and
// ahead of progress. Progress is coalesced: only the newest snapshot waiting
// behind a slow write is kept. Failures are logged only.
type persister struct {
	sink    store.ResponseSink
	logger  *slog.Logger
	timeout time.Duration

	mu        sync.Mutex
	closed    bool
	responses []store.Response
	progress  *store.Progress

	wake chan struct{}
	done chan struct{}
}

func newPersister(sink store.ResponseSink, logger *slog.Logger, timeout time.Duration) *persister {
	if sink == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	p := &persister{
		sink:    sink,
		logger:  logger,
		timeout: timeout,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *persister) saveResponse(r store.Response) {
	if p == nil {
		return
	}
	p.mu.Lock()
	switch {
	case p.closed:
	case len(p.responses) >= maxPendingResponses:
		p.logger.Warn("persist backlog full; response dropped", "question_id", r.QuestionID)
	default:
		p.responses = append(p.responses, r)
	}
	p.mu.Unlock()
	p.signal()
}

func (p *persister) saveProgress(pr store.Progress) {
	if p == nil {
		return
	}
	p.mu.Lock()
	if !p.closed {
		p.progress = &pr
	}
	p.mu.Unlock()
	p.signal()
}

func (p *persister) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *persister) run() {
	defer close(p.done)
	for range p.wake {
		if p.flush() {
			return
		}
	}
}

// flush writes everything pending and reports whether the persister is
// closed with nothing left.
func (p *persister) flush() bool {
	for {
		p.mu.Lock()
		responses, progress, closed := p.responses, p.progress, p.closed
		p.responses, p.progress = nil, nil
		p.mu.Unlock()

		if len(responses) == 0 && progress == nil {
			return closed
		}
		for _, r := range responses {
			ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
			if err := p.sink.SaveResponse(ctx, r); err != nil {
				p.logger.Warn("save response failed", "question_id", r.QuestionID, "error", err)
			}
			cancel()
		}
		if progress != nil {
			ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
			if err := p.sink.SaveProgress(ctx, *progress); err != nil {
				p.logger.Warn("save progress failed", "error", err)
			}
			cancel()
		}
	}
}

// close stops accepting records and waits up to wait for pending ones to be
// written.
func (p *persister) close(wait time.Duration) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.signal()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-p.done:
	case <-timer.C:
		p.logger.Warn("persist backlog not drained before session close")
	}
}
