package session

import (
	"errors"
	"math"
	"strings"

	"github.com/vango-go/vai-interview/pkg/core"
	"github.com/vango-go/vai-interview/pkg/core/evaluate"
	"github.com/vango-go/vai-interview/pkg/core/interview"
	"github.com/vango-go/vai-interview/pkg/core/live"
	"github.com/vango-go/vai-interview/pkg/core/voice/stt"
	"github.com/vango-go/vai-interview/pkg/gateway/live/protocol"
	"github.com/vango-go/vai-interview/pkg/store"
)

type evalResult struct {
	turn     uint64
	question interview.Question
	answer   string
	decision evaluate.Decision
	err      error
}

func (s *Session) handleStart(m protocol.ClientStart) {
	if !s.helloDone {
		s.sendError(codeInvalidMessage, "start before hello")
		return
	}
	if s.status == statusSubmitted {
		s.sendError(codeInvalidMessage, "interview already submitted")
		return
	}
	if s.started {
		// A repeated start is how a candidate retries a failed recognizer.
		if s.sttStream == nil && !s.sttOpening {
			s.openSTT()
			return
		}
		s.sendError(codeInvalidMessage, "interview already started")
		return
	}

	s.started = true
	s.sampleRate = m.SampleRate
	format := live.DefaultInputAudioConfig()
	format.SampleRate = m.SampleRate
	s.limiter = newAudioLimiter(s.now, format, s.cfg.AudioRealtimeFactor, s.cfg.AudioBurst)
	s.vad.Reset()
	s.openSTT()
	s.seq.Restart()
	s.beginQuestion()
}

func (s *Session) handleAudio(pcm []byte) {
	if !s.started || len(pcm) == 0 {
		return
	}
	if s.status != statusListening && s.status != statusSpeaking {
		return
	}
	if !s.limiter.Allow(len(pcm)) {
		s.logger.Debug("inbound audio over rate; frame dropped", "bytes", len(pcm))
		return
	}

	rising := s.vad.Process(pcm)
	switch s.status {
	case statusListening:
		s.forwardAudio(pcm)
	case statusSpeaking:
		if rising {
			s.bargeIn()
			if s.status == statusListening {
				s.forwardAudio(pcm)
			}
		}
	}
}

// bargeIn handles the candidate talking over the reply. The decision for the
// answer is already applied, so the question ends as if the reply finished
// when another question follows. On the last question, or when the reply was
// closing the interview, the candidate keeps the floor: the session listens
// on the current question and endQuestion, submit or the timer finishes it.
func (s *Session) bargeIn() {
	s.logger.Debug("barge-in", "q_index", s.seq.Index(), "vad_avg", s.vad.Average())
	s.cancelSpeech()
	if s.seq.Remaining() > 0 && !s.endAfterReply {
		s.endQuestion()
		return
	}
	s.setStatus(statusListening)
}

func (s *Session) handleSTTEvent(ev stt.Event, ok bool) {
	if !ok {
		wasOpen := s.sttStream != nil
		s.closeSTT()
		if wasOpen && s.status != statusSubmitted {
			s.sendError(codeSTTError, "speech recognition stream closed")
		}
		return
	}
	if ev.Err != nil {
		s.logger.Warn("stt stream failed", "error", ev.Err)
		s.closeSTT()
		s.sendError(codeSTTError, "speech recognition failed")
		return
	}
	if s.status == statusSubmitted {
		return
	}

	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}
	if !ev.IsFinal {
		s.send(protocol.Caption(text, true))
		return
	}
	s.send(protocol.Caption(text, false))

	if s.status != statusListening {
		s.logger.Debug("final transcript outside listening ignored", "status", s.status)
		return
	}
	if s.answer == "" {
		s.answer = text
	} else {
		s.answer += " " + text
	}
	s.startEvaluation()
}

func (s *Session) startEvaluation() {
	q, ok := s.seq.Current()
	if !ok {
		return
	}
	s.turn++
	turn := s.turn
	answer := s.answer
	in := evaluate.Input{
		Question:           q.Prompt,
		ReferenceAnswer:    q.ReferenceAnswer,
		Transcript:         answer,
		RunningScore:       s.score,
		RemainingQuestions: s.seq.Remaining(),
	}
	s.setStatus(statusThinking)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		d, err := s.evaluator.Evaluate(s.ctx, in)
		select {
		case s.evalCh <- evalResult{turn: turn, question: q, answer: answer, decision: d, err: err}:
		case <-s.ctx.Done():
		}
	}()
}

func (s *Session) handleEvaluation(r evalResult) {
	if r.turn != s.turn || s.status != statusThinking {
		s.logger.Debug("stale evaluation dropped", "turn", r.turn)
		return
	}

	if r.err != nil {
		s.logger.Warn("evaluation failed", "q_index", s.seq.Index(), "temporary", temporary(r.err), "error", r.err)
		s.answer = ""
		s.sendError(codeSTTError, "could not evaluate the answer; please answer again")
		s.setStatus(statusListening)
		s.send(protocol.Prompt(r.question.Prompt))
		return
	}

	d := r.decision
	if d.ScoreDelta != nil {
		s.score += *d.ScoreDelta
	}
	s.persist.saveResponse(store.Response{
		SessionID:   s.identity.SessionID,
		InterviewID: s.identity.InterviewID,
		QuestionID:  r.question.ID,
		CandidateID: s.identity.CandidateID,
		Prompt:      r.question.Prompt,
		Transcript:  r.answer,
		Score:       d.ScoreDelta,
		Feedback:    d.Feedback,
		CreatedAt:   s.now(),
	})
	if d.HasFollowUp() {
		if _, err := s.seq.InsertFollowUp(d.FollowupQuestion); err != nil {
			s.logger.Warn("follow-up not inserted", "error", err)
		}
	}
	if d.EndInterview {
		s.endAfterReply = true
	}

	reply := strings.TrimSpace(d.SpokenReply)
	if reply == "" {
		s.endQuestion()
		return
	}
	s.vad.Reset()
	s.setStatus(statusSpeaking)
	s.speak(reply)
}

func (s *Session) handleEndQuestion() {
	if s.status == statusSubmitted {
		return
	}
	if !s.started {
		s.sendError(codeInvalidMessage, "no active question")
		return
	}
	s.endQuestion()
}

func (s *Session) handleSubmit() {
	if s.status == statusSubmitted {
		return
	}
	if !s.helloDone {
		s.sendError(codeInvalidMessage, "submit before hello")
		return
	}
	s.submit()
}

// endQuestion leaves the active question and moves to the next one, or
// submits when none remain.
func (s *Session) endQuestion() {
	s.stopTimer()
	s.cancelSpeech()
	s.turn++
	s.emitResult()
	if s.endAfterReply {
		s.submit()
		return
	}
	if !s.seq.Advance() {
		s.submit()
		return
	}
	s.beginQuestion()
}

func (s *Session) beginQuestion() {
	q, ok := s.seq.Current()
	if !ok {
		s.submit()
		return
	}
	s.answer = ""
	s.questionActive = true
	s.questionStart = s.now()
	s.setStatus(statusListening)
	s.send(protocol.Prompt(q.Prompt))
	s.startTimer(q)
}

func (s *Session) submit() {
	if s.status == statusSubmitted {
		return
	}
	s.stopTimer()
	s.cancelSpeech()
	s.turn++
	s.emitResult()
	s.closeSTT()
	s.setStatus(statusSubmitted)
	s.logger.Info("interview submitted", "score", s.score, "questions", s.qTotal())
}

func (s *Session) emitResult() {
	if !s.questionActive {
		return
	}
	s.questionActive = false
	q, ok := s.seq.Current()
	if !ok {
		return
	}
	secs := int(math.Round(s.now().Sub(s.questionStart).Seconds()))
	s.send(protocol.Result(q.ID, s.answer, secs))
}

func (s *Session) startTimer(q interview.Question) {
	s.stopTimer()
	s.timerGen++
	budget := q.Budget(s.cfg.Timer.Budget)
	if budget <= 0 {
		budget = interview.DefaultTimerConfig().Budget
	}
	s.timer = interview.StartTimer(s.cfg.Timer, s.timerGen, s.seq.Index(), budget, s.timerCh)
	s.send(protocol.Timer(int(math.Round(budget.Seconds()))))
}

// stopTimer cancels the active countdown. Events it already queued carry an
// old generation and are dropped by handleTimer.
func (s *Session) stopTimer() {
	if s.timer == nil {
		return
	}
	s.timer.Stop()
	s.timer = nil
}

func (s *Session) handleTimer(ev interview.TimerEvent) {
	if s.timer == nil || ev.Generation != s.timer.Generation() {
		return
	}
	if !ev.Expired {
		s.send(protocol.Timer(ev.RemainingSec()))
		return
	}
	s.logger.Info("question time expired", "q_index", ev.QuestionIndex)
	s.timer = nil
	s.endQuestion()
}

func (s *Session) setStatus(status string) {
	s.status = status
	idx, total := s.qIndex(), s.qTotal()
	s.send(protocol.State(status, idx, total))

	p := store.Progress{
		SessionID:     s.identity.SessionID,
		InterviewID:   s.identity.InterviewID,
		CandidateID:   s.identity.CandidateID,
		QuestionIndex: idx,
		RunningScore:  s.score,
		Status:        status,
		UpdatedAt:     s.now(),
	}
	s.snapshotMu.Lock()
	s.snapshot = p
	s.snapshotMu.Unlock()
	s.persist.saveProgress(p)
}

func (s *Session) qTotal() int {
	if s.seq == nil {
		return 0
	}
	return s.seq.Len()
}

// qIndex is the active question, or the last one once all are passed.
func (s *Session) qIndex() int {
	if s.seq == nil {
		return 0
	}
	idx := s.seq.Index()
	if total := s.seq.Len(); idx >= total && total > 0 {
		idx = total - 1
	}
	return idx
}

// temporary reports whether a failed evaluation may succeed on a retry.
func temporary(err error) bool {
	if errors.Is(err, evaluate.ErrTimeout) {
		return true
	}
	var coreErr *core.Error
	return errors.As(err, &coreErr) && coreErr.Temporary()
}
