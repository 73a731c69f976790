package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/vango-go/vai-interview/pkg/core/voice"
	"github.com/vango-go/vai-interview/pkg/core/voice/stt"
	"github.com/vango-go/vai-interview/pkg/core/voice/tts"
)

var errTTSIncomplete = errors.New("tts stream ended before completion")

type STTConfig struct {
	Model      string
	Language   string
	Encoding   string
	SampleRate int
}

type STTSession interface {
	SendAudio([]byte) error
	Events() <-chan stt.Event
	Close() error
}

type STTProvider interface {
	NewSession(ctx context.Context, cfg STTConfig) (STTSession, error)
}

type TTSConfig struct {
	Voice            string
	Language         string
	Speed            float64
	SampleRate       int
	MaxBufferDelayMS int
}

type TTSContext interface {
	SendText(text string, isFinal bool) error
	Flush() error
	Audio() <-chan []byte
	Err() error
	Completed() bool
	Close() error
}

type TTSProvider interface {
	NewContext(ctx context.Context, cfg TTSConfig) (TTSContext, error)
}

type STTProviderAdapter struct {
	Provider stt.Provider
}

func (a STTProviderAdapter) NewSession(ctx context.Context, cfg STTConfig) (STTSession, error) {
	if a.Provider == nil {
		return nil, fmt.Errorf("stt provider is nil")
	}
	s, err := a.Provider.NewStream(ctx, stt.StreamOptions{
		Model:      cfg.Model,
		Language:   cfg.Language,
		Encoding:   cfg.Encoding,
		SampleRate: cfg.SampleRate,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

type TTSProviderAdapter struct {
	Provider tts.Provider
}

func (a TTSProviderAdapter) NewContext(ctx context.Context, cfg TTSConfig) (TTSContext, error) {
	if a.Provider == nil {
		return nil, fmt.Errorf("tts provider is nil")
	}
	sc, err := a.Provider.NewStreamingContext(ctx, tts.StreamingContextOptions{
		Voice:            cfg.Voice,
		Language:         cfg.Language,
		Speed:            cfg.Speed,
		SampleRate:       cfg.SampleRate,
		MaxBufferDelayMs: cfg.MaxBufferDelayMS,
	})
	if err != nil {
		return nil, err
	}
	return sc, nil
}

type sttOpenResult struct {
	attempt uint64
	stream  STTSession
	err     error
}

type ttsEvent struct {
	utterance uint64
	audio     []byte
	done      bool
	err       error
}

// openSTT dials the transcription stream off the actor goroutine.
func (s *Session) openSTT() {
	if s.stt == nil {
		s.sendError(codeSTTError, "speech recognition is unavailable")
		return
	}
	s.sttAttempt++
	s.sttOpening = true
	attempt := s.sttAttempt
	cfg := s.cfg.STT
	cfg.SampleRate = s.sampleRate

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		stream, err := s.stt.NewSession(s.ctx, cfg)
		select {
		case s.sttOpenCh <- sttOpenResult{attempt: attempt, stream: stream, err: err}:
		case <-s.ctx.Done():
			if stream != nil {
				_ = stream.Close()
			}
		}
	}()
}

func (s *Session) handleSTTOpened(r sttOpenResult) {
	if r.attempt != s.sttAttempt {
		if r.stream != nil {
			_ = r.stream.Close()
		}
		return
	}
	s.sttOpening = false
	if r.err != nil {
		s.logger.Warn("stt connect failed", "error", r.err)
		s.sendError(codeSTTError, "speech recognition is unavailable")
		return
	}
	if s.status == statusSubmitted {
		_ = r.stream.Close()
		return
	}
	s.sttStream = r.stream
	s.sttEvents = r.stream.Events()
}

func (s *Session) closeSTT() {
	if s.sttStream != nil {
		if err := s.sttStream.Close(); err != nil {
			s.logger.Debug("stt close failed", "error", err)
		}
		s.sttStream = nil
	}
	s.sttEvents = nil
	// An in-flight dial is discarded when it lands.
	s.sttAttempt++
	s.sttOpening = false
}

func (s *Session) forwardAudio(pcm []byte) {
	if s.sttStream == nil {
		return
	}
	if err := s.sttStream.SendAudio(pcm); err != nil {
		s.logger.Warn("stt send failed", "error", err)
		s.closeSTT()
		s.sendError(codeSTTError, "speech recognition connection lost")
	}
}

// speak starts synthesis of text as a new utterance. Any previous utterance
// must already be stopped.
func (s *Session) speak(text string) {
	if s.tts == nil {
		s.sendError(codeTTSError, "speech synthesis is unavailable")
		s.endQuestion()
		return
	}
	s.utterance++
	id := s.utterance
	ctx, cancel := context.WithCancel(s.ctx)
	s.activeUtterance = id
	s.ttsCancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runTTS(ctx, id, text)
	}()
}

func (s *Session) runTTS(ctx context.Context, id uint64, text string) {
	post := func(ev ttsEvent) bool {
		if ctx.Err() != nil {
			return false
		}
		select {
		case s.ttsCh <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	sc, err := s.tts.NewContext(ctx, s.cfg.TTS)
	if err != nil {
		post(ttsEvent{utterance: id, done: true, err: err})
		return
	}
	defer sc.Close()

	for _, sentence := range voice.SplitSentences(text, 0) {
		if err := sc.SendText(sentence+" ", false); err != nil {
			post(ttsEvent{utterance: id, done: true, err: err})
			return
		}
	}
	if err := sc.Flush(); err != nil {
		post(ttsEvent{utterance: id, done: true, err: err})
		return
	}

	audio := sc.Audio()
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-audio:
			if !ok {
				var doneErr error
				if !sc.Completed() {
					doneErr = sc.Err()
					if doneErr == nil {
						doneErr = errTTSIncomplete
					}
				}
				post(ttsEvent{utterance: id, done: true, err: doneErr})
				return
			}
			if len(chunk) == 0 {
				continue
			}
			if !post(ttsEvent{utterance: id, audio: chunk}) {
				return
			}
		}
	}
}

func (s *Session) handleTTS(ev ttsEvent) {
	if ev.utterance == 0 || ev.utterance != s.activeUtterance || s.status != statusSpeaking {
		return
	}
	if !ev.done {
		if err := s.sendTTS(ev.utterance, ev.audio); err != nil {
			s.logger.Warn("tts chunk dropped", "error", err)
		}
		return
	}

	s.finishSpeech()
	if ev.err != nil {
		s.logger.Warn("tts failed", "error", ev.err)
		s.sendError(codeTTSError, "speech synthesis failed")
	}
	s.endQuestion()
}

// finishSpeech releases a completed utterance. Its queued audio still plays.
func (s *Session) finishSpeech() {
	if s.ttsCancel != nil {
		s.ttsCancel()
		s.ttsCancel = nil
	}
	s.activeUtterance = 0
}

// cancelSpeech stops the active utterance and discards its queued audio.
func (s *Session) cancelSpeech() {
	if s.ttsCancel == nil {
		return
	}
	s.ttsCancel()
	s.ttsCancel = nil
	s.canceledThrough.Store(s.activeUtterance)
	s.activeUtterance = 0
}
