package interview

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNoActiveQuestion is returned when the sequencer has run past its last question.
	ErrNoActiveQuestion = errors.New("interview: no active question")
	// ErrEmptyFollowUp is returned for blank follow-up text.
	ErrEmptyFollowUp = errors.New("interview: follow-up text is empty")
)

// Sequencer owns the ordered question list and the current index.
//
// The list only grows: follow-ups are spliced in directly after the current
// question and nothing is reordered or removed. The index never decreases
// except through Restart, which sessions call once on start.
// 0 <= Index() <= Len() always holds.
type Sequencer struct {
	questions []Question
	index     int
	newID     func() string
}

// NewSequencer copies questions into a new sequencer positioned at index 0.
func NewSequencer(questions []Question) *Sequencer {
	qs := make([]Question, len(questions))
	copy(qs, questions)
	return &Sequencer{
		questions: qs,
		newID:     func() string { return "followup_" + uuid.NewString() },
	}
}

// Restart moves back to the first question. The list is kept, including
// follow-ups inserted so far.
func (s *Sequencer) Restart() {
	s.index = 0
}

// Index returns the 0-based position of the active question.
func (s *Sequencer) Index() int {
	return s.index
}

// Len returns the total number of questions, follow-ups included.
func (s *Sequencer) Len() int {
	return len(s.questions)
}

// Done reports whether every question has been passed.
func (s *Sequencer) Done() bool {
	return s.index >= len(s.questions)
}

// Current returns the active question.
func (s *Sequencer) Current() (Question, bool) {
	if s.Done() {
		return Question{}, false
	}
	return s.questions[s.index], true
}

// Remaining returns how many questions come after the active one.
func (s *Sequencer) Remaining() int {
	n := len(s.questions) - s.index - 1
	if n < 0 {
		return 0
	}
	return n
}

// Advance moves to the next question and reports whether one is active.
func (s *Sequencer) Advance() bool {
	if s.index < len(s.questions) {
		s.index++
	}
	return !s.Done()
}

// InsertFollowUp splices a synthetic question right after the active one.
// The index is unchanged, so the next Advance lands on the follow-up.
func (s *Sequencer) InsertFollowUp(text string) (Question, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Question{}, ErrEmptyFollowUp
	}
	if s.Done() {
		return Question{}, ErrNoActiveQuestion
	}

	q := Question{
		ID:       s.newID(),
		Prompt:   text,
		FollowUp: true,
	}
	at := s.index + 1
	s.questions = append(s.questions, Question{})
	copy(s.questions[at+1:], s.questions[at:])
	s.questions[at] = q
	return q, nil
}
