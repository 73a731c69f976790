package interview

import (
	"errors"
	"strings"
	"testing"
)

func threeQuestions() []Question {
	return []Question{
		{ID: "q1", Prompt: "Tell me about yourself.", ReferenceAnswer: "background"},
		{ID: "q2", Prompt: "Why this role?"},
		{ID: "q3", Prompt: "Any questions for us?"},
	}
}

func TestSequencer_AdvanceWalksInOrder(t *testing.T) {
	s := NewSequencer(threeQuestions())

	if s.Index() != 0 || s.Len() != 3 {
		t.Fatalf("index=%d len=%d, want 0/3", s.Index(), s.Len())
	}
	want := []string{"q1", "q2", "q3"}
	for i, id := range want {
		q, ok := s.Current()
		if !ok || q.ID != id {
			t.Fatalf("step %d: current=%q ok=%v, want %q", i, q.ID, ok, id)
		}
		more := s.Advance()
		if more != (i < len(want)-1) {
			t.Fatalf("step %d: Advance()=%v", i, more)
		}
	}
	if !s.Done() {
		t.Fatalf("expected Done after last advance")
	}
	if _, ok := s.Current(); ok {
		t.Fatalf("expected no current question when done")
	}
	if s.Advance() {
		t.Fatalf("Advance past end reported more questions")
	}
	if s.Index() != s.Len() {
		t.Fatalf("index=%d, want capped at len %d", s.Index(), s.Len())
	}
}

func TestSequencer_FollowUpLandsNextThenOriginalOrder(t *testing.T) {
	s := NewSequencer(threeQuestions())

	fu, err := s.InsertFollowUp("  Can you elaborate?  ")
	if err != nil {
		t.Fatalf("InsertFollowUp: %v", err)
	}
	if fu.Prompt != "Can you elaborate?" || !fu.FollowUp || fu.ReferenceAnswer != "" {
		t.Fatalf("follow-up=%+v", fu)
	}
	if !strings.HasPrefix(fu.ID, "followup_") {
		t.Fatalf("follow-up id=%q, want synthetic id", fu.ID)
	}
	if s.Index() != 0 {
		t.Fatalf("insert changed index to %d", s.Index())
	}
	if s.Len() != 4 {
		t.Fatalf("len=%d, want 4", s.Len())
	}

	s.Advance()
	if q, _ := s.Current(); q.ID != fu.ID {
		t.Fatalf("after first advance current=%q, want follow-up", q.ID)
	}
	s.Advance()
	if q, _ := s.Current(); q.ID != "q2" {
		t.Fatalf("after second advance current=%q, want q2", q.ID)
	}
}

func TestSequencer_NestedFollowUps(t *testing.T) {
	s := NewSequencer(threeQuestions())
	s.Advance() // q2

	a, _ := s.InsertFollowUp("first")
	s.Advance()
	b, _ := s.InsertFollowUp("second")
	s.Advance()

	got := []string{}
	for _, q := range s.questions {
		got = append(got, q.ID)
	}
	want := []string{"q1", "q2", a.ID, b.ID, "q3"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("order=%v, want %v", got, want)
	}
	if q, _ := s.Current(); q.ID != b.ID {
		t.Fatalf("current=%q, want %q", q.ID, b.ID)
	}
	if s.Remaining() != 1 {
		t.Fatalf("remaining=%d, want 1", s.Remaining())
	}
}

func TestSequencer_InsertFollowUpErrors(t *testing.T) {
	s := NewSequencer(threeQuestions())
	if _, err := s.InsertFollowUp("   "); !errors.Is(err, ErrEmptyFollowUp) {
		t.Fatalf("err=%v, want ErrEmptyFollowUp", err)
	}

	empty := NewSequencer(nil)
	if !empty.Done() {
		t.Fatalf("empty sequencer should be done")
	}
	if _, err := empty.InsertFollowUp("x"); !errors.Is(err, ErrNoActiveQuestion) {
		t.Fatalf("err=%v, want ErrNoActiveQuestion", err)
	}
	if empty.Remaining() != 0 {
		t.Fatalf("remaining=%d, want 0", empty.Remaining())
	}
}

func TestSequencer_CopiesInput(t *testing.T) {
	in := threeQuestions()
	s := NewSequencer(in)
	in[0].Prompt = "mutated"
	if q, _ := s.Current(); q.Prompt == "mutated" {
		t.Fatalf("sequencer shares caller slice")
	}
}

func TestSequencer_RestartKeepsFollowUps(t *testing.T) {
	s := NewSequencer(threeQuestions())
	s.InsertFollowUp("more")
	s.Advance()
	s.Restart()
	if s.Index() != 0 || s.Len() != 4 {
		t.Fatalf("index=%d len=%d, want 0/4", s.Index(), s.Len())
	}
}
