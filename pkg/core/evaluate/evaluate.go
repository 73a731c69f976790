// Package evaluate turns a finalized answer into a scoring decision.
//
// A Scorer is any generative backend that returns raw text; Step bounds the
// call with a timeout and validates the payload before anything reaches the
// session. Malformed output is an error, never a partial decision.
package evaluate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// DefaultTimeout bounds a scoring call when Step.Timeout is unset.
const DefaultTimeout = 20 * time.Second

// MaxScoreDelta is the largest magnitude accepted for a single answer.
const MaxScoreDelta = 100

var (
	// ErrMalformedDecision wraps every validation failure.
	ErrMalformedDecision = errors.New("evaluate: malformed decision")
	// ErrTimeout is returned when the scorer does not answer in time.
	ErrTimeout = errors.New("evaluate: scoring timed out")
	// ErrNoScorer is returned by a Step without a Scorer.
	ErrNoScorer = errors.New("evaluate: no scorer configured")
)

// Input is everything the scorer sees about one answer.
type Input struct {
	Question           string
	ReferenceAnswer    string
	Transcript         string
	RunningScore       float64
	RemainingQuestions int
}

// Decision is a validated scoring result.
type Decision struct {
	SpokenReply      string
	ScoreDelta       *float64
	Feedback         string
	FollowupQuestion string
	EndInterview     bool
}

// HasFollowUp reports whether a follow-up question should be inserted.
func (d Decision) HasFollowUp() bool {
	return d.FollowupQuestion != ""
}

// Scorer asks a generative backend for a decision payload.
type Scorer interface {
	Score(ctx context.Context, in Input) (string, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, in Input) (string, error)

// Score implements Scorer.
func (f ScorerFunc) Score(ctx context.Context, in Input) (string, error) {
	return f(ctx, in)
}

// Step runs a Scorer with a deadline and validates its output.
type Step struct {
	Scorer  Scorer
	Timeout time.Duration
}

type scoreResult struct {
	raw string
	err error
}

// Evaluate scores one answer. The scorer runs in its own goroutine so a
// backend that ignores ctx still cannot hold the caller past the timeout.
func (s *Step) Evaluate(ctx context.Context, in Input) (Decision, error) {
	if s == nil || s.Scorer == nil {
		return Decision{}, ErrNoScorer
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := make(chan scoreResult, 1)
	go func() {
		raw, err := s.Scorer.Score(ctx, in)
		out <- scoreResult{raw: raw, err: err}
	}()

	select {
	case res := <-out:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return Decision{}, fmt.Errorf("%w: %v", ErrTimeout, res.err)
			}
			return Decision{}, fmt.Errorf("evaluate: scorer: %w", res.err)
		}
		return ParseDecision(res.raw)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Decision{}, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return Decision{}, ctx.Err()
	}
}

type wireDecision struct {
	SpokenReply      *string  `json:"spokenReply"`
	ScoreDelta       *float64 `json:"scoreDelta"`
	Feedback         *string  `json:"feedback"`
	FollowupQuestion *string  `json:"followupQuestion"`
	EndInterview     *bool    `json:"endInterview"`
}

// ParseDecision validates a raw scorer payload. Markdown code fences and
// leading prose around the JSON object are tolerated.
func ParseDecision(raw string) (Decision, error) {
	body := extractJSONObject(raw)
	if body == "" {
		return Decision{}, fmt.Errorf("%w: no JSON object in response", ErrMalformedDecision)
	}

	var w wireDecision
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrMalformedDecision, err)
	}
	if w.SpokenReply == nil || strings.TrimSpace(*w.SpokenReply) == "" {
		return Decision{}, fmt.Errorf("%w: spokenReply is required", ErrMalformedDecision)
	}

	d := Decision{SpokenReply: strings.TrimSpace(*w.SpokenReply)}
	if w.ScoreDelta != nil {
		delta := *w.ScoreDelta
		if math.IsNaN(delta) || math.IsInf(delta, 0) || math.Abs(delta) > MaxScoreDelta {
			return Decision{}, fmt.Errorf("%w: scoreDelta %v out of range", ErrMalformedDecision, delta)
		}
		d.ScoreDelta = &delta
	}
	if w.Feedback != nil {
		d.Feedback = strings.TrimSpace(*w.Feedback)
	}
	if w.FollowupQuestion != nil {
		d.FollowupQuestion = strings.TrimSpace(*w.FollowupQuestion)
	}
	if w.EndInterview != nil {
		d.EndInterview = *w.EndInterview
	}
	return d, nil
}

func extractJSONObject(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
