// Package store provides the interview-data and response-persistence
// collaborators used by live sessions.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/vango-go/vai-interview/pkg/core/interview"
)

// ErrInterviewNotFound is returned when no interview matches the identifier.
var ErrInterviewNotFound = errors.New("store: interview not found")

// InterviewSource loads interview definitions.
type InterviewSource interface {
	LoadInterview(ctx context.Context, interviewID string) (interview.Interview, error)
}

// ResponseSink persists scored answers and session progress.
type ResponseSink interface {
	SaveResponse(ctx context.Context, r Response) error
	SaveProgress(ctx context.Context, p Progress) error
}

// Response is one evaluated answer.
type Response struct {
	SessionID   string
	InterviewID string
	QuestionID  string
	CandidateID string
	Prompt      string
	Transcript  string
	Score       *float64
	Feedback    string
	CreatedAt   time.Time
}

// Progress is a snapshot of a session after a state change.
type Progress struct {
	SessionID     string
	InterviewID   string
	CandidateID   string
	QuestionIndex int
	RunningScore  float64
	Status        string
	UpdatedAt     time.Time
}
