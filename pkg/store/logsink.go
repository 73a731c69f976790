package store

import (
	"context"
	"log/slog"
)

// LogSink is a ResponseSink that only logs. Used when no database is configured.
type LogSink struct {
	Logger *slog.Logger
}

// SaveResponse implements ResponseSink.
func (s LogSink) SaveResponse(_ context.Context, r Response) error {
	attrs := []any{
		"session_id", r.SessionID,
		"interview_id", r.InterviewID,
		"question_id", r.QuestionID,
		"candidate_id", r.CandidateID,
		"transcript_chars", len(r.Transcript),
	}
	if r.Score != nil {
		attrs = append(attrs, "score", *r.Score)
	}
	s.logger().Info("interview response", attrs...)
	return nil
}

// SaveProgress implements ResponseSink.
func (s LogSink) SaveProgress(_ context.Context, p Progress) error {
	s.logger().Debug("interview progress",
		"session_id", p.SessionID,
		"q_index", p.QuestionIndex,
		"score", p.RunningScore,
		"status", p.Status,
	)
	return nil
}

func (s LogSink) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
