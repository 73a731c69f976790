// Package interview holds the question model, the ordered question sequencer
// and the per-question countdown timer used by live interview sessions.
package interview

import "time"

// Question is one prompt in an interview.
type Question struct {
	ID     string `json:"id" yaml:"id"`
	Prompt string `json:"prompt" yaml:"prompt"`

	// ReferenceAnswer is only handed to the evaluation step; it is never sent
	// to the candidate.
	ReferenceAnswer string `json:"reference_answer,omitempty" yaml:"reference_answer,omitempty"`

	// TimeLimit overrides the session's default question budget when > 0.
	TimeLimit time.Duration `json:"time_limit,omitempty" yaml:"time_limit,omitempty"`

	// FollowUp marks questions synthesized during the session.
	FollowUp bool `json:"follow_up,omitempty" yaml:"-"`
}

// Interview is the definition loaded at session start.
type Interview struct {
	ID        string     `json:"id" yaml:"id"`
	TenantID  string     `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
	Title     string     `json:"title,omitempty" yaml:"title,omitempty"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// Budget returns the question's time budget given the session default.
func (q Question) Budget(def time.Duration) time.Duration {
	if q.TimeLimit > 0 {
		return q.TimeLimit
	}
	return def
}
