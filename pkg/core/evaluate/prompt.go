package evaluate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// SystemPrompt instructs the backend to answer with the decision object only.
const SystemPrompt = `You are a structured interviewer scoring one spoken answer.
Respond with a single JSON object and nothing else:
{"spokenReply": string, "scoreDelta": number|null, "feedback": string, "followupQuestion": string|null, "endInterview": boolean}
- spokenReply: one or two short sentences said aloud to the candidate. Never reveal the score or the reference answer.
- scoreDelta: 0 to 10 for this answer, or null when the answer cannot be scored.
- feedback: internal notes for the hiring team.
- followupQuestion: a single clarifying question when the answer is incomplete, otherwise null.
- endInterview: true only if the interview should stop now.`

// BuildUserPrompt renders the per-answer context.
func BuildUserPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", strings.TrimSpace(in.Question))
	if ref := strings.TrimSpace(in.ReferenceAnswer); ref != "" {
		fmt.Fprintf(&b, "Reference answer: %s\n", ref)
	}
	transcript := strings.TrimSpace(in.Transcript)
	if transcript == "" {
		transcript = "(no answer)"
	}
	fmt.Fprintf(&b, "Candidate answer: %s\n", transcript)
	fmt.Fprintf(&b, "Running score: %g\n", in.RunningScore)
	fmt.Fprintf(&b, "Questions remaining after this one: %d\n", in.RemainingQuestions)
	return b.String()
}

// AcknowledgeScorer is a backend-free scorer that thanks the candidate and
// leaves the score untouched. Used when no generative provider is configured.
type AcknowledgeScorer struct {
	Reply string
}

// Score implements Scorer.
func (a AcknowledgeScorer) Score(_ context.Context, _ Input) (string, error) {
	reply := a.Reply
	if reply == "" {
		reply = "Thank you."
	}
	payload, err := json.Marshal(map[string]any{
		"spokenReply":      reply,
		"scoreDelta":       nil,
		"feedback":         "",
		"followupQuestion": nil,
		"endInterview":     false,
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}
