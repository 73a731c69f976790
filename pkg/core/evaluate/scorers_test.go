package evaluate

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"

	"github.com/vango-go/vai-interview/pkg/core"
)

type mockChatService struct {
	resp   *openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.params = body
	return m.resp, m.err
}

func TestOpenAIScorer_Success(t *testing.T) {
	mock := &mockChatService{resp: &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: `{"spokenReply":"Thanks."}`}},
		},
	}}
	s := &OpenAIScorer{chat: mock, model: DefaultOpenAIModel}

	out, err := s.Score(context.Background(), Input{Question: "Q"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if out != `{"spokenReply":"Thanks."}` {
		t.Fatalf("out=%q", out)
	}
	if len(mock.params.Messages) != 2 {
		t.Fatalf("messages=%d, want system + user", len(mock.params.Messages))
	}
	if string(mock.params.Model) != DefaultOpenAIModel {
		t.Fatalf("model=%q", mock.params.Model)
	}
}

func TestOpenAIScorer_Errors(t *testing.T) {
	cause := errors.New("service failure")
	s := &OpenAIScorer{chat: &mockChatService{err: cause}}
	_, err := s.Score(context.Background(), Input{})
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Type != core.ErrProvider || !errors.Is(err, cause) {
		t.Fatalf("err=%v, want provider_error wrapping the cause", err)
	}

	s = &OpenAIScorer{chat: &mockChatService{resp: &openai.ChatCompletion{}}}
	if _, err := s.Score(context.Background(), Input{}); !errors.Is(err, ErrNoChoicesReturned) {
		t.Fatalf("err=%v, want ErrNoChoicesReturned", err)
	}
}

func TestNewOpenAIScorer_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIScorer(OpenAIConfig{}); err == nil {
		t.Fatal("expected error when API key not provided")
	}
	s, err := NewOpenAIScorer(OpenAIConfig{APIKey: "test-key"})
	if err != nil || s == nil {
		t.Fatalf("NewOpenAIScorer: %v", err)
	}
	if s.model != DefaultOpenAIModel {
		t.Fatalf("model=%q, want default", s.model)
	}
}

type mockGenerator struct {
	resp   *genai.GenerateContentResponse
	err    error
	config *genai.GenerateContentConfig
	model  string
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.model = model
	m.config = config
	return m.resp, m.err
}

func TestGeminiScorer_Success(t *testing.T) {
	mock := &mockGenerator{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: `{"spokenReply":"Good."}`}}}},
		},
	}}
	s := &GeminiScorer{models: mock, model: DefaultGeminiModel}

	out, err := s.Score(context.Background(), Input{Question: "Q"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if out != `{"spokenReply":"Good."}` {
		t.Fatalf("out=%q", out)
	}
	if mock.model != DefaultGeminiModel {
		t.Fatalf("model=%q", mock.model)
	}
	if mock.config == nil || mock.config.ResponseMIMEType != "application/json" || mock.config.SystemInstruction == nil {
		t.Fatalf("config=%+v, want JSON mode with system instruction", mock.config)
	}
}

func TestGeminiScorer_NoCandidates(t *testing.T) {
	s := &GeminiScorer{models: &mockGenerator{resp: &genai.GenerateContentResponse{}}}
	if _, err := s.Score(context.Background(), Input{}); err == nil {
		t.Fatal("expected error without candidates")
	}
}

func TestNewGeminiScorer_RequiresKey(t *testing.T) {
	if _, err := NewGeminiScorer(context.Background(), GeminiConfig{}); err == nil {
		t.Fatal("expected error when API key not provided")
	}
}
