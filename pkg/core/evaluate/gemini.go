package evaluate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/vango-go/vai-interview/pkg/core"
)

// DefaultGeminiModel is used when GeminiConfig.Model is empty.
const DefaultGeminiModel = "gemini-2.5-flash"

// contentGenerator is the slice of *genai.Models the scorer needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures the Gemini scorer.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiScorer scores answers with Gemini in JSON response mode.
type GeminiScorer struct {
	models contentGenerator
	model  string
}

// NewGeminiScorer builds a scorer backed by the Gemini API.
func NewGeminiScorer(ctx context.Context, cfg GeminiConfig) (*GeminiScorer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini scorer: missing api key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini scorer: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiScorer{models: client.Models, model: model}, nil
}

// Score implements Scorer.
func (s *GeminiScorer) Score(ctx context.Context, in Input) (string, error) {
	resp, err := s.models.GenerateContent(ctx, s.model, genai.Text(BuildUserPrompt(in)), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0.2),
	})
	if err != nil {
		return "", core.NewProviderError("gemini", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("gemini scorer: no candidates returned")
	}
	return resp.Text(), nil
}
