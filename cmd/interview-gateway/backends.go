package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vango-go/vai-interview/pkg/core/evaluate"
	"github.com/vango-go/vai-interview/pkg/core/voice/stt"
	"github.com/vango-go/vai-interview/pkg/core/voice/tts"
	"github.com/vango-go/vai-interview/pkg/gateway/config"
	"github.com/vango-go/vai-interview/pkg/gateway/live/session"
	gatewayserver "github.com/vango-go/vai-interview/pkg/gateway/server"
	"github.com/vango-go/vai-interview/pkg/store"
)

// openBackends wires storage, scoring and speech from cfg. The returned func
// releases whatever was opened.
func openBackends(ctx context.Context, cfg config.Config, logger *slog.Logger) (gatewayserver.Deps, func(), error) {
	var deps gatewayserver.Deps
	closeFn := func() {}

	if cfg.DatabaseURL != "" {
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return deps, nil, err
		}
		deps.Interviews = pg
		deps.Sink = pg
		deps.Store = pg
		closeFn = pg.Close
	} else {
		catalog, err := store.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return deps, nil, err
		}
		logger.Info("interview catalog loaded", "path", cfg.CatalogPath, "interviews", catalog.Len())
		deps.Interviews = catalog
		deps.Sink = store.LogSink{Logger: logger}
	}

	scorer, err := newScorer(ctx, cfg)
	if err != nil {
		closeFn()
		return gatewayserver.Deps{}, nil, err
	}
	deps.Evaluator = &evaluate.Step{Scorer: scorer, Timeout: cfg.EvalTimeout}

	if cfg.SpeechEnabled() {
		deps.STT = session.STTProviderAdapter{Provider: stt.NewCartesia(stt.CartesiaConfig{
			APIKey:           cfg.CartesiaAPIKey,
			BaseURL:          cfg.CartesiaBaseURL,
			HandshakeTimeout: cfg.ProviderConnect,
		})}
		deps.TTS = session.TTSProviderAdapter{Provider: tts.NewCartesia(tts.CartesiaConfig{
			APIKey:           cfg.CartesiaAPIKey,
			BaseURL:          cfg.CartesiaBaseURL,
			ModelID:          cfg.TTSModel,
			VoiceID:          cfg.TTSVoiceID,
			HandshakeTimeout: cfg.ProviderConnect,
		})}
	} else {
		logger.Warn("CARTESIA_API_KEY not set; speech recognition and synthesis are disabled")
	}

	return deps, closeFn, nil
}

func newScorer(ctx context.Context, cfg config.Config) (evaluate.Scorer, error) {
	switch cfg.Scorer {
	case config.ScorerGemini:
		s, err := evaluate.NewGeminiScorer(ctx, evaluate.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.ScorerOpenAI:
		s, err := evaluate.NewOpenAIScorer(evaluate.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIURL,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.ScorerNone:
		return evaluate.AcknowledgeScorer{}, nil
	default:
		return nil, fmt.Errorf("unknown scorer %q", cfg.Scorer)
	}
}
