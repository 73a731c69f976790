package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ScorerKind selects the generative backend for the Evaluation Step.
type ScorerKind string

const (
	ScorerGemini ScorerKind = "gemini"
	ScorerOpenAI ScorerKind = "openai"
	ScorerNone   ScorerKind = "none"
)

const (
	minEvalTimeout = 10 * time.Second
	maxEvalTimeout = 30 * time.Second
)

type Config struct {
	Addr string

	// Browser origins allowed to open a live session. A request without an
	// Origin header (non-browser client) is always allowed.
	AllowedOrigins map[string]struct{}

	// Session credentials (HS256 JWT).
	CredentialSecret string
	CredentialIssuer string
	CredentialTTL    time.Duration

	// Interview data. DatabaseURL wins over CatalogPath when set.
	DatabaseURL string
	CatalogPath string

	// Cartesia speech providers. Empty key disables speech.
	CartesiaAPIKey   string
	CartesiaBaseURL  string
	STTModel         string
	STTLanguage      string
	TTSModel         string
	TTSVoiceID       string
	TTSSampleRate    int
	ProviderConnect  time.Duration
	AudioRealtimeCap float64

	// Evaluation Step.
	Scorer       ScorerKind
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string
	OpenAIURL    string
	EvalTimeout  time.Duration

	// Question pacing.
	QuestionBudget time.Duration
	TickInterval   time.Duration

	// Voice activity detection.
	VADEnter   float64
	VADExit    float64
	VADHistory int

	// Live websocket transport.
	HandshakeTimeout   time.Duration
	WSPingInterval     time.Duration
	WSWriteTimeout     time.Duration
	WSReadTimeout      time.Duration
	MaxMessageBytes    int64
	MaxSessionDuration time.Duration

	// Per-tenant admission. Zero disables each limit.
	TenantMaxSessions  int
	TenantConnectRPS   float64
	TenantConnectBurst int

	// Progress stream sampling.
	ProgressPoll time.Duration

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration
	LogLevel            string
	LogJSON             bool
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("INTERVIEW_ADDR", ":8080"),
		AllowedOrigins:      make(map[string]struct{}),
		CredentialSecret:    strings.TrimSpace(os.Getenv("INTERVIEW_CREDENTIAL_SECRET")),
		CredentialIssuer:    envOr("INTERVIEW_CREDENTIAL_ISSUER", "vai-interview"),
		CredentialTTL:       envDurationOr("INTERVIEW_CREDENTIAL_TTL", 15*time.Minute),
		DatabaseURL:         strings.TrimSpace(os.Getenv("INTERVIEW_DATABASE_URL")),
		CatalogPath:         envOr("INTERVIEW_CATALOG_PATH", "interviews.yaml"),
		CartesiaAPIKey:      strings.TrimSpace(os.Getenv("CARTESIA_API_KEY")),
		CartesiaBaseURL:     strings.TrimSpace(os.Getenv("CARTESIA_WS_BASE_URL")),
		STTModel:            envOr("CARTESIA_STT_MODEL", "ink-whisper"),
		STTLanguage:         envOr("CARTESIA_STT_LANGUAGE", "en"),
		TTSModel:            envOr("CARTESIA_TTS_MODEL", "sonic-3"),
		TTSVoiceID:          strings.TrimSpace(os.Getenv("CARTESIA_TTS_VOICE_ID")),
		TTSSampleRate:       envIntOr("INTERVIEW_TTS_SAMPLE_RATE", 24000),
		ProviderConnect:     envDurationOr("INTERVIEW_PROVIDER_CONNECT_TIMEOUT", 10*time.Second),
		AudioRealtimeCap:    envFloat64Or("INTERVIEW_AUDIO_REALTIME_FACTOR", 2),
		Scorer:              ScorerKind(strings.ToLower(envOr("INTERVIEW_SCORER", string(ScorerGemini)))),
		GeminiAPIKey:        strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:         envOr("INTERVIEW_GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIAPIKey:        strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:         envOr("INTERVIEW_OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIURL:           strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		EvalTimeout:         envDurationOr("INTERVIEW_EVAL_TIMEOUT", 20*time.Second),
		QuestionBudget:      envDurationOr("INTERVIEW_QUESTION_BUDGET", 300*time.Second),
		TickInterval:        envDurationOr("INTERVIEW_TICK_INTERVAL", 30*time.Second),
		VADEnter:            envFloat64Or("INTERVIEW_VAD_ENTER", 0.01),
		VADExit:             envFloat64Or("INTERVIEW_VAD_EXIT", 0.005),
		VADHistory:          envIntOr("INTERVIEW_VAD_HISTORY", 10),
		HandshakeTimeout:    envDurationOr("INTERVIEW_HANDSHAKE_TIMEOUT", 10*time.Second),
		WSPingInterval:      envDurationOr("INTERVIEW_WS_PING_INTERVAL", 20*time.Second),
		WSWriteTimeout:      envDurationOr("INTERVIEW_WS_WRITE_TIMEOUT", 5*time.Second),
		WSReadTimeout:       envDurationOr("INTERVIEW_WS_READ_TIMEOUT", 60*time.Second),
		MaxMessageBytes:     envInt64Or("INTERVIEW_MAX_MESSAGE_BYTES", 256<<10),
		MaxSessionDuration:  envDurationOr("INTERVIEW_MAX_SESSION_DURATION", 2*time.Hour),
		TenantMaxSessions:   envIntOr("INTERVIEW_TENANT_MAX_SESSIONS", 0),
		TenantConnectRPS:    envFloat64Or("INTERVIEW_TENANT_CONNECT_RPS", 0),
		TenantConnectBurst:  envIntOr("INTERVIEW_TENANT_CONNECT_BURST", 0),
		ProgressPoll:        envDurationOr("INTERVIEW_PROGRESS_POLL_INTERVAL", time.Second),
		ReadHeaderTimeout:   envDurationOr("INTERVIEW_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod: envDurationOr("INTERVIEW_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		LogLevel:            strings.ToLower(envOr("INTERVIEW_LOG_LEVEL", "info")),
		LogJSON:             envBoolOr("INTERVIEW_LOG_JSON", false),
	}

	for _, origin := range splitCSV(os.Getenv("INTERVIEW_ALLOWED_ORIGINS")) {
		cfg.AllowedOrigins[origin] = struct{}{}
	}

	if cfg.CredentialSecret == "" {
		return Config{}, fmt.Errorf("INTERVIEW_CREDENTIAL_SECRET must be set")
	}
	if len(cfg.CredentialSecret) < 16 {
		return Config{}, fmt.Errorf("INTERVIEW_CREDENTIAL_SECRET must be at least 16 bytes")
	}
	if cfg.CredentialTTL <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_CREDENTIAL_TTL must be > 0")
	}
	if cfg.DatabaseURL == "" && strings.TrimSpace(cfg.CatalogPath) == "" {
		return Config{}, fmt.Errorf("one of INTERVIEW_DATABASE_URL or INTERVIEW_CATALOG_PATH must be set")
	}
	if cfg.TTSSampleRate <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_TTS_SAMPLE_RATE must be > 0")
	}
	if cfg.ProviderConnect <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_PROVIDER_CONNECT_TIMEOUT must be > 0")
	}
	if cfg.AudioRealtimeCap < 0 {
		return Config{}, fmt.Errorf("INTERVIEW_AUDIO_REALTIME_FACTOR must be >= 0")
	}

	switch cfg.Scorer {
	case ScorerGemini:
		if cfg.GeminiAPIKey == "" {
			return Config{}, fmt.Errorf("GEMINI_API_KEY must be set when INTERVIEW_SCORER=gemini")
		}
	case ScorerOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return Config{}, fmt.Errorf("OPENAI_API_KEY must be set when INTERVIEW_SCORER=openai")
		}
	case ScorerNone:
	default:
		return Config{}, fmt.Errorf("INTERVIEW_SCORER must be one of gemini|openai|none")
	}
	if cfg.EvalTimeout < minEvalTimeout {
		cfg.EvalTimeout = minEvalTimeout
	}
	if cfg.EvalTimeout > maxEvalTimeout {
		cfg.EvalTimeout = maxEvalTimeout
	}

	if cfg.QuestionBudget <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_QUESTION_BUDGET must be > 0")
	}
	if cfg.TickInterval <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_TICK_INTERVAL must be > 0")
	}
	if cfg.VADHistory <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_VAD_HISTORY must be > 0")
	}
	if cfg.VADExit < 0 || cfg.VADEnter > 1 || cfg.VADEnter <= cfg.VADExit {
		return Config{}, fmt.Errorf("INTERVIEW_VAD_ENTER must be in (INTERVIEW_VAD_EXIT, 1] and INTERVIEW_VAD_EXIT >= 0")
	}

	if cfg.HandshakeTimeout <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_HANDSHAKE_TIMEOUT must be > 0")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSReadTimeout < 0 {
		return Config{}, fmt.Errorf("INTERVIEW_WS_READ_TIMEOUT must be >= 0")
	}
	if cfg.WSReadTimeout > 0 && cfg.WSReadTimeout <= cfg.WSPingInterval {
		return Config{}, fmt.Errorf("INTERVIEW_WS_READ_TIMEOUT must exceed INTERVIEW_WS_PING_INTERVAL")
	}
	if cfg.MaxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_MAX_MESSAGE_BYTES must be > 0")
	}
	if cfg.MaxSessionDuration <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_MAX_SESSION_DURATION must be > 0")
	}
	if cfg.TenantMaxSessions < 0 {
		return Config{}, fmt.Errorf("INTERVIEW_TENANT_MAX_SESSIONS must be >= 0")
	}
	if cfg.TenantConnectRPS < 0 || cfg.TenantConnectBurst < 0 {
		return Config{}, fmt.Errorf("INTERVIEW_TENANT_CONNECT_RPS and INTERVIEW_TENANT_CONNECT_BURST must be >= 0")
	}
	if (cfg.TenantConnectRPS > 0) != (cfg.TenantConnectBurst > 0) {
		return Config{}, fmt.Errorf("INTERVIEW_TENANT_CONNECT_RPS and INTERVIEW_TENANT_CONNECT_BURST must be set together")
	}
	if cfg.ProgressPoll <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_PROGRESS_POLL_INTERVAL must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("INTERVIEW_LOG_LEVEL must be one of debug|info|warn|error")
	}

	return cfg, nil
}

// SpeechEnabled reports whether Cartesia credentials are configured.
func (c Config) SpeechEnabled() bool {
	return c.CartesiaAPIKey != ""
}

// OriginAllowed applies the origin allow-list. Requests without an Origin
// header are not browser requests and are allowed.
func (c Config) OriginAllowed(origin string) bool {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return true
	}
	_, ok := c.AllowedOrigins[origin]
	return ok
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
