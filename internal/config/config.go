package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ErrServiceUnavailable is returned when credentials for a selected provider are missing.
// The service must not start serving in that state.
var ErrServiceUnavailable = errors.New("service unavailable")

// Provider names accepted by the *_PROVIDER settings.
const (
	ProviderDeepgram = "deepgram"
	ProviderGemini   = "gemini"
	ProviderOpenAI   = "openai"
	ProviderMurf     = "murf"
	ProviderMock     = "mock"
)

// Config holds all configuration for the voice relay service
type Config struct {
	// Server configuration
	Port           string `envconfig:"PORT" default:"8080"`
	GRPCHealthPort string `envconfig:"GRPC_HEALTH_PORT" default:"9090"` // "0" disables the gRPC health server
	UploadDir      string `envconfig:"UPLOAD_DIR" default:"uploads"`
	MaxUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"16777216"` // 16 MiB

	// Provider selection
	STTProvider string `envconfig:"STT_PROVIDER" default:"deepgram"` // deepgram, mock
	LLMProvider string `envconfig:"LLM_PROVIDER" default:"gemini"`   // gemini, openai, mock
	TTSProvider string `envconfig:"TTS_PROVIDER" default:"murf"`     // murf, mock

	// Deepgram STT API configuration
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY"`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`

	// Gemini generation configuration
	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	GeminiModel   string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	GeminiBaseURL string `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com/"`

	// OpenAI generation configuration
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:""`

	// Murf TTS API configuration
	MurfAPIKey      string   `envconfig:"MURF_API_KEY"`
	MurfBaseURL     string   `envconfig:"MURF_BASE_URL" default:"https://api.murf.ai/v1"`
	MurfAudioFields []string `envconfig:"MURF_AUDIO_FIELDS" default:"audioFile,audioStreamUrl,url,audio_url"` // Checked in order

	// Voice selection
	DefaultVoice    string        `envconfig:"DEFAULT_VOICE" default:"en-US-Natalie"`
	VoiceCatalogTTL time.Duration `envconfig:"VOICE_CATALOG_TTL" default:"10m"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int           `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout time.Duration `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30s"`
	RetryMaxAttempts           int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"2"` // Voice catalog refresh only
	RetryInitialBackoff        time.Duration `envconfig:"RETRY_INITIAL_BACKOFF" default:"100ms"`

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.STTProvider = normalize(cfg.STTProvider)
	cfg.LLMProvider = normalize(cfg.LLMProvider)
	cfg.TTSProvider = normalize(cfg.TTSProvider)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.STTProvider {
	case ProviderDeepgram, ProviderMock:
	default:
		return fmt.Errorf("invalid STT_PROVIDER %q (expected deepgram|mock)", c.STTProvider)
	}
	switch c.LLMProvider {
	case ProviderGemini, ProviderOpenAI, ProviderMock:
	default:
		return fmt.Errorf("invalid LLM_PROVIDER %q (expected gemini|openai|mock)", c.LLMProvider)
	}
	switch c.TTSProvider {
	case ProviderMurf, ProviderMock:
	default:
		return fmt.Errorf("invalid TTS_PROVIDER %q (expected murf|mock)", c.TTSProvider)
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.CircuitBreakerMaxFailures <= 0 {
		return fmt.Errorf("CIRCUIT_BREAKER_MAX_FAILURES must be positive")
	}
	if c.RetryMaxAttempts <= 0 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be positive")
	}
	if len(c.MurfAudioFields) == 0 {
		return fmt.Errorf("MURF_AUDIO_FIELDS must list at least one field")
	}

	if missing := c.MissingCredentials(); len(missing) > 0 {
		return fmt.Errorf("%w: missing API keys for %s", ErrServiceUnavailable, strings.Join(missing, ", "))
	}
	return nil
}

// MissingCredentials lists the environment keys required by the selected
// providers that are not set.
func (c *Config) MissingCredentials() []string {
	var missing []string
	if c.STTProvider == ProviderDeepgram && strings.TrimSpace(c.DeepgramAPIKey) == "" {
		missing = append(missing, "DEEPGRAM_API_KEY")
	}
	if c.LLMProvider == ProviderGemini && strings.TrimSpace(c.GeminiAPIKey) == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if c.LLMProvider == ProviderOpenAI && strings.TrimSpace(c.OpenAIAPIKey) == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.TTSProvider == ProviderMurf && strings.TrimSpace(c.MurfAPIKey) == "" {
		missing = append(missing, "MURF_API_KEY")
	}
	return missing
}

// GRPCHealthEnabled reports whether the gRPC health server should be started.
func (c *Config) GRPCHealthEnabled() bool {
	return c.GRPCHealthPort != "" && c.GRPCHealthPort != "0"
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
