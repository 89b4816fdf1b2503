package config

import (
	"errors"
	"os"
	"reflect"
	"testing"
	"time"
)

func setRequiredKeys(t *testing.T) {
	t.Helper()
	t.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	t.Setenv("GEMINI_API_KEY", "test-gemini-key")
	t.Setenv("MURF_API_KEY", "test-murf-key")
}

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DEEPGRAM_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY", "MURF_API_KEY",
		"STT_PROVIDER", "LLM_PROVIDER", "TTS_PROVIDER", "LOG_LEVEL", "MURF_AUDIO_FIELDS",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearProviderEnv(t)
	setRequiredKeys(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "test-deepgram-key" {
		t.Errorf("Expected DeepgramAPIKey 'test-deepgram-key', got '%s'", cfg.DeepgramAPIKey)
	}
	if cfg.MurfAPIKey != "test-murf-key" {
		t.Errorf("Expected MurfAPIKey 'test-murf-key', got '%s'", cfg.MurfAPIKey)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	clearProviderEnv(t)

	_, err := LoadFromEnv()
	if err == nil {
		t.Fatal("Expected error when required keys are missing")
	}
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("Expected ErrServiceUnavailable, got %v", err)
	}
}

func TestLoad_MissingOnlySelectedProviderKeys(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("STT_PROVIDER", "mock")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("TTS_PROVIDER", "mock")

	_, err := LoadFromEnv()
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("Expected ErrServiceUnavailable, got %v", err)
	}

	t.Setenv("OPENAI_API_KEY", "test-openai-key")
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}
	if got := cfg.MissingCredentials(); len(got) != 0 {
		t.Errorf("Expected no missing credentials, got %v", got)
	}
}

func TestLoad_InvalidProvider(t *testing.T) {
	clearProviderEnv(t)
	setRequiredKeys(t)
	t.Setenv("LLM_PROVIDER", "claude")

	_, err := LoadFromEnv()
	if err == nil {
		t.Fatal("Expected error for unknown LLM_PROVIDER")
	}
	if errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("Unknown provider should not be reported as service unavailable: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearProviderEnv(t)
	setRequiredKeys(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}
	if cfg.MaxUploadBytes != 16*1024*1024 {
		t.Errorf("Expected default MaxUploadBytes 16 MiB, got %d", cfg.MaxUploadBytes)
	}
	if cfg.STTProvider != ProviderDeepgram || cfg.LLMProvider != ProviderGemini || cfg.TTSProvider != ProviderMurf {
		t.Errorf("Unexpected default providers: %s/%s/%s", cfg.STTProvider, cfg.LLMProvider, cfg.TTSProvider)
	}
	if cfg.DeepgramModel != "nova-2" {
		t.Errorf("Expected default DeepgramModel 'nova-2', got '%s'", cfg.DeepgramModel)
	}
	if cfg.DefaultVoice != "en-US-Natalie" {
		t.Errorf("Expected default DefaultVoice 'en-US-Natalie', got '%s'", cfg.DefaultVoice)
	}
	wantFields := []string{"audioFile", "audioStreamUrl", "url", "audio_url"}
	if !reflect.DeepEqual(cfg.MurfAudioFields, wantFields) {
		t.Errorf("Expected default MurfAudioFields %v, got %v", wantFields, cfg.MurfAudioFields)
	}
	if cfg.VoiceCatalogTTL != 10*time.Minute {
		t.Errorf("Expected default VoiceCatalogTTL 10m, got %v", cfg.VoiceCatalogTTL)
	}
	if !cfg.GRPCHealthEnabled() {
		t.Error("Expected gRPC health server enabled by default")
	}
}

func TestConfig_ResilienceDefaults(t *testing.T) {
	clearProviderEnv(t)
	setRequiredKeys(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.CircuitBreakerMaxFailures != 5 {
		t.Errorf("Expected default CircuitBreakerMaxFailures 5, got %d", cfg.CircuitBreakerMaxFailures)
	}
	if cfg.CircuitBreakerResetTimeout != 30*time.Second {
		t.Errorf("Expected default CircuitBreakerResetTimeout 30s, got %v", cfg.CircuitBreakerResetTimeout)
	}
	if cfg.RetryMaxAttempts != 2 {
		t.Errorf("Expected default RetryMaxAttempts 2, got %d", cfg.RetryMaxAttempts)
	}
}

func TestConfig_ObservabilityDefaults(t *testing.T) {
	clearProviderEnv(t)
	setRequiredKeys(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}
	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_KEY", "test-value")

	value := GetEnv("TEST_KEY", "default")
	if value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}

	value = GetEnv("NON_EXISTENT_KEY", "default")
	if value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}
