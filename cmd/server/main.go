package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lexiqai/voice-relay/internal/config"
	"github.com/lexiqai/voice-relay/internal/httpapi"
	"github.com/lexiqai/voice-relay/internal/llm"
	"github.com/lexiqai/voice-relay/internal/observability"
	"github.com/lexiqai/voice-relay/internal/orchestrator"
	"github.com/lexiqai/voice-relay/internal/resilience"
	"github.com/lexiqai/voice-relay/internal/session"
	"github.com/lexiqai/voice-relay/internal/stt"
	"github.com/lexiqai/voice-relay/internal/tts"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		if errors.Is(err, config.ErrServiceUnavailable) {
			fmt.Fprintf(os.Stderr, "Refusing to start: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		}
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	observability.Version = config.GetEnv("SERVICE_VERSION", observability.Version)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("version", observability.Version).
		Str("stt_provider", cfg.STTProvider).
		Str("llm_provider", cfg.LLMProvider).
		Str("tts_provider", cfg.TTSProvider).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Voice Relay Service starting")

	var breakers []*resilience.CircuitBreaker
	newBreaker := func(name string) *resilience.CircuitBreaker {
		cb := resilience.NewCircuitBreaker(name, cfg.CircuitBreakerMaxFailures, cfg.CircuitBreakerResetTimeout)
		breakers = append(breakers, cb)
		return cb
	}

	transcriber := stt.NewAdapter(newTranscriptionProvider(cfg), newBreaker("stt"))
	generator := llm.NewAdapter(newGenerationProvider(cfg), newBreaker("llm"))

	speech := newSpeechProvider(cfg)
	catalog := tts.NewVoiceCatalog(speech, cfg.DefaultVoice, cfg.VoiceCatalogTTL, &resilience.RetryConfig{
		MaxAttempts:       cfg.RetryMaxAttempts,
		InitialBackoff:    cfg.RetryInitialBackoff,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	})
	synthesizer := tts.NewAdapter(speech, catalog, newBreaker("tts"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Warm the voice catalog and keep it within VOICE_CATALOG_TTL; requests
	// fall back to the seeded defaults meanwhile.
	go catalog.Watch(ctx)

	pipeline := orchestrator.New(transcriber, generator, synthesizer, session.NewMemoryStore(), cfg.MaxUploadBytes)

	checks := map[string]observability.HealthCheckFunc{
		"stt": transcriber.Healthy,
		"llm": generator.Healthy,
		"tts": synthesizer.Healthy,
	}

	api := httpapi.New(cfg, pipeline, catalog, checks)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// Long enough for three provider calls plus the fallback apology.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("http://localhost:%s/agent/chat/{session_id}", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	if cfg.GRPCHealthEnabled() {
		grpcHealth := observability.NewGRPCHealthServer(checks, 10*time.Second)
		go func() {
			if err := grpcHealth.Serve(ctx, fmt.Sprintf(":%s", cfg.GRPCHealthPort)); err != nil {
				logger.Error().Err(err).Msg("gRPC health server stopped")
			}
		}()
	}

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	for _, cb := range breakers {
		logger.Info().Str("breaker", cb.Name()).Str("state", cb.GetState().String()).Msg("Circuit breaker state at shutdown")
	}
	logger.Info().Msg("Server exited gracefully")
}

func newTranscriptionProvider(cfg *config.Config) stt.Provider {
	if cfg.STTProvider == config.ProviderMock {
		return stt.NewMockProvider("Hello, how are you today?")
	}
	return stt.NewDeepgramClient(cfg)
}

func newGenerationProvider(cfg *config.Config) llm.Provider {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		return llm.NewOpenAIClient(cfg)
	case config.ProviderMock:
		return &llm.MockProvider{}
	default:
		return llm.NewGeminiClient(cfg)
	}
}

func newSpeechProvider(cfg *config.Config) tts.Provider {
	if cfg.TTSProvider == config.ProviderMock {
		return &tts.MockProvider{}
	}
	return tts.NewMurfClient(cfg)
}
