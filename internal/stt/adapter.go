package stt

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lexiqai/voice-relay/internal/observability"
	"github.com/lexiqai/voice-relay/internal/resilience"
)

// Adapter normalizes provider results into text or a typed *Error.
type Adapter struct {
	provider Provider
	breaker  *resilience.CircuitBreaker
	timeout  time.Duration
}

// NewAdapter wraps provider. breaker may be nil.
func NewAdapter(provider Provider, breaker *resilience.CircuitBreaker) *Adapter {
	return &Adapter{
		provider: provider,
		breaker:  breaker,
		timeout:  RequestTimeout,
	}
}

// Transcribe makes a single bounded attempt at transcribing audio.
func (a *Adapter) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var text string
	call := func(ctx context.Context) error {
		var err error
		text, err = a.provider.Transcribe(ctx, audio, mimeType)
		return err
	}

	var err error
	if a.breaker != nil {
		err = a.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}

	logger := observability.LoggerFrom(ctx)
	if err != nil {
		logger.Error().Err(err).Str("provider", a.provider.Name()).Msg("Transcription failed")
		return "", &Error{
			Kind:     KindFailed,
			Provider: a.provider.Name(),
			Message:  failureMessage(err),
			Err:      err,
		}
	}

	if strings.TrimSpace(text) == "" {
		logger.Info().Str("provider", a.provider.Name()).Msg("No speech detected")
		return "", &Error{
			Kind:     KindNoSpeech,
			Provider: a.provider.Name(),
			Message:  "the audio did not contain any recognizable speech",
		}
	}

	logger.Debug().Int("chars", len(text)).Msg("Transcription complete")
	return text, nil
}

// Healthy reports whether transcription requests are currently let through.
func (a *Adapter) Healthy(ctx context.Context) (bool, error) {
	if a.breaker == nil {
		return true, nil
	}
	return a.breaker.Healthy(ctx)
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "transcription timed out"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "transcription service temporarily unavailable"
	default:
		return err.Error()
	}
}
