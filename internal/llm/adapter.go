package llm

import (
	"context"
	"errors"
	"reflect"
	"time"

	"github.com/lexiqai/voice-relay/internal/observability"
	"github.com/lexiqai/voice-relay/internal/resilience"
	"github.com/lexiqai/voice-relay/internal/session"
)

// Adapter makes one bounded generation attempt per call.
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

// Generate returns the model's reply to prompt. history is passed to the
// provider as prior conversation and may be empty.
func (a *Adapter) Generate(ctx context.Context, prompt string, history []session.Turn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var reply string
	call := func(ctx context.Context) error {
		var err error
		reply, err = a.provider.Chat(ctx, history, prompt)
		return err
	}

	var err error
	if a.breaker != nil {
		err = a.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		genErr := &Error{
			Provider: a.provider.Name(),
			Subtype:  subtypeOf(err),
			Message:  err.Error(),
			Err:      err,
		}
		observability.LoggerFrom(ctx).Error().
			Err(err).
			Str("provider", genErr.Provider).
			Str("subtype", genErr.Subtype).
			Int("history_turns", len(history)).
			Msg("Response generation failed")
		return "", genErr
	}

	return reply, nil
}

// Healthy reports whether generation requests are currently let through.
func (a *Adapter) Healthy(ctx context.Context) (bool, error) {
	if a.breaker == nil {
		return true, nil
	}
	return a.breaker.Healthy(ctx)
}

func subtypeOf(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "error"
	}
	return t.Name()
}
