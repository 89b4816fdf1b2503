package tts

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/lexiqai/voice-relay/internal/observability"
	"github.com/lexiqai/voice-relay/internal/resilience"
)

// Synthesis is a successful synthesis. URLs are in text order.
type Synthesis struct {
	URLs    []string
	Voice   string
	Warning string
}

// Adapter chunks text to the provider limit and normalizes failures into *Error.
type Adapter struct {
	provider        Provider
	catalog         *VoiceCatalog
	breaker         *resilience.CircuitBreaker
	requestTimeout  time.Duration
	fallbackTimeout time.Duration
}

// NewAdapter wraps provider. breaker may be nil.
func NewAdapter(provider Provider, catalog *VoiceCatalog, breaker *resilience.CircuitBreaker) *Adapter {
	return &Adapter{
		provider:        provider,
		catalog:         catalog,
		breaker:         breaker,
		requestTimeout:  RequestTimeout,
		fallbackTimeout: FallbackTimeout,
	}
}

// ResolveVoice returns voiceID verbatim when set, else the catalog default.
func (a *Adapter) ResolveVoice(voiceID string) string {
	if strings.TrimSpace(voiceID) != "" {
		return voiceID
	}
	if a.catalog == nil {
		return PreferredVoice
	}
	return a.catalog.DefaultVoice()
}

// Synthesize submits text in MaxChars pieces, in order. The first failing
// piece aborts the rest.
func (a *Adapter) Synthesize(ctx context.Context, text, voiceID string) (*Synthesis, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	chunks := SplitText(text, MaxChars)
	if len(chunks) == 0 {
		return nil, ErrEmptyText
	}

	voice := a.ResolveVoice(voiceID)
	logger := observability.LoggerFrom(ctx)

	urls := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		url, err := a.generate(ctx, chunk, voice, a.requestTimeout)
		if err != nil {
			synthErr := a.classify(err)
			if len(chunks) > 1 {
				synthErr.Chunk = i + 1
				synthErr.Chunks = len(chunks)
			}
			logger.Error().
				Err(synthErr).
				Str("voice", voice).
				Int("chunk", i+1).
				Int("chunks", len(chunks)).
				Msg("Speech synthesis failed")
			return nil, synthErr
		}
		urls = append(urls, url)
	}

	observability.RecordSynthesisChunks(len(chunks))
	result := &Synthesis{URLs: urls, Voice: voice}
	if len(urls) > 1 {
		result.Warning = SplitWarning
		logger.Warn().Int("chunks", len(urls)).Msg("Synthesis split across multiple requests")
	}
	return result, nil
}

// SynthesizeFallback speaks a short apology with the default voice. Failures
// are logged and yield "".
func (a *Adapter) SynthesizeFallback(ctx context.Context, message string) string {
	chunks := SplitText(message, fallbackMaxChars)
	if len(chunks) == 0 {
		return ""
	}

	url, err := a.generate(ctx, chunks[0], a.ResolveVoice(""), a.fallbackTimeout)
	if err != nil {
		observability.RecordFallback(false)
		observability.LoggerFrom(ctx).Warn().
			Err(a.classify(err)).
			Str("detail", message).
			Msg("Fallback audio generation failed")
		return ""
	}
	observability.RecordFallback(true)
	return url
}

// Healthy reports whether synthesis requests are currently let through.
func (a *Adapter) Healthy(ctx context.Context) (bool, error) {
	if a.breaker == nil {
		return true, nil
	}
	return a.breaker.Healthy(ctx)
}

func (a *Adapter) generate(ctx context.Context, text, voice string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := Request{Text: text, VoiceID: voice, Format: OutputFormat, SampleRate: SampleRate}

	var resp ProviderResponse
	call := func(ctx context.Context) error {
		var err error
		resp, err = a.provider.Generate(ctx, req)
		if err == nil && strings.TrimSpace(resp.AudioURL) == "" {
			err = &Error{Kind: KindMissingAudioReference, Message: "provider returned no audio reference"}
		}
		return err
	}

	var err error
	if a.breaker != nil {
		err = a.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.AudioURL), nil
}

func (a *Adapter) classify(err error) *Error {
	var synthErr *Error
	if errors.As(err, &synthErr) {
		out := *synthErr
		if out.Provider == "" {
			out.Provider = a.provider.Name()
		}
		if out.Err == nil && synthErr != err {
			out.Err = err
		}
		return &out
	}

	out := &Error{Provider: a.provider.Name(), Message: err.Error(), Err: err}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		out.Kind = KindTimeout
		out.Message = "the voice service did not respond in time"
	default:
		out.Kind = KindConnection
	}
	return out
}
