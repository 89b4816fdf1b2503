package tts

import (
	"context"
	"fmt"
	"time"
)

const (
	// MaxChars is the provider's hard limit per synthesis request, in characters.
	MaxChars = 3000

	// OutputFormat and SampleRate are fixed for every request.
	OutputFormat = "mp3"
	SampleRate   = 24000

	// PreferredVoice is chosen when the caller names no voice and the catalog offers it.
	PreferredVoice = "en-US-Natalie"

	// SplitWarning accompanies results that needed more than one request.
	SplitWarning = "Response exceeded 3000 characters - multiple audio files returned"
)

// Per-call-site timeouts. Not user-configurable.
const (
	RequestTimeout  = 15 * time.Second
	FallbackTimeout = 10 * time.Second
	CatalogTimeout  = 5 * time.Second
)

// fallbackMaxChars caps apology texts.
const fallbackMaxChars = 1000

// DefaultVoices seeds the catalog before any live refresh succeeds.
var DefaultVoices = []string{
	"en-US-Natalie", // American English, female
	"en-US-Mike",    // American English, male
	"en-GB-Lucy",    // British English, female
	"hi-IN-Priya",   // Hindi, female
	"es-ES-Enrique", // Spanish, male
}

// Request is one provider synthesis call.
type Request struct {
	Text       string
	VoiceID    string
	Format     string
	SampleRate int
}

// ProviderResponse is the normalized provider answer.
type ProviderResponse struct {
	AudioURL string
}

// Provider is a text-to-speech backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (ProviderResponse, error)
	ListVoices(ctx context.Context) ([]string, error)
}

// Kind classifies synthesis failures.
type Kind string

const (
	KindProviderError         Kind = "provider_error"
	KindMissingAudioReference Kind = "missing_audio_reference"
	KindTimeout               Kind = "timeout"
	KindConnection            Kind = "connection_error"
	KindEmptyText             Kind = "empty_text"
)

// Error is returned for every failed synthesis.
type Error struct {
	Kind       Kind
	Provider   string
	StatusCode int    // set for KindProviderError
	Message    string
	Chunk      int // 1-based chunk that failed, 0 when not chunked
	Chunks     int
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("tts %s", e.Kind)
	if e.Provider != "" {
		msg += " (" + e.Provider + ")"
	}
	if e.Chunks > 1 {
		msg += fmt.Sprintf(" chunk %d/%d", e.Chunk, e.Chunks)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrEmptyText is returned when there is nothing to synthesize.
var ErrEmptyText = &Error{Kind: KindEmptyText, Message: "no text to synthesize"}
