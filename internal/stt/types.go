package stt

import (
	"context"
	"fmt"
	"time"
)

// RequestTimeout bounds a single transcription request.
const RequestTimeout = 15 * time.Second

// Provider is a speech-to-text backend.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Transcribe converts one complete recording to text. A provider-side
	// failure is returned as an error; an empty string is a valid result.
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Kind classifies transcription failures.
type Kind string

const (
	KindEmptyAudio Kind = "empty_audio"
	KindFailed     Kind = "transcription_failed"
	KindNoSpeech   Kind = "no_speech_detected"
)

// Error is returned by Adapter.Transcribe for every failure.
type Error struct {
	Kind     Kind
	Provider string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("stt %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("stt %s (%s): %s", e.Kind, e.Provider, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrEmptyAudio is returned for zero-length input. The provider is not called.
var ErrEmptyAudio = &Error{Kind: KindEmptyAudio, Message: "audio contains no data"}
