package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/lexiqai/voice-relay/internal/session"
)

// RequestTimeout bounds a single generation request.
const RequestTimeout = 15 * time.Second

// Provider is a conversational language model.
type Provider interface {
	Name() string

	// Chat sends prompt as the next user message after history and returns the reply.
	Chat(ctx context.Context, history []session.Turn, prompt string) (string, error)
}

// Error wraps any provider failure. Subtype is the type name of the innermost error.
type Error struct {
	Provider string
	Subtype  string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("llm %s (%s): %s", e.Subtype, e.Provider, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// APIError is a non-success response from a provider's HTTP API.
type APIError struct {
	StatusCode int
	Message    string
	Provider   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// EmptyResponseError is returned when the provider answered without any content.
type EmptyResponseError struct {
	Provider string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("%s: no response content", e.Provider)
}
