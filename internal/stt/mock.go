package stt

import (
	"context"
	"sync/atomic"
)

// MockProvider returns a fixed transcript. Used for local development and tests.
type MockProvider struct {
	Text string
	Err  error

	calls atomic.Int64
}

// NewMockProvider creates a mock that always hears text.
func NewMockProvider(text string) *MockProvider {
	return &MockProvider{Text: text}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Text, nil
}

// Calls returns how many times Transcribe was invoked.
func (m *MockProvider) Calls() int {
	return int(m.calls.Load())
}
