package tts

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider serves predictable audio references. Used for local development and tests.
type MockProvider struct {
	// BaseURL prefixes generated references.
	BaseURL string
	// Voices is returned by ListVoices; nil means DefaultVoices.
	Voices []string
	// FailOn makes the n-th Generate call (1-based) return Err.
	FailOn int
	Err    error
	// Hang blocks Generate until the context is done.
	Hang bool

	mu       sync.Mutex
	requests []Request
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Generate(ctx context.Context, req Request) (ProviderResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	n := len(m.requests)
	m.mu.Unlock()

	if m.Hang {
		<-ctx.Done()
		return ProviderResponse{}, ctx.Err()
	}
	if m.Err != nil && (m.FailOn == 0 || m.FailOn == n) {
		return ProviderResponse{}, m.Err
	}

	base := m.BaseURL
	if base == "" {
		base = "https://mock.local/audio"
	}
	return ProviderResponse{AudioURL: fmt.Sprintf("%s/%d.mp3", base, n)}, nil
}

func (m *MockProvider) ListVoices(ctx context.Context) ([]string, error) {
	if m.Voices == nil {
		return append([]string(nil), DefaultVoices...), nil
	}
	return append([]string(nil), m.Voices...), nil
}

// Requests returns every Generate request received so far.
func (m *MockProvider) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}
