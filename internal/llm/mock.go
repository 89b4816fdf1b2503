package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/lexiqai/voice-relay/internal/session"
)

// MockProvider answers with a fixed reply, or echoes the prompt when Reply is empty.
type MockProvider struct {
	Reply string
	Err   error

	mu          sync.Mutex
	calls       int
	lastHistory []session.Turn
	lastPrompt  string
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Chat(ctx context.Context, history []session.Turn, prompt string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.lastHistory = append([]session.Turn(nil), history...)
	m.lastPrompt = prompt
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	if m.Reply != "" {
		return m.Reply, nil
	}
	return fmt.Sprintf("You said: %s", prompt), nil
}

// Calls returns how many times Chat was invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastRequest returns the history and prompt of the most recent call.
func (m *MockProvider) LastRequest() ([]session.Turn, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHistory, m.lastPrompt
}
