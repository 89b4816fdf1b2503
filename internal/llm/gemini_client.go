package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/lexiqai/voice-relay/internal/config"
	"github.com/lexiqai/voice-relay/internal/session"
)

const geminiAPIVersion = "v1beta"

// GeminiClient opens a Gemini chat seeded with the session history for every
// request.
type GeminiClient struct {
	client  *genai.Client
	initErr error
	model   string
}

// NewGeminiClient creates a Gemini client from configuration. A client that
// cannot be built reports the failure on every Chat call.
func NewGeminiClient(cfg *config.Config) *GeminiClient {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    strings.TrimSpace(cfg.GeminiBaseURL),
			APIVersion: geminiAPIVersion,
		},
	})
	if err != nil {
		err = fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiClient{client: client, initErr: err, model: cfg.GeminiModel}
}

func (g *GeminiClient) Name() string {
	return config.ProviderGemini
}

// Chat implements Provider. History turns become the chat's prior contents
// with the agent mapped to Gemini's "model" role.
func (g *GeminiClient) Chat(ctx context.Context, history []session.Turn, prompt string) (string, error) {
	if g.initErr != nil {
		return "", g.initErr
	}

	chat, err := g.client.Chats.Create(ctx, g.model, nil, geminiHistory(history))
	if err != nil {
		return "", geminiError(err)
	}
	resp, err := chat.SendMessage(ctx, genai.Part{Text: prompt})
	if err != nil {
		return "", geminiError(err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &EmptyResponseError{Provider: config.ProviderGemini}
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &EmptyResponseError{Provider: config.ProviderGemini}
	}
	return sb.String(), nil
}

func geminiHistory(history []session.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		var role genai.Role = genai.RoleUser
		if turn.Role == session.RoleAgent {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}
	return contents
}

// geminiError maps SDK API failures onto *APIError so the subtype reported
// upstream names the failure rather than the SDK type.
func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.Code, Message: apiErr.Message, Provider: config.ProviderGemini}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &APIError{StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message, Provider: config.ProviderGemini}
	}
	return fmt.Errorf("gemini: %w", err)
}
