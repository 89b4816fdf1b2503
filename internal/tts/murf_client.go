package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/lexiqai/voice-relay/internal/config"
	"github.com/lexiqai/voice-relay/internal/resilience"
)

const maxResponseBytes = 2 << 20

// MurfClient implements Provider against the Murf REST API.
type MurfClient struct {
	apiKey      string
	baseURL     string
	audioFields []string
	http        *http.Client
}

// NewMurfClient creates a new Murf client
func NewMurfClient(cfg *config.Config) *MurfClient {
	return &MurfClient{
		apiKey:      cfg.MurfAPIKey,
		baseURL:     strings.TrimRight(cfg.MurfBaseURL, "/"),
		audioFields: cfg.MurfAudioFields,
		http:        &http.Client{},
	}
}

type murfGenerateRequest struct {
	Text       string `json:"text"`
	VoiceID    string `json:"voiceId"`
	Format     string `json:"format"`
	SampleRate int    `json:"sampleRate"`
}

func (m *MurfClient) Name() string {
	return config.ProviderMurf
}

// Generate implements Provider. Transport errors are returned unwrapped for
// the adapter to classify.
func (m *MurfClient) Generate(ctx context.Context, req Request) (ProviderResponse, error) {
	body, err := sonic.Marshal(murfGenerateRequest{
		Text:       req.Text,
		VoiceID:    req.VoiceID,
		Format:     req.Format,
		SampleRate: req.SampleRate,
	})
	if err != nil {
		return ProviderResponse{}, fmt.Errorf("murf: encode request: %w", err)
	}

	raw, status, err := m.do(ctx, http.MethodPost, "/speech/generate", body)
	if err != nil {
		return ProviderResponse{}, err
	}
	if status < 200 || status >= 300 {
		return ProviderResponse{}, &Error{
			Kind:       KindProviderError,
			Provider:   config.ProviderMurf,
			StatusCode: status,
			Message:    strings.TrimSpace(string(raw)),
		}
	}

	var payload map[string]any
	if err := sonic.Unmarshal(raw, &payload); err != nil {
		return ProviderResponse{}, &Error{
			Kind:     KindMissingAudioReference,
			Provider: config.ProviderMurf,
			Message:  "response is not a JSON object",
			Err:      err,
		}
	}

	url, ok := ExtractAudioReference(payload, m.audioFields)
	if !ok {
		return ProviderResponse{}, &Error{
			Kind:     KindMissingAudioReference,
			Provider: config.ProviderMurf,
			Message: fmt.Sprintf("no audio reference in response (keys: %s; accepted: %s)",
				strings.Join(sortedKeys(payload), ","), strings.Join(m.audioFields, ",")),
		}
	}
	return ProviderResponse{AudioURL: url}, nil
}

// ListVoices implements Provider. Murf answers with either a bare list or an
// object holding a "voices" list.
func (m *MurfClient) ListVoices(ctx context.Context) ([]string, error) {
	raw, status, err := m.do(ctx, http.MethodGet, "/speech/voices", nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		err := &Error{
			Kind:       KindProviderError,
			Provider:   config.ProviderMurf,
			StatusCode: status,
			Message:    strings.TrimSpace(string(raw)),
		}
		if status >= 500 || status == http.StatusTooManyRequests {
			return nil, resilience.NewRetryableError(err)
		}
		return nil, err
	}

	var decoded any
	if err := sonic.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("murf: decode voices: %w", err)
	}
	return parseVoiceIDs(decoded), nil
}

func (m *MurfClient) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("murf: build request: %w", err)
	}
	req.Header.Set("api-key", m.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return raw, resp.StatusCode, nil
}

// ExtractAudioReference returns the first non-empty string among fields, in order.
func ExtractAudioReference(payload map[string]any, fields []string) (string, bool) {
	for _, field := range fields {
		if v, ok := payload[field].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

func parseVoiceIDs(decoded any) []string {
	var items []any
	switch v := decoded.(type) {
	case []any:
		items = v
	case map[string]any:
		items, _ = v["voices"].([]any)
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := obj["voiceId"].(string); ok && strings.TrimSpace(id) != "" {
			ids = append(ids, strings.TrimSpace(id))
		}
	}
	return ids
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
