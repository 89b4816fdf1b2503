package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"

	"github.com/lexiqai/voice-relay/internal/config"
	"github.com/lexiqai/voice-relay/internal/session"
)

func testHistory() []session.Turn {
	return []session.Turn{
		{Role: session.RoleUser, Text: "What's your name?"},
		{Role: session.RoleAgent, Text: "I'm your voice agent."},
	}
}

type geminiWireRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
}

func TestGeminiClient_Chat(t *testing.T) {
	var captured geminiWireRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1beta/models/gemini-test:generateContent") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "gem-key" {
			t.Errorf("Expected API key header, got %q", r.Header.Get("x-goog-api-key"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := sonic.Unmarshal(body, &captured); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"I'm doing "},{"text":"well, thank you!"}]},"finishReason":"STOP"}]}`)
	}))
	defer server.Close()

	client := NewGeminiClient(&config.Config{
		GeminiAPIKey:  "gem-key",
		GeminiModel:   "gemini-test",
		GeminiBaseURL: server.URL + "/",
	})

	reply, err := client.Chat(context.Background(), testHistory(), "How are you?")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if reply != "I'm doing well, thank you!" {
		t.Errorf("Unexpected reply %q", reply)
	}

	if len(captured.Contents) != 3 {
		t.Fatalf("Expected 3 contents, got %d", len(captured.Contents))
	}
	roles := []string{captured.Contents[0].Role, captured.Contents[1].Role, captured.Contents[2].Role}
	if roles[0] != "user" || roles[1] != "model" || roles[2] != "user" {
		t.Errorf("Unexpected roles %v", roles)
	}
	if captured.Contents[2].Parts[0].Text != "How are you?" {
		t.Errorf("Expected prompt as last content, got %q", captured.Contents[2].Parts[0].Text)
	}
}

func TestGeminiClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`)
	}))
	defer server.Close()

	client := NewGeminiClient(&config.Config{GeminiAPIKey: "k", GeminiModel: "m", GeminiBaseURL: server.URL + "/"})
	_, err := client.Chat(context.Background(), nil, "hi")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "API key not valid" {
		t.Errorf("Unexpected API error %+v", apiErr)
	}
}

func TestGeminiClient_EmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"candidates":[]}`)
	}))
	defer server.Close()

	client := NewGeminiClient(&config.Config{GeminiAPIKey: "k", GeminiModel: "m", GeminiBaseURL: server.URL + "/"})
	_, err := client.Chat(context.Background(), nil, "hi")

	var emptyErr *EmptyResponseError
	if !errors.As(err, &emptyErr) {
		t.Errorf("Expected *EmptyResponseError, got %v", err)
	}
}

func TestOpenAIClient_Chat(t *testing.T) {
	var captured struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer oa-key" {
			t.Errorf("Unexpected Authorization header %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		_ = sonic.Unmarshal(body, &captured)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","model":"gpt-test","choices":[{"index":0,"message":{"role":"assistant","content":"Sure thing."},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	client := NewOpenAIClient(&config.Config{
		OpenAIAPIKey:  "oa-key",
		OpenAIModel:   "gpt-test",
		OpenAIBaseURL: server.URL,
	})

	reply, err := client.Chat(context.Background(), testHistory(), "Can you help?")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if reply != "Sure thing." {
		t.Errorf("Unexpected reply %q", reply)
	}
	if captured.Model != "gpt-test" {
		t.Errorf("Expected model gpt-test, got %s", captured.Model)
	}
	if len(captured.Messages) != 3 || captured.Messages[1].Role != "assistant" {
		t.Errorf("Expected history mapped to user/assistant messages, got %+v", captured.Messages)
	}
}

func TestOpenAIClient_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	client := NewOpenAIClient(&config.Config{OpenAIAPIKey: "bad", OpenAIModel: "m", OpenAIBaseURL: server.URL})
	adapter := NewAdapter(client, nil)

	_, err := adapter.Generate(context.Background(), "hi", nil)
	var genErr *Error
	if !errors.As(err, &genErr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if genErr.Subtype != "APIError" {
		t.Errorf("Expected subtype APIError, got %s", genErr.Subtype)
	}
	if !strings.Contains(genErr.Message, "Incorrect API key") {
		t.Errorf("Expected provider message, got %q", genErr.Message)
	}
}
