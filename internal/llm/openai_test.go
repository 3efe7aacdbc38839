package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
)

func openAIReply(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		ID:      "chatcmpl-123",
		Object:  "chat.completion",
		Created: 1677652288,
		Model:   "o3-mini",
		Choices: []openai.ChatCompletionChoice{
			{
				Index: 0,
				Message: openai.ChatCompletionMessage{
					Role:    "assistant",
					Content: content,
				},
				FinishReason: "stop",
			},
		},
	}
}

func newTestOpenAI(t *testing.T, url string) *OpenAIBackend {
	t.Helper()
	backend, err := NewOpenAIBackend(Config{
		APIKey:  "test-key",
		BaseURL: url,
		Model:   "o3-mini",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}
	return backend
}

func TestOpenAIBackend_Session_SendsSystemAndHistory(t *testing.T) {
	var requests []openai.ChatCompletionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header Bearer test-key, got %s", r.Header.Get("Authorization"))
		}

		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		requests = append(requests, req)

		_ = json.NewEncoder(w).Encode(openAIReply(`{"answer": "yes"}`))
	}))
	defer server.Close()

	backend := newTestOpenAI(t, server.URL)
	session, err := backend.NewSession(context.Background(), "You are an analyst.", "Article body")
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		reply, err := session.Chat(context.Background(), "Question?")
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		if reply != `{"answer": "yes"}` {
			t.Errorf("Unexpected reply: %s", reply)
		}
	}

	if len(requests) != 2 {
		t.Fatalf("Expected 2 requests, got %d", len(requests))
	}
	first, second := requests[0], requests[1]
	if first.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("Expected system message first, got %s", first.Messages[0].Role)
	}
	if len(first.Messages) != 2 {
		t.Errorf("Expected system + user on first turn, got %d messages", len(first.Messages))
	}
	// system, user, assistant, user
	if len(second.Messages) != 4 {
		t.Errorf("Expected history on second turn, got %d messages", len(second.Messages))
	}
	if first.MaxCompletionTokens != 2000 {
		t.Errorf("Expected default max completion tokens 2000, got %d", first.MaxCompletionTokens)
	}
}

func TestOpenAIBackend_Complete_NoSystem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("Expected a single user message, got %+v", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(openAIReply("  yes \n"))
	}))
	defer server.Close()

	reply, err := newTestOpenAI(t, server.URL).Complete(context.Background(), "Is this a person?")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if reply != "yes" {
		t.Errorf("Expected trimmed reply 'yes', got %q", reply)
	}
}

func TestOpenAIBackend_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "Rate limit exceeded", "type": "rate_limit_error"}}`))
	}))
	defer server.Close()

	_, err := newTestOpenAI(t, server.URL).Complete(context.Background(), "hi")
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !IsRateLimit(err) {
		t.Errorf("Expected rate limit error, got %v", err)
	}
}

func TestOpenAIBackend_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "Internal Server Error", "type": "server_error"}}`))
	}))
	defer server.Close()

	_, err := newTestOpenAI(t, server.URL).Complete(context.Background(), "hi")
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if KindOf(err) != KindTransport {
		t.Errorf("Expected transport kind, got %s", KindOf(err))
	}
	if IsRateLimit(err) {
		t.Error("500 must not be classified as a rate limit")
	}
}

func TestOpenAIBackend_RateLimitWordingIsNotEnough(t *testing.T) {
	// Message text mentions rate limits but the status says otherwise
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limit exceeded", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	_, err := newTestOpenAI(t, server.URL).Complete(context.Background(), "hi")
	if IsRateLimit(err) {
		t.Errorf("Expected non-rate-limit classification, got %v", err)
	}
}

func TestOpenAIBackend_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{malformed json`))
	}))
	defer server.Close()

	_, err := newTestOpenAI(t, server.URL).Complete(context.Background(), "hi")
	if err == nil {
		t.Fatal("Expected error for malformed JSON, got nil")
	}
}

func TestOpenAIBackend_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := newTestOpenAI(t, server.URL).Complete(ctx, "hi")
	if err == nil {
		t.Fatal("Expected timeout error, got nil")
	}
	if IsRateLimit(err) {
		t.Error("Timeout must not be classified as a rate limit")
	}
}

func TestOpenAIBackend_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"data": [{"id": "o3-mini"}]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	backend := newTestOpenAI(t, server.URL)
	if err := backend.Ping(context.Background()); err != nil {
		t.Errorf("Expected ping to succeed, got %v", err)
	}

	server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	if err := backend.Ping(context.Background()); err == nil {
		t.Error("Expected ping to fail on server error")
	}
}

func TestNewOpenAIBackend_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIBackend(Config{}); err == nil {
		t.Error("Expected error without API key")
	}
}
