package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/casefile/internal/util"
)

// OllamaBackend implements Backend with a local Ollama server
type OllamaBackend struct {
	baseURL    string
	httpClient *http.Client
	config     Config
}

// Ollama API structures
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"` // Max tokens
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaBackend creates a new Ollama backend
func NewOllamaBackend(config Config) (*OllamaBackend, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g., llama3.1:8b, mistral)")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second // Local models on CPU are slow with long articles
	}

	return &OllamaBackend{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy),
			},
		},
		config: config,
	}, nil
}

// Name returns the provider name
func (b *OllamaBackend) Name() string {
	return "ollama"
}

// Ping checks the server is running by listing local models
func (b *OllamaBackend) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/tags", b.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return transportError(b.Name(), fmt.Errorf("create request: %w", err))
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return transportError(b.Name(), fmt.Errorf("connect to %s: %w", b.baseURL, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return statusError(b.Name(), resp.StatusCode, fmt.Errorf("unexpected status from %s", b.baseURL))
	}
	return nil
}

// NewSession opens a conversation about document
func (b *OllamaBackend) NewSession(_ context.Context, system, document string) (Session, error) {
	return newChatSession(composeSystem(system, document), b.config.MemoryTokens, b.chat), nil
}

// Complete sends a single stateless prompt
func (b *OllamaBackend) Complete(ctx context.Context, prompt string) (string, error) {
	return b.chat(ctx, "", []Message{{Role: RoleUser, Content: prompt}})
}

func (b *OllamaBackend) chat(ctx context.Context, system string, messages []Message) (string, error) {
	apiReq := ollamaChatRequest{
		Model:  b.config.Model,
		Stream: false,
		Options: ollamaOptions{
			Temperature: b.config.Temperature,
			NumPredict:  b.config.maxTokens(),
		},
	}
	if system != "" {
		apiReq.Messages = append(apiReq.Messages, ollamaMessage{Role: "system", Content: system})
	}
	for _, m := range messages {
		apiReq.Messages = append(apiReq.Messages, ollamaMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := b.makeRequest(ctx, apiReq)
	if err != nil {
		return "", err
	}

	reply := strings.TrimSpace(resp.Message.Content)
	if reply == "" {
		return "", responseError(b.Name(), errors.New("empty message in response"))
	}
	return reply, nil
}

// makeRequest makes an HTTP request to the Ollama chat API
func (b *OllamaBackend) makeRequest(ctx context.Context, apiReq ollamaChatRequest) (*ollamaChatResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, transportError(b.Name(), fmt.Errorf("marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/api/chat", b.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, transportError(b.Name(), fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(b.Name(), fmt.Errorf("execute request: %w", err))
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, transportError(b.Name(), fmt.Errorf("read response: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr ollamaError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return nil, statusError(b.Name(), httpResp.StatusCode, errors.New(apiErr.Error))
		}
		return nil, statusError(b.Name(), httpResp.StatusCode, errors.New(string(respBody)))
	}

	var resp ollamaChatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, responseError(b.Name(), fmt.Errorf("unmarshal response: %w", err))
	}

	return &resp, nil
}
