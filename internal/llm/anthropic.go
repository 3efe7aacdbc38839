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

	"github.com/ppiankov/casefile/internal/util"
)

// AnthropicBackend implements Backend with the Anthropic Messages API
type AnthropicBackend struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	config     Config
}

// Anthropic API structures
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float32            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropicBackend creates a new Anthropic backend
func NewAnthropicBackend(config Config) (*AnthropicBackend, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	return &AnthropicBackend{
		apiKey:  config.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.timeout(),
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy),
			},
		},
		config: config,
	}, nil
}

// Name returns the provider name
func (b *AnthropicBackend) Name() string {
	return "anthropic"
}

// Ping makes a minimal completion request
func (b *AnthropicBackend) Ping(ctx context.Context) error {
	_, err := b.makeRequest(ctx, anthropicRequest{
		Model:     b.model(),
		MaxTokens: 10,
		Messages:  []anthropicMessage{{Role: RoleUser, Content: "Hi"}},
	})
	return err
}

// NewSession opens a conversation about document
func (b *AnthropicBackend) NewSession(_ context.Context, system, document string) (Session, error) {
	return newChatSession(composeSystem(system, document), b.config.MemoryTokens, b.chat), nil
}

// Complete sends a single stateless prompt
func (b *AnthropicBackend) Complete(ctx context.Context, prompt string) (string, error) {
	return b.chat(ctx, "", []Message{{Role: RoleUser, Content: prompt}})
}

func (b *AnthropicBackend) model() string {
	if b.config.Model == "" {
		return "claude-3-5-sonnet-20241022"
	}
	return b.config.Model
}

func (b *AnthropicBackend) chat(ctx context.Context, system string, messages []Message) (string, error) {
	apiReq := anthropicRequest{
		Model:       b.model(),
		MaxTokens:   b.config.maxTokens(),
		System:      system,
		Temperature: b.config.Temperature,
	}
	for _, m := range messages {
		apiReq.Messages = append(apiReq.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := b.makeRequest(ctx, apiReq)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", responseError(b.Name(), errors.New("no text content in response"))
	}

	return strings.TrimSpace(text.String()), nil
}

// makeRequest makes an HTTP request to the Anthropic API
func (b *AnthropicBackend) makeRequest(ctx context.Context, apiReq anthropicRequest) (*anthropicResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, transportError(b.Name(), fmt.Errorf("marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/v1/messages", b.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, transportError(b.Name(), fmt.Errorf("create request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", b.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

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
		var apiErr anthropicError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, statusError(b.Name(), httpResp.StatusCode, fmt.Errorf("%s - %s", apiErr.Error.Type, apiErr.Error.Message))
		}
		return nil, statusError(b.Name(), httpResp.StatusCode, errors.New(string(respBody)))
	}

	var resp anthropicResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, responseError(b.Name(), fmt.Errorf("unmarshal response: %w", err))
	}

	return &resp, nil
}
