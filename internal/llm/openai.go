package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/casefile/internal/util"
)

// OpenAIBackend implements Backend with the Chat Completions API
type OpenAIBackend struct {
	client *openai.Client
	config Config
}

// NewOpenAIBackend creates a new OpenAI backend
func NewOpenAIBackend(config Config) (*OpenAIBackend, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy),
		},
	}

	return &OpenAIBackend{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name
func (b *OpenAIBackend) Name() string {
	return "openai"
}

// Ping lists models, a lightweight authenticated call
func (b *OpenAIBackend) Ping(ctx context.Context) error {
	if _, err := b.client.ListModels(ctx); err != nil {
		return b.classify(err)
	}
	return nil
}

// NewSession opens a conversation about document
func (b *OpenAIBackend) NewSession(_ context.Context, system, document string) (Session, error) {
	return newChatSession(composeSystem(system, document), b.config.MemoryTokens, b.chat), nil
}

// Complete sends a single stateless prompt
func (b *OpenAIBackend) Complete(ctx context.Context, prompt string) (string, error) {
	return b.chat(ctx, "", []Message{{Role: RoleUser, Content: prompt}})
}

func (b *OpenAIBackend) chat(ctx context.Context, system string, messages []Message) (string, error) {
	model := b.config.Model
	if model == "" {
		model = "o3-mini"
	}

	ctx, cancel := context.WithTimeout(ctx, b.config.timeout())
	defer cancel()

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	// Reasoning models reject max_tokens; max_completion_tokens is accepted everywhere
	req := openai.ChatCompletionRequest{
		Model:               model,
		Messages:            chatMessages,
		MaxCompletionTokens: b.config.maxTokens(),
		Temperature:         b.config.Temperature,
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", b.classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", responseError(b.Name(), errors.New("no choices in response"))
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// classify maps go-openai errors onto the shared taxonomy by HTTP status
func (b *OpenAIBackend) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return statusError(b.Name(), apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return statusError(b.Name(), reqErr.HTTPStatusCode, err)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return responseError(b.Name(), err)
	}
	return transportError(b.Name(), err)
}
