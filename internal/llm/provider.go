package llm

import (
	"context"
	"time"

	"github.com/ppiankov/casefile/internal/model"
)

// Message roles shared by every backend
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation
type Message struct {
	Role    string
	Content string
}

// Backend defines the interface for language-model providers
type Backend interface {
	// Name returns the provider name
	Name() string

	// NewSession opens a conversation seeded with a system instruction and
	// a context document. Turns are kept in a token-limited memory.
	NewSession(ctx context.Context, system, context string) (Session, error)

	// Complete sends a single prompt with no history and no system instruction
	Complete(ctx context.Context, prompt string) (string, error)

	// Ping checks that the provider is configured and reachable
	Ping(ctx context.Context) error
}

// Session is a multi-turn conversation about one document
type Session interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for a single API request
	Timeout time.Duration

	Temperature float32
	MaxTokens   int

	// MemoryTokens bounds the chat history sent with each session turn
	MemoryTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:     "openai",
		Model:        "o3-mini",
		Timeout:      120 * time.Second,
		MaxTokens:    2000,
		MemoryTokens: 3000,
	}
}

// ConfigFromModel converts the runtime config sections into an llm.Config
func ConfigFromModel(llmConfig model.LLMConfig, httpConfig model.HTTPConfig) Config {
	return Config{
		Provider:     llmConfig.Provider,
		Model:        llmConfig.Model,
		APIKey:       llmConfig.APIKey,
		BaseURL:      llmConfig.BaseURL,
		Timeout:      llmConfig.Timeout,
		Temperature:  llmConfig.Temperature,
		MaxTokens:    llmConfig.MaxTokens,
		MemoryTokens: llmConfig.MemoryTokens,
		HTTPProxy:    httpConfig.HTTPProxy,
		HTTPSProxy:   httpConfig.HTTPSProxy,
	}
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 120 * time.Second
	}
	return c.Timeout
}

func (c Config) maxTokens() int {
	if c.MaxTokens <= 0 {
		return 2000
	}
	return c.MaxTokens
}
