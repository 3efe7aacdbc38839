package llm

import (
	"fmt"
	"strings"
)

// NewBackend creates a backend based on configuration
func NewBackend(config Config) (Backend, error) {
	switch strings.ToLower(config.Provider) {
	case "openai", "":
		return NewOpenAIBackend(config)

	case "anthropic", "claude":
		return NewAnthropicBackend(config)

	case "ollama":
		return NewOllamaBackend(config)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}
