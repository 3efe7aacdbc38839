package llm

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"
)

// charsPerToken approximates tokenizer output for English prose
const charsPerToken = 4

// EstimateTokens approximates the token count of s
func EstimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + charsPerToken - 1) / charsPerToken
}

// Memory is a chat history that only replays the most recent turns fitting
// in a token budget. The newest message is always kept.
type Memory struct {
	mu       sync.Mutex
	limit    int
	messages []Message
}

// NewMemory creates a memory bounded by limit tokens (non-positive means 3000)
func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = 3000
	}
	return &Memory{limit: limit}
}

// Add appends a message
func (m *Memory) Add(msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

// DropLast removes the newest message, if any
func (m *Memory) DropLast() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) > 0 {
		m.messages = m.messages[:len(m.messages)-1]
	}
}

// Len returns the number of stored messages
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// Window returns the messages to replay, oldest first. The window never
// starts with an assistant turn.
func (m *Memory) Window() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.messages) == 0 {
		return nil
	}

	start := len(m.messages) - 1
	used := EstimateTokens(m.messages[start].Content)
	for start > 0 {
		cost := EstimateTokens(m.messages[start-1].Content)
		if used+cost > m.limit {
			break
		}
		used += cost
		start--
	}
	for start < len(m.messages)-1 && m.messages[start].Role == RoleAssistant {
		start++
	}

	window := make([]Message, len(m.messages)-start)
	copy(window, m.messages[start:])
	return window
}

// chatFunc sends one request with the given system instruction and history
type chatFunc func(ctx context.Context, system string, messages []Message) (string, error)

// chatSession is the Session shared by all backends
type chatSession struct {
	system string
	memory *Memory
	send   chatFunc
}

func newChatSession(system string, memoryTokens int, send chatFunc) *chatSession {
	return &chatSession{
		system: system,
		memory: NewMemory(memoryTokens),
		send:   send,
	}
}

// Chat sends prompt with the remembered history. Failed turns are forgotten.
func (s *chatSession) Chat(ctx context.Context, prompt string) (string, error) {
	s.memory.Add(Message{Role: RoleUser, Content: prompt})

	reply, err := s.send(ctx, s.system, s.memory.Window())
	if err != nil {
		s.memory.DropLast()
		return "", err
	}

	s.memory.Add(Message{Role: RoleAssistant, Content: reply})
	return reply, nil
}

// composeSystem appends the context document to the system instruction
func composeSystem(system, document string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(system))
	if document != "" {
		b.WriteString("\n\nContext information is below.\n---------------------\n")
		b.WriteString(document)
		b.WriteString("\n---------------------\n")
		b.WriteString("Answer the questions using only the context information above.")
	}
	return b.String()
}
