package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/memory"
)

// History keeps recent question/answer turns per identity in LangChainGo
// conversation buffers, so the QA responder can see what was just asked.
type History struct {
	mu       sync.Mutex
	sessions map[string]*memory.ConversationBuffer
	limit    int // messages kept per identity
}

// NewHistory creates a history that keeps the last limit messages
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 10
	}
	return &History{
		sessions: make(map[string]*memory.ConversationBuffer),
		limit:    limit,
	}
}

func (h *History) buffer(identity string) *memory.ConversationBuffer {
	mem, ok := h.sessions[identity]
	if !ok {
		mem = memory.NewConversationBuffer()
		h.sessions[identity] = mem
	}
	return mem
}

// AddExchange records a guest message and the concierge answer
func (h *History) AddExchange(ctx context.Context, identity, question, answer string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	mem := h.buffer(identity)
	if err := mem.ChatHistory.AddUserMessage(ctx, question); err != nil {
		return fmt.Errorf("failed to add user message to memory: %w", err)
	}
	if err := mem.ChatHistory.AddAIMessage(ctx, answer); err != nil {
		return fmt.Errorf("failed to add AI message to memory: %w", err)
	}

	messages, err := mem.ChatHistory.Messages(ctx)
	if err != nil {
		return fmt.Errorf("failed to get messages: %w", err)
	}
	if len(messages) > 2*h.limit {
		if err := mem.ChatHistory.SetMessages(ctx, messages[len(messages)-h.limit:]); err != nil {
			return fmt.Errorf("failed to trim memory: %w", err)
		}
	}
	return nil
}

// Formatted returns the most recent turns as prompt text
func (h *History) Formatted(ctx context.Context, identity string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	mem, ok := h.sessions[identity]
	if !ok {
		return "", nil
	}
	messages, err := mem.ChatHistory.Messages(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get messages: %w", err)
	}
	if len(messages) > h.limit {
		messages = messages[len(messages)-h.limit:]
	}

	var b strings.Builder
	for _, msg := range messages {
		switch m := msg.(type) {
		case schema.HumanChatMessage:
			fmt.Fprintf(&b, "Guest: %s\n", m.Content)
		case schema.AIChatMessage:
			fmt.Fprintf(&b, "Concierge: %s\n", m.Content)
		}
	}
	return b.String(), nil
}

// Clear drops an identity's history
func (h *History) Clear(ctx context.Context, identity string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if mem, ok := h.sessions[identity]; ok {
		_ = mem.Clear(ctx)
		delete(h.sessions, identity)
	}
}

// Count returns the number of identities with history
func (h *History) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}
