// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"sync"

	"github.com/pdiddy/search-agent/pkg/types"
)

// Conversation is the ordered message history of a chat session. The first
// message is the system prompt. User entries hold what the user typed, not
// the augmented instruction the responder saw.
type Conversation struct {
	mu       sync.Mutex
	messages []types.Message
}

// NewConversation starts a history with the given system prompt.
func NewConversation(systemPrompt string) *Conversation {
	c := &Conversation{}
	if systemPrompt != "" {
		c.messages = append(c.messages, types.SystemMessage(systemPrompt))
	}
	return c
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Add records a completed exchange.
func (c *Conversation) Add(user, assistant string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, types.UserMessage(user), types.AssistantMessage(assistant))
}

// Len returns the number of messages, including the system prompt.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// LastExchange returns the most recent user and assistant messages, or nil
// when no exchange has been recorded.
func (c *Conversation) LastExchange() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.messages)
	if n < 2 || c.messages[n-2].Role != types.RoleUser || c.messages[n-1].Role != types.RoleAssistant {
		return nil
	}
	return []types.Message{c.messages[n-2], c.messages[n-1]}
}

// Reset drops every exchange and keeps the system prompt.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) > 0 && c.messages[0].Role == types.RoleSystem {
		c.messages = c.messages[:1]
		return
	}
	c.messages = nil
}
