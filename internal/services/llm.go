package services

import (
	"context"
	"strings"

	"github.com/jwebster45206/lingua-quest/pkg/chat"
	"github.com/jwebster45206/lingua-quest/pkg/prompts"
)

// LLMService defines the interface for interacting with the LLM API
type LLMService interface {
	// InitModel prepares the model on startup
	InitModel(ctx context.Context, modelName string) error

	// Chat returns the narrator's raw reply for the message list
	Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error)
}

// DefaultTemperature is used by every provider
const DefaultTemperature = 0.7

// splitChatMessages joins all system messages into one system prompt and maps
// the remaining log roles onto provider roles. Hosted chat APIs expect the
// conversation to open with a user turn, so a log that starts with the
// narrator is preceded by the start signal it answered.
func splitChatMessages(messages []chat.ChatMessage) (string, []chat.ChatMessage) {
	var systemParts []string
	var turns []chat.ChatMessage

	for _, msg := range messages {
		if msg.Role == chat.ChatRoleSystem {
			systemParts = append(systemParts, msg.Content)
			continue
		}
		turns = append(turns, chat.ChatMessage{
			Role:    chat.ProviderRole(msg.Role),
			Content: msg.Content,
		})
	}

	if len(turns) > 0 && turns[0].Role != "user" {
		turns = append([]chat.ChatMessage{{Role: "user", Content: prompts.StartSignal}}, turns...)
	}

	return strings.Join(systemParts, "\n\n"), turns
}
