package prompts

import (
	"fmt"

	"github.com/jwebster45206/lingua-quest/pkg/chat"
	"github.com/jwebster45206/lingua-quest/pkg/contract"
	"github.com/jwebster45206/lingua-quest/pkg/state"
)

// Builder constructs chat messages for LLM interaction using a fluent interface.
// It separates prompt building logic from game state management.
type Builder struct {
	gs       *state.GameState
	contract contract.Contract
	messages []chat.ChatMessage
}

// New creates a new prompt builder.
func New() *Builder {
	return &Builder{
		messages: make([]chat.ChatMessage, 0),
	}
}

// WithGameState sets the gamestate. Its log must already hold the player's
// message for this turn.
func (b *Builder) WithGameState(gs *state.GameState) *Builder {
	b.gs = gs
	return b
}

// WithContract sets the response contract the narrator must follow.
func (b *Builder) WithContract(c contract.Contract) *Builder {
	b.contract = c
	return b
}

// Build constructs and returns the final message array for LLM consumption.
// The full log is sent; nothing is windowed or truncated.
func (b *Builder) Build() ([]chat.ChatMessage, error) {
	if b.gs == nil {
		return nil, fmt.Errorf("gamestate is required")
	}
	if b.contract == nil {
		return nil, fmt.Errorf("contract is required")
	}

	b.messages = make([]chat.ChatMessage, 0, len(b.gs.ChatHistory)+4)

	// 1. Persona
	b.addSystem(BuildSystemPrompt(b.gs.TargetLanguage, b.gs.LanguageLevel))

	// 2. Response contract
	b.addSystem(b.contract.Instructions())

	// 3. State context
	b.addSystem(StateContext(b.gs))

	// 4. Log, or the opening signal
	if b.gs.IsOpening() {
		b.messages = append(b.messages, chat.ChatMessage{
			Role:    chat.ChatRolePlayer,
			Content: StartSignal,
		})
	} else {
		b.messages = append(b.messages, b.gs.ChatHistory...)
	}

	return b.messages, nil
}

func (b *Builder) addSystem(content string) {
	b.messages = append(b.messages, chat.ChatMessage{
		Role:    chat.ChatRoleSystem,
		Content: content,
	})
}

// BuildMessages is a convenience function for the common case.
func BuildMessages(gs *state.GameState, c contract.Contract) ([]chat.ChatMessage, error) {
	return New().
		WithGameState(gs).
		WithContract(c).
		Build()
}
