package chat

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TurnRequest is a player utterance submitted to the lingua-quest api.
// An empty Message is only valid for the opening turn of a session.
type TurnRequest struct {
	GameStateID uuid.UUID `json:"gamestate_id"`
	Message     string    `json:"message"`
}

// TurnAccepted is returned when a turn has been queued for a worker.
type TurnAccepted struct {
	GameStateID uuid.UUID `json:"gamestate_id"`
	RequestID   string    `json:"request_id"`
}

// ChatResponse is the raw text produced by a generation service for one call.
type ChatResponse struct {
	Message string `json:"message,omitempty"`
}

const (
	ChatRoleSystem   = "system"   // Context blocks and instructions
	ChatRolePlayer   = "player"   // The language learner
	ChatRoleNarrator = "narrator" // Narrator and NPCs
)

// ChatMessage is a single role-tagged entry in the conversation log.
type ChatMessage struct {
	Role    string `json:"role"` // "system", "player", "narrator"
	Content string `json:"content"`
}

// ProviderRole maps a log role onto the user/assistant/system vocabulary
// spoken by hosted chat APIs.
func ProviderRole(role string) string {
	switch role {
	case ChatRolePlayer:
		return "user"
	case ChatRoleNarrator:
		return "assistant"
	default:
		return ChatRoleSystem
	}
}

func (tr *TurnRequest) Validate() error {
	if tr.GameStateID == uuid.Nil {
		return fmt.Errorf("gamestate_id is required")
	}
	if len(tr.Message) > MaxMessageLength {
		return fmt.Errorf("message cannot exceed %d characters", MaxMessageLength)
	}
	return nil
}

// MaxMessageLength bounds a single player utterance accepted over the api.
const MaxMessageLength = 2000

// IsQuit reports whether the utterance is one of the quit words.
func IsQuit(message string) bool {
	switch strings.ToLower(strings.TrimSpace(message)) {
	case "exit", "quit":
		return true
	}
	return false
}
