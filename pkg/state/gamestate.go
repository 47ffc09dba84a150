package state

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/lingua-quest/pkg/chat"
)

// ParseErrorEvaluation replaces the linguistic evaluation when the narrator's
// reply could not be decoded against the session's contract.
const ParseErrorEvaluation = "Error parsing LLM response."

// GameState is the current state of one language-practice session.
// Health and Standing are never clamped; inventory and log size are unbounded.
type GameState struct {
	ID       uuid.UUID `json:"id"`
	Contract string    `json:"contract"` // response contract version chosen at session start

	TargetLanguage string   `json:"target_language"`
	LanguageLevel  string   `json:"language_level"`
	Location       string   `json:"location"`
	Mission        string   `json:"mission"`
	Health         int      `json:"health"`
	Standing       int      `json:"standing"`
	Inventory      []string `json:"inventory"`

	// LinguisticEvaluation reflects only the most recent turn.
	LinguisticEvaluation string `json:"linguistic_evaluation,omitempty"`

	ChatHistory []chat.ChatMessage `json:"chat_history"`
	TurnCounter int                `json:"turn_counter"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Seed holds the caller-supplied starting values for a session.
type Seed struct {
	TargetLanguage string   `json:"target_language,omitempty"`
	LanguageLevel  string   `json:"language_level,omitempty"`
	Location       string   `json:"location,omitempty"`
	Mission        string   `json:"mission,omitempty"`
	Health         *int     `json:"health,omitempty"`
	Standing       *int     `json:"standing,omitempty"`
	Inventory      []string `json:"inventory,omitempty"`
}

const (
	DefaultTargetLanguage = "English"
	DefaultLanguageLevel  = "Beginner"
	DefaultLocation       = "King's Cross Station"
	DefaultMission        = "Exit the station and find a pub."
	DefaultHealth         = 100
	DefaultStanding       = 100
)

// DefaultInventory is what a new player carries when the seed names nothing.
var DefaultInventory = []string{"Oyster Card", "Umbrella"}

// NewGameState creates a session from a seed, filling gaps with defaults.
// The log always starts empty.
func NewGameState(seed Seed, contractVersion string) *GameState {
	now := time.Now()
	gs := &GameState{
		ID:             uuid.New(),
		Contract:       contractVersion,
		TargetLanguage: valueOr(seed.TargetLanguage, DefaultTargetLanguage),
		LanguageLevel:  valueOr(seed.LanguageLevel, DefaultLanguageLevel),
		Location:       valueOr(seed.Location, DefaultLocation),
		Mission:        valueOr(seed.Mission, DefaultMission),
		Health:         DefaultHealth,
		Standing:       DefaultStanding,
		ChatHistory:    make([]chat.ChatMessage, 0),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if seed.Health != nil {
		gs.Health = *seed.Health
	}
	if seed.Standing != nil {
		gs.Standing = *seed.Standing
	}
	if seed.Inventory != nil {
		gs.Inventory = append([]string{}, seed.Inventory...)
	} else {
		gs.Inventory = append([]string{}, DefaultInventory...)
	}
	return gs
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// IsGameOver is a read of health; the engine itself never ends a session.
func (gs *GameState) IsGameOver() bool {
	return gs.Health <= 0
}

// IsOpening reports whether no turn has produced a log entry yet.
func (gs *GameState) IsOpening() bool {
	return len(gs.ChatHistory) == 0
}

// LastNarratorMessage returns the most recent raw narrator reply, if any.
func (gs *GameState) LastNarratorMessage() (string, bool) {
	for i := len(gs.ChatHistory) - 1; i >= 0; i-- {
		if gs.ChatHistory[i].Role == chat.ChatRoleNarrator {
			return gs.ChatHistory[i].Content, true
		}
	}
	return "", false
}

// DeepCopy creates a deep copy of the GameState
func (gs *GameState) DeepCopy() (*GameState, error) {
	data, err := json.Marshal(gs)
	if err != nil {
		return nil, err
	}
	var copied GameState
	if err := json.Unmarshal(data, &copied); err != nil {
		return nil, err
	}
	return &copied, nil
}
