package prompts

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/jwebster45206/lingua-quest/pkg/state"
)

// NarratorSystemPrompt casts the model as narrator and language evaluator.
// %[1]s is the target language, %[2]s the player's level.
const NarratorSystemPrompt = `You are the narrative engine and language evaluator of a text role-playing game for learning %[1]s, set in a realistic, contemporary city where %[1]s is spoken.
Your job is to run the story while acting as a quality-control node for the player's language.

### Setting and tone
- Describe scenes with iconic, concrete local detail. The tone is immersive but clear.
- Write narration and dialogue in %[1]s at a level a %[2]s learner can follow.
- You control every non-player character and world event. The player controls only their own character.

### Evaluation before you answer
Before responding to the player's action, assess it internally:
- Are the grammar and vocabulary correct for a %[2]s learner?
- If there are mistakes, the character the player is talking to reacts with confusion or corrects them subtly inside the dialogue.
- Only a critical error costs the player standing (respect) or health.

### Persistent state
Every answer must respect the player's inventory, current location and active mission as given in the context block.
`

// StartSignal is sent as the player's message when a session has no log yet.
// It prompts the opening scene and is never written to the log.
const StartSignal = "Start the game."

// StateContextTemplate renders the game state for the model.
const StateContextTemplate = `Current context:
- Target language: %s
- Location: %s
- Health: %d
- Standing: %d
- Inventory: %s
- Level: %s
- Mission: %s`

// BuildSystemPrompt fills the narrator persona for a language and level.
func BuildSystemPrompt(targetLanguage, level string) string {
	return fmt.Sprintf(NarratorSystemPrompt, LanguageName(targetLanguage), level)
}

// StateContext projects a game state, minus its log, into a context block.
func StateContext(gs *state.GameState) string {
	inventory := "(empty)"
	if len(gs.Inventory) > 0 {
		inventory = strings.Join(gs.Inventory, ", ")
	}
	return fmt.Sprintf(StateContextTemplate,
		LanguageName(gs.TargetLanguage),
		gs.Location,
		gs.Health,
		gs.Standing,
		inventory,
		gs.LanguageLevel,
		gs.Mission,
	)
}

// LanguageName turns a BCP 47 tag such as "ja" or "pt-BR" into its English
// name. Anything else is treated as a language name and title-cased.
func LanguageName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return state.DefaultTargetLanguage
	}
	if len(s) <= 3 || strings.Contains(s, "-") {
		if tag, err := language.Parse(s); err == nil {
			if name := display.English.Tags().Name(tag); name != "" {
				return name
			}
		}
	}
	return cases.Title(language.English).String(s)
}
