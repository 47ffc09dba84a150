package state

import (
	"log/slog"
	"strings"
)

// DeltaWorker applies one turn's StateChange to a game state. It mutates the
// GameState it was given, so callers that need the previous state intact hand
// it a DeepCopy.
type DeltaWorker struct {
	gs         *GameState
	change     *StateChange
	evaluation string
	logger     *slog.Logger
}

// NewDeltaWorker creates a new delta worker for applying state changes
func NewDeltaWorker(gs *GameState, change *StateChange, logger *slog.Logger) *DeltaWorker {
	return &DeltaWorker{
		gs:     gs,
		change: change,
		logger: logger,
	}
}

// WithEvaluation sets the linguistic evaluation that replaces the previous one.
// An empty evaluation clears it.
// Returns the DeltaWorker for method chaining
func (dw *DeltaWorker) WithEvaluation(evaluation string) *DeltaWorker {
	dw.evaluation = evaluation
	return dw
}

// Apply applies numeric deltas, location and mission replacement, inventory
// tokens and the evaluation to the game state.
func (dw *DeltaWorker) Apply() {
	dw.gs.LinguisticEvaluation = dw.evaluation

	if dw.change.IsEmpty() {
		return
	}

	if dw.change.Health != nil {
		dw.gs.Health += *dw.change.Health
	}
	if dw.change.Standing != nil {
		dw.gs.Standing += *dw.change.Standing
	}

	if dw.change.Location != nil && *dw.change.Location != "" {
		if dw.gs.Location != *dw.change.Location && dw.logger != nil {
			dw.logger.Info("Location changed",
				"game_state_id", dw.gs.ID.String(),
				"from", dw.gs.Location,
				"to", *dw.change.Location)
		}
		dw.gs.Location = *dw.change.Location
	}

	if dw.change.CurrentMission != nil && *dw.change.CurrentMission != "" {
		dw.gs.Mission = *dw.change.CurrentMission
	}

	for _, token := range dw.change.Inventory {
		dw.applyInventoryToken(token)
	}
}

func (dw *DeltaWorker) applyInventoryToken(token string) {
	token = strings.TrimSpace(token)
	if len(token) < 2 {
		dw.warnToken(token)
		return
	}
	item := strings.TrimSpace(token[1:])
	if item == "" {
		dw.warnToken(token)
		return
	}

	switch token[0] {
	case InventoryAdd:
		dw.gs.Inventory = append(dw.gs.Inventory, item)
	case InventoryRemove:
		for i, invItem := range dw.gs.Inventory {
			if invItem == item {
				dw.gs.Inventory = append(dw.gs.Inventory[:i:i], dw.gs.Inventory[i+1:]...)
				break
			}
		}
	default:
		dw.warnToken(token)
	}
}

func (dw *DeltaWorker) warnToken(token string) {
	if dw.logger != nil {
		dw.logger.Warn("Ignoring inventory token without +/- prefix",
			"game_state_id", dw.gs.ID.String(),
			"token", token)
	}
}

// MarkParseFailure records an undecodable reply: every field except the
// evaluation passes through unchanged.
func MarkParseFailure(gs *GameState) {
	gs.LinguisticEvaluation = ParseErrorEvaluation
}
