package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/lingua-quest/pkg/contract"
	"github.com/jwebster45206/lingua-quest/pkg/queue"
	"github.com/jwebster45206/lingua-quest/pkg/state"
	"github.com/jwebster45206/lingua-quest/pkg/storage"
	"github.com/jwebster45206/lingua-quest/pkg/turn"
)

var (
	ErrGameStateNotFound = errors.New("game state not found")
	ErrGameOver          = errors.New("game is over")
	ErrAlreadyStarted    = errors.New("session has already started")
)

// TurnResult is what a processed request produced
type TurnResult struct {
	State    *state.GameState
	Display  contract.Display
	Parsed   bool
	Attempts int
	Duration time.Duration
}

// ToEventData shapes the result for a turn.completed event
func (r *TurnResult) ToEventData() map[string]any {
	return map[string]any{
		"narration":   r.Display.Narration(),
		"display":     r.Display,
		"parsed":      r.Parsed,
		"attempts":    r.Attempts,
		"duration_ms": r.Duration.Milliseconds(),
		"state":       r.State,
	}
}

// TurnProcessor loads a session, plays one turn against it and saves the
// result. Nothing is saved when the turn fails.
type TurnProcessor struct {
	storage      storage.Storage
	orchestrator *turn.Orchestrator
	logger       *slog.Logger
}

// NewTurnProcessor creates a processor around a generator
func NewTurnProcessor(store storage.Storage, generator turn.Generator, logger *slog.Logger, opts ...turn.Option) *TurnProcessor {
	return &TurnProcessor{
		storage:      store,
		orchestrator: turn.NewOrchestrator(generator, logger, opts...),
		logger:       logger,
	}
}

// GetGameState loads a session or reports ErrGameStateNotFound
func (p *TurnProcessor) GetGameState(ctx context.Context, id uuid.UUID) (*state.GameState, error) {
	gs, err := p.storage.LoadGameState(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load game state: %w", err)
	}
	if gs == nil {
		return nil, fmt.Errorf("%w: %s", ErrGameStateNotFound, id.String())
	}
	return gs, nil
}

// Process runs the turn a queued request describes
func (p *TurnProcessor) Process(ctx context.Context, req *queue.Request) (*TurnResult, error) {
	start := time.Now()

	gs, err := p.GetGameState(ctx, req.GameStateID)
	if err != nil {
		return nil, err
	}
	if gs.IsGameOver() {
		return nil, ErrGameOver
	}

	var utterance string
	switch req.Type {
	case queue.RequestTypeStart:
		if !gs.IsOpening() {
			return nil, ErrAlreadyStarted
		}
	case queue.RequestTypeTurn:
		utterance = req.Message
	default:
		return nil, fmt.Errorf("unknown request type: %s", req.Type)
	}

	outcome, err := p.orchestrator.Run(ctx, gs, utterance)
	if err != nil {
		return nil, err
	}

	if err := p.storage.SaveGameState(ctx, outcome.State.ID, outcome.State); err != nil {
		return nil, fmt.Errorf("failed to save game state: %w", err)
	}

	if !outcome.Result.OK() {
		p.logger.Warn("Narrator reply did not match contract",
			"game_state_id", gs.ID.String(),
			"request_id", req.RequestID,
			"contract", gs.Contract,
			"reason", outcome.Result.Failure.Reason)
	}

	return &TurnResult{
		State:    outcome.State,
		Display:  contract.Render(outcome.Result),
		Parsed:   outcome.Result.OK(),
		Attempts: outcome.Attempts,
		Duration: time.Since(start),
	}, nil
}
