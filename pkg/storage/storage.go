package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jwebster45206/lingua-quest/pkg/state"
)

// Storage persists game sessions between turns.
// LoadGameState returns nil, nil when the session does not exist.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// GameState operations
	SaveGameState(ctx context.Context, id uuid.UUID, gs *state.GameState) error
	LoadGameState(ctx context.Context, id uuid.UUID) (*state.GameState, error)
	DeleteGameState(ctx context.Context, id uuid.UUID) error
}
