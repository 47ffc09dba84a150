package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jwebster45206/lingua-quest/pkg/state"
)

// MemoryStorage keeps game states in process memory. It stores and returns
// copies so callers never share a GameState with the store.
type MemoryStorage struct {
	mu         sync.RWMutex
	gamestates map[uuid.UUID]*state.GameState
	pingError  error
}

// Ensure MemoryStorage implements Storage interface
var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		gamestates: make(map[uuid.UUID]*state.GameState),
	}
}

// SetPingError configures Ping to fail with err; nil restores success
func (m *MemoryStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

func (m *MemoryStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) SaveGameState(ctx context.Context, id uuid.UUID, gs *state.GameState) error {
	if gs == nil {
		return errors.New("gamestate cannot be nil")
	}
	copied, err := gs.DeepCopy()
	if err != nil {
		return fmt.Errorf("failed to copy gamestate: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gamestates[id] = copied
	return nil
}

func (m *MemoryStorage) LoadGameState(ctx context.Context, id uuid.UUID) (*state.GameState, error) {
	m.mu.RLock()
	gs, ok := m.gamestates[id]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return gs.DeepCopy()
}

func (m *MemoryStorage) DeleteGameState(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.gamestates, id)
	return nil
}

// Count returns the number of stored sessions
func (m *MemoryStorage) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.gamestates)
}
