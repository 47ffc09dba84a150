package turn

import (
	"context"
	"sync"

	"github.com/jwebster45206/lingua-quest/pkg/state"
)

// Phase is where a session sits in its turn cycle.
type Phase int

const (
	AwaitingInput Phase = iota
	ProcessingTurn
)

func (p Phase) String() string {
	switch p {
	case AwaitingInput:
		return "awaiting_input"
	case ProcessingTurn:
		return "processing_turn"
	default:
		return "unknown"
	}
}

// Session serialises turns for one in-process game. The stored state is
// replaced only when a turn completes.
type Session struct {
	orchestrator *Orchestrator

	mu    sync.Mutex
	gs    *state.GameState
	phase Phase
}

// NewSession wraps a game state in the AwaitingInput phase.
func NewSession(orchestrator *Orchestrator, gs *state.GameState) *Session {
	return &Session{
		orchestrator: orchestrator,
		gs:           gs,
		phase:        AwaitingInput,
	}
}

// State returns the latest committed game state. Treat it as read-only.
func (s *Session) State() *state.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gs
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Start runs the opening turn. It is a no-op returning nil when the log is
// already populated.
func (s *Session) Start(ctx context.Context) (*Outcome, error) {
	if !s.State().IsOpening() {
		return nil, nil
	}
	return s.Submit(ctx, "")
}

// Submit plays one turn. It fails with ErrTurnInProgress if another turn has
// not finished. A failed turn leaves the session state as it was.
func (s *Session) Submit(ctx context.Context, utterance string) (*Outcome, error) {
	s.mu.Lock()
	if s.phase == ProcessingTurn {
		s.mu.Unlock()
		return nil, ErrTurnInProgress
	}
	s.phase = ProcessingTurn
	current := s.gs
	s.mu.Unlock()

	out, err := s.orchestrator.Run(ctx, current, utterance)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = AwaitingInput
	if err != nil {
		return nil, err
	}
	s.gs = out.State
	return out, nil
}
