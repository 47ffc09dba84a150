package turn

import (
	"errors"
	"fmt"
)

var (
	// ErrTurnInProgress is returned when a session is asked for a turn while
	// the previous one is still waiting on the generator.
	ErrTurnInProgress = errors.New("a turn is already in progress for this session")

	// ErrEmptyUtterance is returned when a player turn carries no text. Only the
	// opening turn may run without one.
	ErrEmptyUtterance = errors.New("player message is required after the opening turn")
)

// ServiceError reports that the generation service could not produce a reply.
// The game state is never modified when it is returned.
type ServiceError struct {
	Attempts int
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("generation service failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
