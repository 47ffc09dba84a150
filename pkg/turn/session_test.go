package turn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "awaiting_input", AwaitingInput.String())
	assert.Equal(t, "processing_turn", ProcessingTurn.String())
	assert.Equal(t, "unknown", Phase(9).String())
}

func TestSession_StartThenSubmit(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{reply(0), reply(-10)}}
	s := NewSession(NewOrchestrator(gen, discardLogger()), newState())
	assert.Equal(t, AwaitingInput, s.Phase())

	out, err := s.Start(context.Background())
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Len(t, s.State().ChatHistory, 1)

	// Start is a no-op once the log has entries
	out, err = s.Start(context.Background())
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 1, gen.callCount())

	_, err = s.Submit(context.Background(), "Excuse me, where is the exit?")
	require.NoError(t, err)
	assert.Equal(t, 90, s.State().Health)
	assert.Len(t, s.State().ChatHistory, 3)
	assert.Equal(t, AwaitingInput, s.Phase())
}

func TestSession_RejectsConcurrentTurn(t *testing.T) {
	gen := &blockingGenerator{entered: make(chan struct{})}
	s := NewSession(NewOrchestrator(gen, discardLogger(), WithRetry(1, 0)), newState())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(ctx, "first")
		done <- err
	}()

	<-gen.entered
	assert.Equal(t, ProcessingTurn, s.Phase())

	_, err := s.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, ErrTurnInProgress)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("first turn did not finish after cancel")
	}
	assert.Equal(t, AwaitingInput, s.Phase())
}

func TestSession_FailedTurnKeepsState(t *testing.T) {
	gen := &scriptedGenerator{errs: []error{errors.New("network down")}}
	initial := newState()
	s := NewSession(NewOrchestrator(gen, discardLogger(), WithRetry(1, 0)), initial)

	_, err := s.Submit(context.Background(), "Hello")
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)

	assert.Same(t, initial, s.State())
	assert.Empty(t, s.State().ChatHistory)
	assert.Equal(t, AwaitingInput, s.Phase())
}
