package turn

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jwebster45206/lingua-quest/pkg/chat"
	"github.com/jwebster45206/lingua-quest/pkg/contract"
	"github.com/jwebster45206/lingua-quest/pkg/prompts"
	"github.com/jwebster45206/lingua-quest/pkg/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedGenerator replays replies and errors in order, then repeats the last reply.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   [][]chat.ChatMessage
}

func (g *scriptedGenerator) Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := len(g.calls)
	g.calls = append(g.calls, append([]chat.ChatMessage(nil), messages...))

	if i < len(g.errs) && g.errs[i] != nil {
		return nil, g.errs[i]
	}
	if len(g.replies) == 0 {
		return &chat.ChatResponse{}, nil
	}
	if i >= len(g.replies) {
		i = len(g.replies) - 1
	}
	return &chat.ChatResponse{Message: g.replies[i]}, nil
}

func (g *scriptedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// blockingGenerator waits for its context and reports when it was entered.
type blockingGenerator struct {
	entered chan struct{}
}

func (g *blockingGenerator) Chat(ctx context.Context, _ []chat.ChatMessage) (*chat.ChatResponse, error) {
	close(g.entered)
	<-ctx.Done()
	return nil, ctx.Err()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func reply(health int, inventory ...string) string {
	inv := `[]`
	if len(inventory) > 0 {
		inv = `["` + inventory[0] + `"]`
	}
	return `{"internalEvaluation":"Well said.","npcDialogue":"Hi!","sceneDescription":"A station.","stateChange":{"health":` +
		strconv.Itoa(health) + `,"inventory":` + inv + `}}`
}

func newState() *state.GameState {
	return state.NewGameState(state.Seed{}, contract.VersionEvaluator)
}

func TestRun_OpeningTurnSendsStartSignal(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{reply(0)}}
	o := NewOrchestrator(gen, discardLogger())
	gs := newState()

	out, err := o.Run(context.Background(), gs, "")
	require.NoError(t, err)

	require.Equal(t, 1, gen.callCount())
	sent := gen.calls[0]
	assert.Equal(t, chat.ChatMessage{Role: chat.ChatRolePlayer, Content: prompts.StartSignal}, sent[len(sent)-1])

	// Only the narrator reply is logged; the start signal is not
	require.Len(t, out.State.ChatHistory, 1)
	assert.Equal(t, chat.ChatRoleNarrator, out.State.ChatHistory[0].Role)
	assert.Equal(t, reply(0), out.State.ChatHistory[0].Content)
	assert.Equal(t, 1, out.State.TurnCounter)
	assert.Equal(t, 1, out.Attempts)
}

func TestRun_HealthDelta(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{reply(-10)}}
	o := NewOrchestrator(gen, discardLogger())
	gs := newState()
	require.Equal(t, 100, gs.Health)

	out, err := o.Run(context.Background(), gs, "Where is the exit?")
	require.NoError(t, err)

	assert.True(t, out.Result.OK())
	assert.Equal(t, 90, out.State.Health)
	assert.Equal(t, "Well said.", out.State.LinguisticEvaluation)
	assert.Equal(t, 100, gs.Health, "caller's state must not change")
	assert.Empty(t, gs.ChatHistory, "caller's log must not change")
}

func TestRun_FencedReplyMatchesPlain(t *testing.T) {
	plain := NewOrchestrator(&scriptedGenerator{replies: []string{reply(-10, "+Ticket")}}, discardLogger())
	fenced := NewOrchestrator(&scriptedGenerator{replies: []string{"```json\n" + reply(-10, "+Ticket") + "\n```"}}, discardLogger())
	gs := newState()

	a, err := plain.Run(context.Background(), gs, "Hello")
	require.NoError(t, err)
	b, err := fenced.Run(context.Background(), gs, "Hello")
	require.NoError(t, err)

	assert.Equal(t, a.State.Health, b.State.Health)
	assert.Equal(t, a.State.Inventory, b.State.Inventory)
	if diff := cmp.Diff(a.Result.Payload, b.Result.Payload); diff != "" {
		t.Errorf("payload mismatch (-plain +fenced):\n%s", diff)
	}
}

func TestRun_ParseFailureKeepsState(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"Hello traveler"}}
	o := NewOrchestrator(gen, discardLogger())
	gs := newState()
	gs.AppendHistory(chat.ChatMessage{Role: chat.ChatRoleNarrator, Content: "Welcome"})
	gs.LinguisticEvaluation = "previous"

	out, err := o.Run(context.Background(), gs, "Hi")
	require.NoError(t, err, "a parse failure is not an error")
	require.False(t, out.Result.OK())
	assert.Equal(t, "Hello traveler", out.Result.Failure.Raw)

	got := out.State
	assert.Equal(t, state.ParseErrorEvaluation, got.LinguisticEvaluation)
	assert.Equal(t, gs.TurnCounter+1, got.TurnCounter)

	// Everything but the evaluation, the log and turn bookkeeping is untouched
	ignore := cmpopts.IgnoreFields(state.GameState{}, "LinguisticEvaluation", "ChatHistory", "TurnCounter", "UpdatedAt")
	if diff := cmp.Diff(gs, got, ignore); diff != "" {
		t.Errorf("state changed on parse failure (-before +after):\n%s", diff)
	}

	want := []chat.ChatMessage{
		{Role: chat.ChatRoleNarrator, Content: "Welcome"},
		{Role: chat.ChatRolePlayer, Content: "Hi"},
		{Role: chat.ChatRoleNarrator, Content: "Hello traveler"},
	}
	if diff := cmp.Diff(want, got.ChatHistory); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_LogGrowsByTwoPerTurn(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{reply(0)}}
	o := NewOrchestrator(gen, discardLogger())
	gs := newState()
	gs.AppendHistory(chat.ChatMessage{Role: chat.ChatRoleSystem, Content: "seed"})

	const turns = 5
	for i := 0; i < turns; i++ {
		out, err := o.Run(context.Background(), gs, "turn")
		require.NoError(t, err)
		prefix := gs.ChatHistory
		// Earlier entries are never rewritten
		if diff := cmp.Diff(prefix, out.State.ChatHistory[:len(prefix)]); diff != "" {
			t.Fatalf("log prefix changed (-before +after):\n%s", diff)
		}
		gs = out.State
	}

	assert.Len(t, gs.ChatHistory, 2*turns+1)
	assert.Equal(t, turns, gs.TurnCounter)
}

func TestRun_EmptyUtteranceAfterOpening(t *testing.T) {
	gen := &scriptedGenerator{}
	o := NewOrchestrator(gen, discardLogger())
	gs := newState()
	gs.AppendHistory(chat.ChatMessage{Role: chat.ChatRoleNarrator, Content: "Welcome"})

	_, err := o.Run(context.Background(), gs, "   ")
	assert.ErrorIs(t, err, ErrEmptyUtterance)
	assert.Zero(t, gen.callCount())
}

func TestRun_UnknownContract(t *testing.T) {
	gs := newState()
	gs.Contract = "legacy.v0"
	_, err := NewOrchestrator(&scriptedGenerator{}, discardLogger()).Run(context.Background(), gs, "hi")
	assert.ErrorIs(t, err, contract.ErrUnknownContract)
}

func TestRun_ServiceFailureRetriesThenSurfaces(t *testing.T) {
	boom := errors.New("401 unauthorized")
	gen := &scriptedGenerator{errs: []error{boom, boom, boom}}
	o := NewOrchestrator(gen, discardLogger(), WithRetry(3, time.Millisecond))
	gs := newState()
	before, err := gs.DeepCopy()
	require.NoError(t, err)

	out, err := o.Run(context.Background(), gs, "Hello")
	assert.Nil(t, out)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, 3, svcErr.Attempts)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, gen.callCount())

	if diff := cmp.Diff(before, gs); diff != "" {
		t.Errorf("state changed after a service failure (-before +after):\n%s", diff)
	}
}

func TestRun_RetryRecovers(t *testing.T) {
	gen := &scriptedGenerator{
		errs:    []error{errors.New("503"), nil},
		replies: []string{"", reply(-5)},
	}
	o := NewOrchestrator(gen, discardLogger(), WithRetry(3, time.Millisecond))

	out, err := o.Run(context.Background(), newState(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, 95, out.State.Health)
	assert.Len(t, out.State.ChatHistory, 2)
}

func TestRun_CancellationAbortsTurn(t *testing.T) {
	gen := &blockingGenerator{entered: make(chan struct{})}
	o := NewOrchestrator(gen, discardLogger(), WithRetry(5, time.Millisecond))
	gs := newState()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := o.Run(ctx, gs, "Hello")
		done <- err
	}()

	<-gen.entered
	cancel()
	err := <-done

	assert.ErrorIs(t, err, context.Canceled)
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, 1, svcErr.Attempts, "a cancelled turn is not retried")
	assert.Empty(t, gs.ChatHistory)
}

func TestRun_Timeout(t *testing.T) {
	gen := &blockingGenerator{entered: make(chan struct{})}
	o := NewOrchestrator(gen, discardLogger(), WithTimeout(20*time.Millisecond))

	_, err := o.Run(context.Background(), newState(), "Hello")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewOrchestrator_Defaults(t *testing.T) {
	o := NewOrchestrator(&scriptedGenerator{}, nil, WithRetry(0, -1))
	assert.Equal(t, DefaultMaxAttempts, o.maxAttempts)
	assert.Equal(t, DefaultRetryBackoff, o.backoff)
	assert.Equal(t, DefaultTurnTimeout, o.timeout)
	assert.NotNil(t, o.logger)
}
