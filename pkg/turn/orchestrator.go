// Package turn runs one language-practice turn: build the prompt, call the
// generator, decode the reply, apply it to a copy of the game state and fold
// both sides of the exchange into the log.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jwebster45206/lingua-quest/pkg/chat"
	"github.com/jwebster45206/lingua-quest/pkg/contract"
	"github.com/jwebster45206/lingua-quest/pkg/prompts"
	"github.com/jwebster45206/lingua-quest/pkg/state"
)

const (
	DefaultMaxAttempts  = 3
	DefaultRetryBackoff = 500 * time.Millisecond
	DefaultTurnTimeout  = 60 * time.Second
)

// Generator produces the narrator's raw reply for a list of messages.
type Generator interface {
	Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error)
}

// Orchestrator composes prompt building, generation, parsing, delta
// application and log accumulation into a single turn.
type Orchestrator struct {
	generator   Generator
	logger      *slog.Logger
	maxAttempts int
	backoff     time.Duration
	timeout     time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRetry bounds generator attempts per turn. The wait between attempts
// starts at backoff and doubles each time.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(o *Orchestrator) {
		if maxAttempts > 0 {
			o.maxAttempts = maxAttempts
		}
		if backoff >= 0 {
			o.backoff = backoff
		}
	}
}

// WithTimeout limits how long one turn may take. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeout = d
	}
}

// NewOrchestrator creates a turn orchestrator.
func NewOrchestrator(generator Generator, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		generator:   generator,
		logger:      logger,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultRetryBackoff,
		timeout:     DefaultTurnTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Outcome is the result of one completed turn.
type Outcome struct {
	State    *state.GameState
	Result   contract.Result
	Raw      string
	Attempts int
}

// Run plays one turn against gs and returns the next game state. gs itself is
// never modified: on any error the caller still holds the state from before
// the turn. An empty utterance is only accepted on an empty log, where it
// stands for the implicit start of the game.
func (o *Orchestrator) Run(ctx context.Context, gs *state.GameState, utterance string) (*Outcome, error) {
	if gs == nil {
		return nil, fmt.Errorf("game state is required")
	}
	c, err := contract.Lookup(gs.Contract)
	if err != nil {
		return nil, err
	}

	utterance = strings.TrimSpace(utterance)
	if utterance == "" && !gs.IsOpening() {
		return nil, ErrEmptyUtterance
	}

	next, err := gs.DeepCopy()
	if err != nil {
		return nil, fmt.Errorf("failed to copy game state: %w", err)
	}
	if utterance != "" {
		next.AppendHistory(chat.ChatMessage{Role: chat.ChatRolePlayer, Content: utterance})
	}

	messages, err := prompts.BuildMessages(next, c)
	if err != nil {
		return nil, fmt.Errorf("failed to build chat messages: %w", err)
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	raw, attempts, err := o.generate(ctx, next, messages)
	if err != nil {
		return nil, err
	}

	result := contract.Parse(c, raw)
	if result.OK() {
		state.NewDeltaWorker(next, &result.Payload.StateChange, o.logger).
			WithEvaluation(result.Payload.Evaluation).
			Apply()
	} else {
		o.logger.Warn("Narrator reply did not match the response contract",
			"game_state_id", next.ID.String(),
			"contract", c.Version(),
			"reason", result.Failure.Reason)
		state.MarkParseFailure(next)
	}

	next.AppendHistory(chat.ChatMessage{Role: chat.ChatRoleNarrator, Content: raw})
	next.TurnCounter++
	next.UpdatedAt = time.Now()

	o.logger.Debug("Turn complete",
		"game_state_id", next.ID.String(),
		"turn", next.TurnCounter,
		"parsed", result.OK(),
		"health", next.Health,
		"standing", next.Standing)

	return &Outcome{
		State:    next,
		Result:   result,
		Raw:      raw,
		Attempts: attempts,
	}, nil
}

// generate calls the generator with bounded retry and exponential backoff.
// A cancelled or expired context stops retrying at once.
func (o *Orchestrator) generate(ctx context.Context, gs *state.GameState, messages []chat.ChatMessage) (string, int, error) {
	var lastErr error
	wait := o.backoff

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		o.logger.Debug("Sending chat request to LLM",
			"game_state_id", gs.ID.String(),
			"attempt", attempt,
			"messages", len(messages))

		resp, err := o.generator.Chat(ctx, messages)
		if err == nil && resp == nil {
			err = errors.New("generator returned no response")
		}
		if err == nil {
			return resp.Message, attempt, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", attempt, &ServiceError{Attempts: attempt, Err: ctxErr}
		}
		if attempt == o.maxAttempts {
			break
		}

		o.logger.Warn("LLM chat failed, will retry",
			"error", err,
			"game_state_id", gs.ID.String(),
			"attempt", attempt,
			"backoff", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", attempt, &ServiceError{Attempts: attempt, Err: ctx.Err()}
		case <-timer.C:
		}
		wait *= 2
	}

	o.logger.Error("LLM chat failed after retries",
		"error", lastErr,
		"game_state_id", gs.ID.String(),
		"attempts", o.maxAttempts)
	return "", o.maxAttempts, &ServiceError{Attempts: o.maxAttempts, Err: lastErr}
}
