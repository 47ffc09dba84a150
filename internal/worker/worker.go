package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/lingua-quest/internal/services/events"
	"github.com/jwebster45206/lingua-quest/internal/services/queue"
	queuePkg "github.com/jwebster45206/lingua-quest/pkg/queue"
	"github.com/jwebster45206/lingua-quest/pkg/turn"
)

const (
	DefaultDequeueTimeout = 5 * time.Second
	DefaultLockTTL        = 30 * time.Second
	DefaultMaxRequeues    = 50

	requeueDelay = 100 * time.Millisecond
)

var refreshLockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

var releaseLockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Worker processes requests from the turn queue, one session at a time
type Worker struct {
	id          string
	queue       *queue.TurnQueue
	processor   *TurnProcessor
	broadcaster *events.Broadcaster
	redisClient *redis.Client
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc

	dequeueTimeout time.Duration
	lockTTL        time.Duration
	maxRequeues    int
}

// Options tune the worker loop. Zero values select the defaults.
type Options struct {
	DequeueTimeout time.Duration
	LockTTL        time.Duration
	MaxRequeues    int
}

// New creates a new worker instance
func New(turnQueue *queue.TurnQueue, processor *TurnProcessor, redisClient *redis.Client, log *slog.Logger, workerID string, opts Options) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if opts.DequeueTimeout <= 0 {
		opts.DequeueTimeout = DefaultDequeueTimeout
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultLockTTL
	}
	if opts.MaxRequeues <= 0 {
		opts.MaxRequeues = DefaultMaxRequeues
	}

	return &Worker{
		id:             workerID,
		queue:          turnQueue,
		processor:      processor,
		broadcaster:    events.NewBroadcaster(redisClient, log),
		redisClient:    redisClient,
		log:            log,
		ctx:            ctx,
		cancel:         cancel,
		dequeueTimeout: opts.DequeueTimeout,
		lockTTL:        opts.LockTTL,
		maxRequeues:    opts.MaxRequeues,
	}
}

// ID returns the worker's lock owner id
func (w *Worker) ID() string {
	return w.id
}

// Start processes requests until Stop is called
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "worker_id", w.id)

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down", "worker_id", w.id)
			return nil
		default:
			if err := w.processNextRequest(); err != nil {
				w.log.Error("Error processing request", "error", err, "worker_id", w.id)
				// Keep going; a failed request is already reported on its session channel
				select {
				case <-w.ctx.Done():
				case <-time.After(time.Second):
				}
			}
		}
	}
}

// Stop gracefully shuts down the worker. An in-flight turn is cancelled and
// nothing is saved for it.
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}

// processNextRequest takes the next ticket, locks its session and plays the
// session's oldest waiting request
func (w *Worker) processNextRequest() error {
	ticket, err := w.queue.BlockingDequeueTicket(w.ctx, w.dequeueTimeout)
	if err != nil {
		if w.ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to dequeue request: %w", err)
	}
	if ticket == nil {
		return nil
	}

	locked, err := w.acquireGameLock(ticket.GameStateID)
	if err != nil {
		return fmt.Errorf("failed to acquire game lock: %w", err)
	}
	if !locked {
		return w.requeue(ticket)
	}

	stop := make(chan struct{})
	held := make(chan struct{})
	go func() {
		defer close(held)
		w.holdGameLock(ticket.GameStateID, stop)
	}()
	defer func() {
		close(stop)
		<-held
		w.releaseGameLock(ticket.GameStateID)
	}()

	req, err := w.queue.NextSessionRequest(w.ctx, ticket.GameStateID)
	if err != nil {
		return err
	}
	if req == nil {
		w.log.Warn("Ticket had no waiting request",
			"worker_id", w.id,
			"game_state_id", ticket.GameStateID.String())
		return nil
	}

	w.log.Info("Received request from queue",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"type", req.Type,
		"game_state_id", req.GameStateID.String(),
	)
	return w.processRequest(req)
}

// requeue puts the ticket of a locked session at the back of the queue. The
// session's requests keep their order on the session list.
func (w *Worker) requeue(ticket *queuePkg.Ticket) error {
	ticket.Attempts++
	if ticket.Attempts > w.maxRequeues {
		return w.dropOldest(ticket)
	}

	w.log.Info("Game already locked, re-queueing ticket",
		"worker_id", w.id,
		"game_state_id", ticket.GameStateID.String(),
		"attempts", ticket.Attempts,
	)
	if err := w.queue.RequeueTicket(w.ctx, ticket); err != nil {
		return err
	}

	select {
	case <-w.ctx.Done():
	case <-time.After(requeueDelay):
	}
	return nil
}

// dropOldest fails the session's oldest waiting request so tickets and
// requests stay one to one
func (w *Worker) dropOldest(ticket *queuePkg.Ticket) error {
	msg := fmt.Sprintf("session stayed busy after %d attempts", ticket.Attempts-1)

	req, err := w.queue.NextSessionRequest(w.ctx, ticket.GameStateID)
	if err != nil {
		return err
	}
	if req == nil {
		return fmt.Errorf("dropping ticket for %s: %s", ticket.GameStateID, msg)
	}
	w.publishFailed(req, msg)
	return fmt.Errorf("dropping request %s: %s", req.RequestID, msg)
}

func lockKey(gameStateID uuid.UUID) string {
	return fmt.Sprintf("game-lock:%s", gameStateID.String())
}

// acquireGameLock attempts to acquire a lock for a game
// Returns true if lock was acquired, false if already locked
func (w *Worker) acquireGameLock(gameStateID uuid.UUID) (bool, error) {
	return w.redisClient.SetNX(w.ctx, lockKey(gameStateID), w.id, w.lockTTL).Result()
}

// refreshGameLock resets the lock's expiry. It reports false when this
// worker no longer owns the lock.
func (w *Worker) refreshGameLock(gameStateID uuid.UUID) (bool, error) {
	n, err := refreshLockScript.Run(w.ctx, w.redisClient, []string{lockKey(gameStateID)}, w.id, w.lockTTL.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// holdGameLock keeps refreshing the lock until stop is closed, so a turn of
// any length keeps its session to itself
func (w *Worker) holdGameLock(gameStateID uuid.UUID, stop <-chan struct{}) {
	ticker := time.NewTicker(max(w.lockTTL/3, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			owned, err := w.refreshGameLock(gameStateID)
			if err != nil {
				w.log.Warn("Failed to refresh game lock", "error", err, "game_state_id", gameStateID.String())
				continue
			}
			if !owned {
				w.log.Error("Game lock lost during turn",
					"worker_id", w.id,
					"game_state_id", gameStateID.String())
				return
			}
		}
	}
}

// releaseGameLock releases the lock for a game if this worker still owns it
func (w *Worker) releaseGameLock(gameStateID uuid.UUID) {
	// The worker context may already be cancelled on shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := releaseLockScript.Run(ctx, w.redisClient, []string{lockKey(gameStateID)}, w.id).Err(); err != nil {
		w.log.Error("Failed to release game lock", "error", err, "game_state_id", gameStateID.String())
	}
}

// processRequest plays one turn and publishes its outcome
func (w *Worker) processRequest(req *queuePkg.Request) error {
	w.log.Info("Processing request",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"type", req.Type,
		"game_state_id", req.GameStateID.String(),
	)

	if err := w.broadcaster.PublishTurnProcessing(w.ctx, req.GameStateID, req.RequestID, string(req.Type), req.Message); err != nil {
		// Event publishing never fails the turn
		w.log.Error("Failed to publish processing event", "error", err)
	}

	result, err := w.processor.Process(w.ctx, req)
	if err != nil {
		w.log.Error("Turn failed",
			"error", err,
			"request_id", req.RequestID,
			"game_state_id", req.GameStateID.String(),
		)
		w.publishFailed(req, failureMessage(err))
		return fmt.Errorf("failed to process %s request: %w", req.Type, err)
	}

	w.log.Info("Turn processed successfully",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"game_state_id", req.GameStateID.String(),
		"turn", result.State.TurnCounter,
		"parsed", result.Parsed,
		"duration_ms", result.Duration.Milliseconds(),
	)

	if err := w.broadcaster.PublishTurnCompleted(w.ctx, req.GameStateID, req.RequestID, result.ToEventData()); err != nil {
		w.log.Error("Failed to publish completion event", "error", err)
	}

	if result.State.IsGameOver() {
		if err := w.broadcaster.PublishGameOver(w.ctx, req.GameStateID, result.State.TurnCounter, result.State.Health); err != nil {
			w.log.Error("Failed to publish game over event", "error", err)
		}
	}
	return nil
}

func (w *Worker) publishFailed(req *queuePkg.Request, msg string) {
	// Use a fresh context so a shutdown still reports the failure
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.broadcaster.PublishTurnFailed(ctx, req.GameStateID, req.RequestID, msg); err != nil {
		w.log.Error("Failed to publish failure event", "error", err)
	}
}

// failureMessage is the player-facing text of a turn error
func failureMessage(err error) string {
	var serviceErr *turn.ServiceError
	switch {
	case errors.Is(err, context.Canceled):
		return "turn cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "turn timed out"
	case errors.As(err, &serviceErr):
		return fmt.Sprintf("narrator unavailable after %d attempt(s)", serviceErr.Attempts)
	default:
		return err.Error()
	}
}
