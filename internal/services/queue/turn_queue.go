package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/lingua-quest/pkg/queue"
)

// RequestsKey is the Redis list of tickets shared by all workers. Each ticket
// stands for one request waiting on its session's list.
const RequestsKey = "requests"

const sessionKeyPrefix = "requests:session:"

// SessionKey is the Redis list holding one session's requests in arrival order
func SessionKey(gameStateID uuid.UUID) string {
	return sessionKeyPrefix + gameStateID.String()
}

// TurnQueue is the turn work queue shared by api and workers. Requests are
// kept per session so a session's turns always run in the order they arrived.
type TurnQueue struct {
	client *Client
}

func NewTurnQueue(client *Client) *TurnQueue {
	return &TurnQueue{
		client: client,
	}
}

// EnqueueRequest appends a request to its session's list and adds a ticket
// for it to the shared queue
func (q *TurnQueue) EnqueueRequest(ctx context.Context, req *queue.Request) error {
	data, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}
	ticket, err := (&queue.Ticket{GameStateID: req.GameStateID}).ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize ticket: %w", err)
	}

	_, err = q.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, SessionKey(req.GameStateID), data)
		pipe.RPush(ctx, RequestsKey, ticket)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue request: %w", err)
	}
	return nil
}

// RequeueTicket puts a ticket back on the shared queue. The session's
// requests stay where they are.
func (q *TurnQueue) RequeueTicket(ctx context.Context, ticket *queue.Ticket) error {
	data, err := ticket.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize ticket: %w", err)
	}
	if err := q.client.rdb.RPush(ctx, RequestsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to re-queue ticket: %w", err)
	}
	return nil
}

// BlockingDequeueTicket waits up to timeout for a ticket. It returns nil, nil
// when the timeout passes or ctx ends with nothing to process.
func (q *TurnQueue) BlockingDequeueTicket(ctx context.Context, timeout time.Duration) (*queue.Ticket, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, RequestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue ticket: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}
	return parseTicket(result[1])
}

// NextSessionRequest removes and returns the oldest request of a session.
// Only the holder of the session's game lock should call it.
// Returns nil if the session has nothing waiting.
func (q *TurnQueue) NextSessionRequest(ctx context.Context, gameStateID uuid.UUID) (*queue.Request, error) {
	result, err := q.client.rdb.LPop(ctx, SessionKey(gameStateID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session request: %w", err)
	}
	return parseRequest(result)
}

// DequeueRequest removes and returns the next request without taking a game
// lock. Returns nil if queue is empty
func (q *TurnQueue) DequeueRequest(ctx context.Context) (*queue.Request, error) {
	result, err := q.client.rdb.LPop(ctx, RequestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue ticket: %w", err)
	}
	ticket, err := parseTicket(result)
	if err != nil {
		return nil, err
	}
	return q.NextSessionRequest(ctx, ticket.GameStateID)
}

// RequestQueueDepth returns the number of requests waiting
func (q *TurnQueue) RequestQueueDepth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, RequestsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get request queue depth: %w", err)
	}
	return int(count), nil
}

func parseRequest(data string) (*queue.Request, error) {
	req, err := queue.FromJSON([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}

func parseTicket(data string) (*queue.Ticket, error) {
	ticket, err := queue.TicketFromJSON([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ticket: %w", err)
	}
	return ticket, nil
}
