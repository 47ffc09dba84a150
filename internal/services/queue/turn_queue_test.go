package queue

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/jwebster45206/lingua-quest/pkg/queue"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := NewClient("redis://"+mr.Addr(), logger)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create queue client: %v", err)
	}

	return client, mr
}

func TestTurnQueue_EnqueueAndDequeueInOrder(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	q := NewTurnQueue(client)
	ctx := context.Background()
	gameStateID := uuid.New()

	messages := []string{"Hello", "Where is the exit?", "Thank you"}
	for _, msg := range messages {
		if err := q.EnqueueRequest(ctx, queue.NewTurnRequest(gameStateID, msg)); err != nil {
			t.Fatalf("Failed to enqueue request: %v", err)
		}
	}

	depth, err := q.RequestQueueDepth(ctx)
	if err != nil {
		t.Fatalf("Failed to get depth: %v", err)
	}
	if depth != len(messages) {
		t.Errorf("Expected depth %d, got %d", len(messages), depth)
	}

	for i, msg := range messages {
		req, err := q.DequeueRequest(ctx)
		if err != nil {
			t.Fatalf("Failed to dequeue request %d: %v", i, err)
		}
		if req == nil || req.Message != msg || req.GameStateID != gameStateID {
			t.Errorf("Request %d: expected message %q, got %+v", i, msg, req)
		}
	}

	req, err := q.DequeueRequest(ctx)
	if err != nil {
		t.Fatalf("Unexpected error on empty queue: %v", err)
	}
	if req != nil {
		t.Errorf("Expected nil from empty queue, got %+v", req)
	}
}

func TestTurnQueue_BlockingDequeue(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	q := NewTurnQueue(client)
	ctx := context.Background()

	start := queue.NewStartRequest(uuid.New())
	if err := q.EnqueueRequest(ctx, start); err != nil {
		t.Fatalf("Failed to enqueue request: %v", err)
	}

	ticket, err := q.BlockingDequeueTicket(ctx, time.Second)
	if err != nil {
		t.Fatalf("BlockingDequeueTicket failed: %v", err)
	}
	if ticket == nil || ticket.GameStateID != start.GameStateID || ticket.Attempts != 0 {
		t.Fatalf("Unexpected ticket: %+v", ticket)
	}

	req, err := q.NextSessionRequest(ctx, ticket.GameStateID)
	if err != nil {
		t.Fatalf("NextSessionRequest failed: %v", err)
	}
	if req == nil || req.RequestID != start.RequestID || req.Type != queue.RequestTypeStart {
		t.Errorf("Unexpected request: %+v", req)
	}

	req, err = q.NextSessionRequest(ctx, ticket.GameStateID)
	if err != nil || req != nil {
		t.Errorf("Expected empty session list, got %+v, %v", req, err)
	}
}

func TestTurnQueue_RequeuedTicketKeepsSessionOrder(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	q := NewTurnQueue(client)
	ctx := context.Background()
	busy := uuid.New()
	other := uuid.New()

	for _, req := range []*queue.Request{
		queue.NewTurnRequest(busy, "A"),
		queue.NewTurnRequest(other, "X"),
		queue.NewTurnRequest(busy, "B"),
		queue.NewTurnRequest(busy, "C"),
	} {
		if err := q.EnqueueRequest(ctx, req); err != nil {
			t.Fatalf("Failed to enqueue request: %v", err)
		}
	}

	// A locked session sends its first ticket to the back of the queue
	ticket, err := q.BlockingDequeueTicket(ctx, time.Second)
	if err != nil || ticket == nil || ticket.GameStateID != busy {
		t.Fatalf("Unexpected ticket %+v, %v", ticket, err)
	}
	ticket.Attempts++
	if err := q.RequeueTicket(ctx, ticket); err != nil {
		t.Fatalf("RequeueTicket failed: %v", err)
	}

	depth, err := q.RequestQueueDepth(ctx)
	if err != nil || depth != 4 {
		t.Fatalf("Expected depth 4, got %d (%v)", depth, err)
	}

	var busyOrder []string
	for i := 0; i < 4; i++ {
		ticket, err := q.BlockingDequeueTicket(ctx, time.Second)
		if err != nil || ticket == nil {
			t.Fatalf("Ticket %d: %+v, %v", i, ticket, err)
		}
		req, err := q.NextSessionRequest(ctx, ticket.GameStateID)
		if err != nil || req == nil {
			t.Fatalf("Request %d: %+v, %v", i, req, err)
		}
		if req.GameStateID == busy {
			busyOrder = append(busyOrder, req.Message)
		}
	}

	if diff := cmp.Diff([]string{"A", "B", "C"}, busyOrder); diff != "" {
		t.Errorf("Session turns out of order (-want +got):\n%s", diff)
	}
}

func TestTurnQueue_BlockingDequeueTimeout(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ticket, err := NewTurnQueue(client).BlockingDequeueTicket(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Expected no error on timeout, got %v", err)
	}
	if ticket != nil {
		t.Errorf("Expected nil ticket, got %+v", ticket)
	}
}

func TestTurnQueue_CorruptEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	if _, err := mr.Lpush(RequestsKey, "{broken"); err != nil {
		t.Fatalf("Failed to seed queue: %v", err)
	}

	if _, err := NewTurnQueue(client).DequeueRequest(context.Background()); err == nil {
		t.Error("Expected parse error for a corrupt request")
	}
}

func TestNewClient_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	if _, err := NewClient("redis://"+addr, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Error("Expected connection error")
	}
}
