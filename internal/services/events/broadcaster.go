package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeTurnQueued     EventType = "turn.queued"
	EventTypeTurnProcessing EventType = "turn.processing"
	EventTypeTurnCompleted  EventType = "turn.completed"
	EventTypeTurnFailed     EventType = "turn.failed"
	EventTypeGameOver       EventType = "game.over"
)

// Event represents a generic event structure
type Event struct {
	Type      EventType      `json:"type"`
	RequestID string         `json:"request_id,omitempty"`
	GameID    string         `json:"game_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Channel is the Pub/Sub channel carrying one session's events
func Channel(gameID uuid.UUID) string {
	return fmt.Sprintf("game-events:%s", gameID.String())
}

// Subscribe opens a subscription to one session's events. The caller closes it.
func (b *Broadcaster) Subscribe(ctx context.Context, gameID uuid.UUID) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, Channel(gameID))
}

// PublishTurnQueued publishes a turn.queued event
func (b *Broadcaster) PublishTurnQueued(ctx context.Context, gameID uuid.UUID, requestID string, requestType string) error {
	return b.publishToGame(ctx, gameID, Event{
		Type:      EventTypeTurnQueued,
		RequestID: requestID,
		GameID:    gameID.String(),
		Data: map[string]any{
			"status": "queued",
			"type":   requestType,
		},
	})
}

// PublishTurnProcessing publishes a turn.processing event
func (b *Broadcaster) PublishTurnProcessing(ctx context.Context, gameID uuid.UUID, requestID string, requestType string, playerMessage string) error {
	return b.publishToGame(ctx, gameID, Event{
		Type:      EventTypeTurnProcessing,
		RequestID: requestID,
		GameID:    gameID.String(),
		Data: map[string]any{
			"status":         "processing",
			"type":           requestType,
			"player_message": playerMessage,
		},
	})
}

// PublishTurnCompleted publishes a turn.completed event
func (b *Broadcaster) PublishTurnCompleted(ctx context.Context, gameID uuid.UUID, requestID string, result map[string]any) error {
	return b.publishToGame(ctx, gameID, Event{
		Type:      EventTypeTurnCompleted,
		RequestID: requestID,
		GameID:    gameID.String(),
		Data: map[string]any{
			"status": "completed",
			"result": result,
		},
	})
}

// PublishTurnFailed publishes a turn.failed event
func (b *Broadcaster) PublishTurnFailed(ctx context.Context, gameID uuid.UUID, requestID string, errorMsg string) error {
	return b.publishToGame(ctx, gameID, Event{
		Type:      EventTypeTurnFailed,
		RequestID: requestID,
		GameID:    gameID.String(),
		Data: map[string]any{
			"status": "failed",
			"error":  errorMsg,
		},
	})
}

// PublishGameOver publishes a game.over event once health reaches zero
func (b *Broadcaster) PublishGameOver(ctx context.Context, gameID uuid.UUID, turn int, health int) error {
	return b.publishToGame(ctx, gameID, Event{
		Type:   EventTypeGameOver,
		GameID: gameID.String(),
		Data: map[string]any{
			"turn":   turn,
			"health": health,
		},
	})
}

// publishToGame publishes an event to the game-specific channel
func (b *Broadcaster) publishToGame(ctx context.Context, gameID uuid.UUID, event Event) error {
	channel := Channel(gameID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"request_id", event.RequestID,
	)
	return nil
}
