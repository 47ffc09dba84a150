package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/jwebster45206/lingua-quest/internal/config"
	"github.com/jwebster45206/lingua-quest/internal/logger"
	"github.com/jwebster45206/lingua-quest/internal/services/events"
	"github.com/jwebster45206/lingua-quest/internal/services/queue"
	"github.com/jwebster45206/lingua-quest/internal/storage"
	queuePkg "github.com/jwebster45206/lingua-quest/pkg/queue"
	"github.com/jwebster45206/lingua-quest/pkg/state"
)

var (
	follow  bool
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "test-enqueue [message...]",
	Short: "Create a session in Redis and queue its opening turn plus one turn per message",
	Long: `Seeds a session from the environment (TARGET_LANGUAGE, LANGUAGE_LEVEL, ...),
saves it to REDIS_URL and queues work for a running worker. With --follow the
session's events are printed until every queued turn has finished.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().BoolVarP(&follow, "follow", "f", false, "Print session events until all turns finish")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to follow events")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, messages []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.SetupWriter(cfg, os.Stderr)
	ctx := cmd.Context()

	store, err := storage.NewRedisStorage(cfg.RedisURL, cfg.SessionTTL, log)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	queueClient, err := queue.NewClient(cfg.RedisURL, log)
	if err != nil {
		return fmt.Errorf("failed to create queue client: %w", err)
	}
	defer func() {
		_ = queueClient.Close()
	}()
	turnQueue := queue.NewTurnQueue(queueClient)
	broadcaster := events.NewBroadcaster(queueClient.GetRedisClient(), log)

	gs := state.NewGameState(cfg.Seed(), cfg.ResponseContract)
	if err := store.SaveGameState(ctx, gs.ID, gs); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	fmt.Printf("Created session %s (%s, %s)\n", gs.ID, gs.TargetLanguage, gs.Contract)

	// Subscribe before queueing so no event is missed
	var eventsCh <-chan *redis.Message
	if follow {
		pubsub := broadcaster.Subscribe(ctx, gs.ID)
		defer func() {
			_ = pubsub.Close()
		}()
		if _, err := pubsub.Receive(ctx); err != nil {
			return fmt.Errorf("failed to subscribe to session events: %w", err)
		}
		eventsCh = pubsub.Channel()
	}

	requests := []*queuePkg.Request{queuePkg.NewStartRequest(gs.ID)}
	for _, m := range messages {
		requests = append(requests, queuePkg.NewTurnRequest(gs.ID, m))
	}
	for _, req := range requests {
		if err := turnQueue.EnqueueRequest(ctx, req); err != nil {
			return fmt.Errorf("failed to enqueue %s request: %w", req.Type, err)
		}
		if err := broadcaster.PublishTurnQueued(ctx, gs.ID, req.RequestID, string(req.Type)); err != nil {
			log.Warn("Failed to publish queued event", "error", err, "request_id", req.RequestID)
		}
		fmt.Printf("Enqueued %s request %s\n", req.Type, req.RequestID)
	}

	depth, err := turnQueue.RequestQueueDepth(ctx)
	if err != nil {
		return fmt.Errorf("failed to get queue depth: %w", err)
	}
	fmt.Printf("\nQueue depth: %d requests\n", depth)

	if !follow {
		fmt.Println("Start a worker to process them: go run ./cmd/worker")
		return nil
	}
	return followEvents(ctx, eventsCh, len(requests))
}

// followEvents prints events until want turns have completed or failed.
func followEvents(ctx context.Context, ch <-chan *redis.Message, want int) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := 0
	for done < want {
		select {
		case <-ctx.Done():
			return fmt.Errorf("stopped following after %s with %d of %d turns finished", timeout, done, want)
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("event subscription closed")
			}
			var event events.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				fmt.Printf("? %s\n", msg.Payload)
				continue
			}
			fmt.Printf("[%s] %s\n", event.Type, describe(event))
			switch event.Type {
			case events.EventTypeTurnCompleted, events.EventTypeTurnFailed:
				done++
			case events.EventTypeGameOver:
				return nil
			}
		}
	}
	return nil
}

func describe(event events.Event) string {
	switch event.Type {
	case events.EventTypeTurnCompleted:
		result, _ := event.Data["result"].(map[string]any)
		if narration, ok := result["narration"].(string); ok {
			return narration
		}
	case events.EventTypeTurnFailed:
		if msg, ok := event.Data["error"].(string); ok {
			return msg
		}
	case events.EventTypeTurnProcessing:
		if msg, ok := event.Data["player_message"].(string); ok && msg != "" {
			return fmt.Sprintf("%q", msg)
		}
	}
	return event.RequestID
}
