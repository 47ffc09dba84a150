package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jwebster45206/lingua-quest/internal/config"
	"github.com/jwebster45206/lingua-quest/internal/logger"
	"github.com/jwebster45206/lingua-quest/internal/services"
	"github.com/jwebster45206/lingua-quest/internal/services/queue"
	"github.com/jwebster45206/lingua-quest/internal/storage"
	"github.com/jwebster45206/lingua-quest/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting lingua-quest worker",
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName)

	queueClient, err := queue.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing queue client", "error", err)
		}
	}()
	turnQueue := queue.NewTurnQueue(queueClient)

	store, err := storage.NewRedisStorage(cfg.RedisURL, cfg.SessionTTL, log)
	if err != nil {
		log.Error("Failed to create storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage connection", "error", err)
		}
	}()
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := store.WaitForConnection(storageCtx, 10, 2*time.Second); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage service initialized successfully")

	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer initCancel()
	llmService, err := services.NewLLMService(initCtx, cfg, log)
	if err != nil {
		log.Error("Failed to create LLM service", "error", err)
		os.Exit(1)
	}
	if err := llmService.InitModel(initCtx, cfg.ModelName); err != nil {
		log.Error("Failed to initialize LLM model", "error", err, "model", cfg.ModelName)
		os.Exit(1)
	}
	log.Info("LLM service initialized successfully", "provider", cfg.LLMProvider)

	processor := worker.NewTurnProcessor(store, llmService, log, cfg.TurnOptions()...)
	// The game lock is refreshed for as long as a turn runs, so TURN_TIMEOUT=0
	// needs no matching lock TTL
	w := worker.New(turnQueue, processor, queueClient.GetRedisClient(), log, cfg.WorkerID, worker.Options{})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(w.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Worker shutdown signal received", "worker_id", w.ID())
		w.Stop()
		return nil
	})

	log.Info("Worker started, waiting for requests...", "worker_id", w.ID())
	if err := g.Wait(); err != nil {
		log.Error("Worker error", "error", err)
		os.Exit(1)
	}
	log.Info("Worker exited")
}
