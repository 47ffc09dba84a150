package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/lingua-quest/internal/config"
	"github.com/jwebster45206/lingua-quest/internal/handlers"
	"github.com/jwebster45206/lingua-quest/internal/logger"
	"github.com/jwebster45206/lingua-quest/internal/middleware"
	"github.com/jwebster45206/lingua-quest/internal/services/events"
	"github.com/jwebster45206/lingua-quest/internal/services/queue"
	"github.com/jwebster45206/lingua-quest/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting lingua-quest API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"response_contract", cfg.ResponseContract)

	store, err := storage.NewRedisStorage(cfg.RedisURL, cfg.SessionTTL, log)
	if err != nil {
		log.Error("Failed to create storage", "error", err)
		os.Exit(1)
	}
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := store.WaitForConnection(storageCtx, 10, 2*time.Second); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	queueClient, err := queue.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	turnQueue := queue.NewTurnQueue(queueClient)
	broadcaster := events.NewBroadcaster(queueClient.GetRedisClient(), log)

	mux := http.NewServeMux()
	mux.Handle("/health", handlers.NewHealthHandler(store, turnQueue, log))

	sessionHandler := handlers.NewSessionHandler(store, cfg.ResponseContract, cfg.Seed(), log)
	mux.Handle("/v1/sessions", sessionHandler)
	mux.Handle("/v1/sessions/", sessionHandler)
	mux.Handle("/v1/sessions/{id}/turns", handlers.NewTurnHandler(store, turnQueue, broadcaster, log))
	mux.Handle("/v1/events/sessions/", handlers.NewEventsHandler(broadcaster, log))

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.LoggerWith(log, mux),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the events endpoint streams for as long as the client listens
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := queueClient.Close(); err != nil {
		log.Error("Error closing queue client", "error", err)
	}
	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
