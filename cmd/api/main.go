package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/campfire/internal/config"
	"github.com/jwebster45206/campfire/internal/handlers"
	"github.com/jwebster45206/campfire/internal/logger"
	"github.com/jwebster45206/campfire/internal/middleware"
	blobstore "github.com/jwebster45206/campfire/internal/storage"
	"github.com/jwebster45206/campfire/internal/story"
	"github.com/jwebster45206/campfire/pkg/engine"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Campfire API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"blob_backend", cfg.BlobBackend,
		"story_path", cfg.StoryPath)

	if cfg.StoryPath == "" {
		log.Error("STORY_PATH is required")
		os.Exit(1)
	}
	s, err := story.Load(cfg.StoryPath)
	if err != nil {
		log.Error("Failed to load story", "error", err, "path", cfg.StoryPath)
		os.Exit(1)
	}
	log.Info("Story loaded", "title", s.Title, "passages", len(s.Passages))

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	blobs, err := blobstore.Open(storageCtx, blobstore.Options{
		Backend:    cfg.BlobBackend,
		RedisURL:   cfg.RedisURL,
		SQLitePath: cfg.SQLitePath,
		TTL:        cfg.SessionTTL,
	}, log)
	if err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	mux := http.NewServeMux()
	mux.Handle("/health", handlers.NewHealthHandler(blobs, log))

	sessionHandler := handlers.NewSessionHandler(blobs, s, s.StartID(), log,
		engine.WithMaxIncludeDepth(cfg.MaxIncludeDepth),
		engine.WithMaxIterations(cfg.MaxLoopIterations),
		engine.WithSaveKey(cfg.SaveKey),
	)
	mux.Handle("/v1/sessions", sessionHandler)
	mux.Handle("/v1/sessions/", sessionHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      middleware.Logger(log, mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	if err := blobs.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
