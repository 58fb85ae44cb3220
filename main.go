package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatcore/auth"
	"chatcore/config"
	infraredis "chatcore/infrastructure/redis"
	"chatcore/pkg/logger"
	"chatcore/server"
	"chatcore/server/handlers"
	ws "chatcore/server/websocket"
	"chatcore/services/broadcast"
	"chatcore/services/directory"
	"chatcore/services/messages"
	"chatcore/services/presence"
	"chatcore/services/registry"
	"chatcore/storage"
	"chatcore/storage/feed"
	"chatcore/storage/postgres"
	"chatcore/storage/rediscache"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application failed: %v", err)
	}
}

func run() error {
	// Load environment
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log.Println("✓ Configuration loaded and validated")
	cfg.PrintSummary()

	logger.SetDefault(logger.New(cfg.Server.LogFile))

	// Auth provider for the connect handshake
	authProvider, err := auth.FromConfig(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize auth provider: %w", err)
	}

	// Persistence providers are all optional; the in-memory state is
	// authoritative with or without them.
	var providers []storage.Provider
	var hydrator storage.Hydrator
	var recent handlers.RecentSource

	if cfg.Database.ConnectionString != "" {
		pg, err := postgres.New(cfg.Database.ConnectionString)
		if err != nil {
			return fmt.Errorf("failed to initialize Postgres store: %w", err)
		}
		providers = append(providers, pg)
		hydrator = pg
		log.Println("✓ Connected to Postgres")
	}

	if cfg.Redis.Address != "" {
		rdb, err := infraredis.NewClient(cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis client: %w", err)
		}
		defer rdb.Close()
		cache := rediscache.New(rdb)
		providers = append(providers, cache)
		recent = cache
		log.Println("✓ Connected to Redis")
	}

	if cfg.Kafka.Address != "" {
		kf, err := feed.New(cfg.Kafka.Address, cfg.Kafka.Topic)
		if err != nil {
			return fmt.Errorf("failed to initialize Kafka feed: %w", err)
		}
		providers = append(providers, kf)
		log.Println("✓ Connected to Kafka")
	}

	notifier := storage.NewNotifier(providers...)
	defer notifier.Close()

	// Core state
	reg := registry.New()
	dir := directory.New()
	store := messages.New(dir)
	dir.SetRecency(store)

	if hydrator != nil {
		hydrateCtx, hydrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
		snap, err := hydrator.Hydrate(hydrateCtx)
		hydrateCancel()
		if err != nil {
			return fmt.Errorf("failed to hydrate state: %w", err)
		}
		dir.Load(snap.Chats)
		store.Load(snap.Messages)
		log.Printf("✓ Hydrated %d chats, %d messages", len(snap.Chats), len(snap.Messages))
	}

	// Delivery layer
	manager := ws.NewManager(cfg.Delivery)
	presenceSvc := presence.New(authProvider, reg, manager)
	hub := broadcast.New(reg, dir, store, manager, notifier)
	log.Println("✓ Initialized delivery services")

	srv, err := server.NewServer(cfg, manager, presenceSvc, hub, dir, store, notifier, recent)
	if err != nil {
		return fmt.Errorf("failed to create server; err: %w", err)
	}

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errChan <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		log.Printf("Received signal: %v. Shutting down gracefully...", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	manager.CloseAll()

	log.Println("✓ Server shutdown complete")
	return nil
}
