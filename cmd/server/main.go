package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sunshinevendetta/frame/internal/config"
	"github.com/sunshinevendetta/frame/internal/domain"
	"github.com/sunshinevendetta/frame/internal/entitlement"
	"github.com/sunshinevendetta/frame/internal/handler"
	"github.com/sunshinevendetta/frame/internal/identity"
	"github.com/sunshinevendetta/frame/internal/kafka"
	"github.com/sunshinevendetta/frame/internal/leaderboard"
	"github.com/sunshinevendetta/frame/internal/messaging"
	"github.com/sunshinevendetta/frame/internal/payment"
	"github.com/sunshinevendetta/frame/internal/postgres"
	"github.com/sunshinevendetta/frame/internal/redis"
	"github.com/sunshinevendetta/frame/internal/session"
	"github.com/sunshinevendetta/frame/internal/websocket"
	"github.com/sunshinevendetta/frame/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis standings store
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	standings, err := redis.NewStore(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer standings.Close()
	logger.Info("connected to Redis")

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	history, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer history.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := history.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Outbound service clients
	resolver := identity.NewResolver(&cfg.Identity, logger)
	checker := entitlement.NewChecker(&cfg.Entitlement, logger)
	payments := payment.NewClient(&cfg.Payment, logger)

	// Messaging is optional; without a key the client short-circuits sends
	messenger, err := messaging.NewClient(&cfg.Messaging, logger)
	if err != nil {
		if errors.Is(err, domain.ErrConfigMissing) {
			logger.Warn("messaging not configured, direct messages disabled")
		} else {
			logger.Error("failed to create messaging client", "error", err)
			os.Exit(1)
		}
	}

	// Initialize the daily window cycle
	cycleManager := leaderboard.NewCycleManager(
		standings,
		history,
		resolver,
		payments,
		wsHub,
		messenger,
		&cfg.Cycle,
		logger,
	)
	cycleManager.Start(ctx)

	// Initialize the session manager
	sessionManager := session.NewManager(
		&cfg.Game,
		resolver,
		checker,
		payments,
		cycleManager,
		logger,
	)

	// Initialize standings archiver
	archiver := worker.NewArchiver(standings, history, cycleManager, &cfg.Archive, logger)
	if cfg.Archive.Enabled {
		if err := archiver.Start(ctx); err != nil {
			logger.Error("failed to start archiver", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka consumer for high-load score ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, cycleManager, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler
	httpHandler := handler.NewHandler(
		sessionManager,
		cycleManager,
		history,
		messenger,
		wsHub,
		&cfg.Leaderboard,
		logger,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop archiver
	if cfg.Archive.Enabled {
		if err := archiver.Stop(); err != nil {
			logger.Error("failed to stop archiver", "error", err)
		}
	}

	// Stop session tickers and the cycle timer
	sessionManager.Stop()
	cycleManager.Stop()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
