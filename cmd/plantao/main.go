// Plantao orchestrator server — receives WhatsApp messages, runs the
// conversational turn engine and talks to the home-care scheduling platform.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/vitalis-care/plantao/pkg/api"
	"github.com/vitalis-care/plantao/pkg/backend"
	"github.com/vitalis-care/plantao/pkg/cleanup"
	"github.com/vitalis-care/plantao/pkg/database"
	"github.com/vitalis-care/plantao/pkg/engine"
	"github.com/vitalis-care/plantao/pkg/llm"
	"github.com/vitalis-care/plantao/pkg/store"
	"github.com/vitalis-care/plantao/pkg/version"
)

func main() {
	envFile := flag.String("env-file", getEnv("ENV_FILE", ".env"), "Path to the .env file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", *envFile, "error", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("Starting plantao", "version", version.Full())

	ctx := context.Background()

	// 1. PostgreSQL (sessions, pending actions, conversation buffer)
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		logger.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logger.Error("Error closing database client", "error", err)
		}
	}()
	logger.Info("Connected to PostgreSQL database")

	// 2. Redis (session locks, idempotency)
	redisConfig, err := store.LoadRedisConfigFromEnv()
	if err != nil {
		logger.Error("Failed to load redis config", "error", err)
		os.Exit(1)
	}
	redisClient, err := store.NewRedisClient(ctx, redisConfig)
	if err != nil {
		logger.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("Error closing redis client", "error", err)
		}
	}()
	logger.Info("Connected to Redis")

	// 3. Stores
	sessions := store.NewSessionStore(dbClient.DB(), logger)
	pending := store.NewPendingStore(dbClient.DB(), logger)
	buffer := store.NewBufferStore(dbClient.DB(), logger)
	locks := store.NewLockStore(redisClient, store.DefaultLockLease, logger)
	idem := store.NewIdempotencyStore(redisClient, store.DefaultIdempotencyTTL, logger)

	// 4. LLM gateway
	llmConfig, err := llm.LoadConfigFromEnv()
	if err != nil {
		logger.Error("Failed to load LLM config", "error", err)
		os.Exit(1)
	}
	gateway := llm.NewGateway(llmConfig, logger)
	logger.Info("LLM gateway initialized",
		"intent_model", llmConfig.IntentModel, "extractor_model", llmConfig.ExtractorModel)

	// 5. Scheduling platform client
	backendConfig, err := backend.LoadConfigFromEnv()
	if err != nil {
		logger.Error("Failed to load backend config", "error", err)
		os.Exit(1)
	}
	backendClient := backend.NewClient(backendConfig, logger)

	// 6. Turn engine
	turnEngine := engine.New(sessions, pending, buffer, locks, idem, gateway, backendClient, logger)

	// 7. Retention sweeper
	sweeper := cleanup.NewService(cleanup.LoadConfigFromEnv(), buffer, pending, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// 8. HTTP ingress
	server := api.NewServer(api.LoadConfigFromEnv(), turnEngine, dbClient, redisClient, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	logger.Info("Plantao started successfully")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		logger.Error("HTTP server error", "error", err)
	}

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	logger.Info("Plantao stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func logLevel() slog.Level {
	switch getEnv("LOG_LEVEL", "info") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
