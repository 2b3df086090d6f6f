// Package api exposes the HTTP ingress: the WhatsApp webhook, the platform
// hooks and the health endpoints.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/vitalis-care/plantao/pkg/database"
	"github.com/vitalis-care/plantao/pkg/engine"
)

// TurnEngine is the engine surface the ingress consumes.
type TurnEngine interface {
	Handle(ctx context.Context, in engine.Inbound) (*engine.Result, error)
	ApplyTemplateEvent(ctx context.Context, phoneNumber string, event engine.TemplateEvent) error
}

// Config holds the HTTP server settings.
type Config struct {
	Port            int
	ShutdownTimeout time.Duration
}

// LoadConfigFromEnv reads the server settings from the environment.
func LoadConfigFromEnv() Config {
	cfg := Config{
		Port:            8080,
		ShutdownTimeout: 10 * time.Second,
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Port = port
		}
	}
	return cfg
}

// Server is the HTTP ingress.
type Server struct {
	engine TurnEngine
	db     *database.Client
	redis  *redis.Client
	logger *slog.Logger

	config Config
	http   *http.Server
}

// NewServer creates the ingress and wires its routes.
func NewServer(cfg Config, turnEngine TurnEngine, db *database.Client, redisClient *redis.Client, logger *slog.Logger) *Server {
	s := &Server{
		engine: turnEngine,
		db:     db,
		redis:  redisClient,
		logger: logger.With("component", "api"),
		config: cfg,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestID(), requestLogger(s.logger), gin.Recovery())

	router.POST("/webhook/ingest", s.ingestHandler)
	router.POST("/hooks/template-fired", s.templateFiredHandler)
	router.GET("/healthz", s.healthHandler)
	router.GET("/readyz", s.readyHandler)

	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}
	return s
}

// Handler exposes the router, used by the tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}
