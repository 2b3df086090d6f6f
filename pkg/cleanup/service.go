// Package cleanup provides data retention sweeps for the conversation
// buffer and the pending-action audit trail.
package cleanup

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/vitalis-care/plantao/pkg/models"
)

// DefaultSweepInterval is how often the retention sweeps run.
const DefaultSweepInterval = time.Hour

// BufferSweeper deletes buffer entries older than a cutoff.
type BufferSweeper interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PendingSweeper cancels staged actions whose confirmation window elapsed.
type PendingSweeper interface {
	CancelExpired(ctx context.Context, now time.Time) (int64, error)
}

// Config holds the retention policy.
type Config struct {
	BufferRetention time.Duration
	SweepInterval   time.Duration
}

// LoadConfigFromEnv reads the retention policy from the environment, with
// the platform defaults as fallback.
func LoadConfigFromEnv() Config {
	cfg := Config{
		BufferRetention: models.DefaultBufferRetention,
		SweepInterval:   DefaultSweepInterval,
	}
	if v := os.Getenv("BUFFER_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			cfg.BufferRetention = time.Duration(days) * 24 * time.Hour
		}
	}
	if v := os.Getenv("CLEANUP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SweepInterval = d
		}
	}
	return cfg
}

// Service periodically enforces retention:
//   - Deletes conversation buffer entries past the retention window
//   - Cancels staged pending actions whose confirmation expired
//
// Both sweeps are idempotent and safe to run from multiple pods.
type Service struct {
	config  Config
	buffer  BufferSweeper
	pending PendingSweeper
	logger  *slog.Logger
	now     func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a cleanup service.
func NewService(cfg Config, buffer BufferSweeper, pending PendingSweeper, logger *slog.Logger) *Service {
	return &Service{
		config:  cfg,
		buffer:  buffer,
		pending: pending,
		logger:  logger.With("component", "cleanup"),
		now:     time.Now,
	}
}

// Start launches the background sweep loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	s.logger.Info("cleanup service started",
		"buffer_retention", s.config.BufferRetention,
		"interval", s.config.SweepInterval)
}

// Stop signals the loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes both sweeps immediately.
func (s *Service) RunOnce(ctx context.Context) {
	s.sweepBuffer(ctx)
	s.sweepPending(ctx)
}

func (s *Service) sweepBuffer(ctx context.Context) {
	cutoff := s.now().Add(-s.config.BufferRetention)
	count, err := s.buffer.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("buffer retention sweep failed", "error", err)
		return
	}
	if count > 0 {
		s.logger.Info("deleted expired buffer entries", "count", count)
	}
}

func (s *Service) sweepPending(ctx context.Context) {
	count, err := s.pending.CancelExpired(ctx, s.now())
	if err != nil {
		s.logger.Error("pending expiry sweep failed", "error", err)
		return
	}
	if count > 0 {
		s.logger.Info("cancelled expired pending actions", "count", count)
	}
}
