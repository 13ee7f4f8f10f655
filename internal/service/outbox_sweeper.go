package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/renderjobs/config"
	"github.com/target/renderjobs/internal/core"
	"github.com/target/renderjobs/internal/observability/metrics"
	"github.com/target/renderjobs/internal/observability/statsd"
)

// OutboxSweeperServiceOptions groups dependencies for OutboxSweeperService.
type OutboxSweeperServiceOptions struct {
	Repo    core.OutboxRepository // Required: outbox repository
	Config  config.OutboxConfig   // Required: retention window, interval and batch size
	Logger  *slog.Logger          // Optional: structured logger
	Metrics statsd.Sink           // Optional: metrics sink (StatsD-compatible)
}

// OutboxSweeperService deletes outbox events older than the retention window.
// Sweep failures are logged and counted; they never stop the loop.
type OutboxSweeperService struct {
	repo    core.OutboxRepository
	config  config.OutboxConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewOutboxSweeperService constructs a new OutboxSweeperService.
func NewOutboxSweeperService(opts OutboxSweeperServiceOptions) (*OutboxSweeperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("OutboxRepository is required")
	}
	if opts.Config.SweepInterval <= 0 {
		return nil, errors.New("sweep interval must be positive")
	}
	if opts.Config.Retention <= 0 {
		return nil, errors.New("retention must be positive")
	}
	if opts.Config.SweepBatchSize < 1 {
		return nil, errors.New("sweep batch size must be positive")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "outbox_sweeper")
		logger.Debug("OutboxSweeperService initialized",
			"interval", opts.Config.SweepInterval,
			"retention", opts.Config.Retention,
			"batch_size", opts.Config.SweepBatchSize,
		)
	}

	return &OutboxSweeperService{
		repo:    opts.Repo,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// Run starts the sweep loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *OutboxSweeperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting outbox sweeper",
			"interval", s.config.SweepInterval,
			"retention", s.config.Retention,
		)
	}

	// Spread instances that start together
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	s.sweepAndLog(ctx, "initial sweep")

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "outbox sweeper stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			s.sweepAndLog(ctx, "sweep")
		}
	}
}

// waitWithJitter sleeps a random delay up to 10% of the interval.
func (s *OutboxSweeperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.SweepInterval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	timer := time.NewTimer(jitter)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (s *OutboxSweeperService) sweepAndLog(ctx context.Context, label string) {
	start := time.Now()
	deleted, err := s.SweepOnce(ctx)
	metrics.EmitOutboxSweep(s.metrics, deleted, time.Since(start), suppressContextCancellation(err))

	if s.logger == nil {
		return
	}
	switch {
	case err == nil:
		if deleted > 0 {
			s.logger.InfoContext(ctx, "deleted old outbox events",
				"count", deleted,
				"retention", s.config.Retention,
			)
		}
	case isContextCancellation(err):
		s.logger.Debug(label+" cancelled by context", "error", err)
	default:
		s.logger.Error(label+" failed", "error", err, "deleted", deleted)
	}
}

// SweepOnce deletes expired events in batches until a short batch signals the
// backlog is gone. It returns the number of rows deleted so far even on error.
func (s *OutboxSweeperService) SweepOnce(ctx context.Context) (int64, error) {
	var total int64
	for {
		count, err := s.repo.DeleteOlderThan(ctx, s.config.Retention, s.config.SweepBatchSize)
		if err != nil {
			return total, fmt.Errorf("delete old outbox events: %w", err)
		}
		total += count
		if count < int64(s.config.SweepBatchSize) {
			return total, nil
		}
		// Check context between batches
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
