// Package relay provides adapters for running the outbox relay.
package relay

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/renderjobs/config"
	"github.com/target/renderjobs/internal/adapters/redisstream"
	"github.com/target/renderjobs/internal/core"
	"github.com/target/renderjobs/internal/data"
	"github.com/target/renderjobs/internal/observability/statsd"
	"github.com/target/renderjobs/internal/service"
)

// Runner constructs the relay service and runs its loop.
type Runner struct {
	relay  *service.OutboxRelayService
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB     *sql.DB
	Redis  redis.UniversalClient
	Config config.OutboxConfig
	Logger *slog.Logger

	// Optional dependency injection for testing/decoupling
	Repo      core.OutboxRepository
	Publisher core.EventPublisher
	Metrics   statsd.Sink
}

// NewRunner creates a new relay runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	repo := opts.Repo
	if repo == nil {
		repo = data.NewOutboxRepo(opts.DB, data.RepoConfig{Logger: opts.Logger})
	}

	publisher := opts.Publisher
	if publisher == nil {
		p, err := redisstream.NewPublisher(opts.Redis, redisstream.PublisherOptions{})
		if err != nil {
			return nil, fmt.Errorf("wire stream publisher: %w", err)
		}
		publisher = p
	}

	relay, err := service.NewOutboxRelayService(service.OutboxRelayServiceOptions{
		Repo:         repo,
		Publisher:    publisher,
		BatchSize:    opts.Config.RelayBatchSize,
		PollInterval: opts.Config.RelayPollInterval,
		Logger:       opts.Logger,
		Metrics:      opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire outbox relay service: %w", err)
	}

	return &Runner{relay: relay, logger: opts.Logger}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.DB == nil && opts.Repo == nil {
		return errors.New("database connection is required")
	}
	if opts.Redis == nil && opts.Publisher == nil {
		return errors.New("redis client is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

// Run starts the relay loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting outbox relay runner")
	return r.relay.Run(ctx)
}
