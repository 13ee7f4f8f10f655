// Package sweeper provides adapters for running the outbox retention sweeper.
package sweeper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/renderjobs/config"
	"github.com/target/renderjobs/internal/core"
	"github.com/target/renderjobs/internal/data"
	"github.com/target/renderjobs/internal/observability/statsd"
	"github.com/target/renderjobs/internal/service"
)

// Runner constructs the sweeper service and runs its loop.
type Runner struct {
	sweeper *service.OutboxSweeperService
	logger  *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB     *sql.DB
	Config config.OutboxConfig
	Logger *slog.Logger

	// Optional dependency injection for testing/decoupling
	Repo    core.OutboxRepository
	Metrics statsd.Sink
}

// NewRunner creates a new sweeper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	repo := opts.Repo
	if repo == nil {
		repo = data.NewOutboxRepo(opts.DB, data.RepoConfig{Logger: opts.Logger})
	}

	sweeper, err := service.NewOutboxSweeperService(service.OutboxSweeperServiceOptions{
		Repo:    repo,
		Config:  opts.Config,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire outbox sweeper service: %w", err)
	}

	return &Runner{sweeper: sweeper, logger: opts.Logger}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.DB == nil && opts.Repo == nil {
		return errors.New("database connection is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

// Run starts the sweep loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting outbox sweeper runner")
	return r.sweeper.Run(ctx)
}
