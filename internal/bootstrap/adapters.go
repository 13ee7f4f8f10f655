package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/renderjobs/config"
	"github.com/target/renderjobs/internal/adapters/relay"
	"github.com/target/renderjobs/internal/adapters/resultsconsumer"
	"github.com/target/renderjobs/internal/adapters/sweeper"
	"github.com/target/renderjobs/internal/core"
	"github.com/target/renderjobs/internal/observability/statsd"
)

// ResultsConsumerConfig contains configuration for the results stream consumer.
type ResultsConsumerConfig struct {
	RedisClient redis.UniversalClient
	Applier     core.ResultApplier
	Jobs        config.JobsConfig
	Logger      *slog.Logger
	Metrics     statsd.Sink
}

// RunResultsConsumer starts the results stream consumer.
func RunResultsConsumer(ctx context.Context, cfg ResultsConsumerConfig) error {
	if cfg.Applier == nil {
		return errors.New("result service is required for the results consumer")
	}
	consumer, err := resultsconsumer.New(resultsconsumer.Options{
		Client:      cfg.RedisClient,
		Applier:     cfg.Applier,
		Stream:      cfg.Jobs.ResultsStream,
		Group:       cfg.Jobs.ResultsGroup,
		Consumer:    cfg.Jobs.ResultsConsumerName,
		BatchSize:   cfg.Jobs.ResultsBatchSize,
		Block:       cfg.Jobs.ResultsBlock,
		Concurrency: cfg.Jobs.ResultsConcurrency,
		Logger:      cfg.Logger,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create results consumer: %w", err)
	}
	return consumer.Run(ctx)
}

// OutboxRelayConfig contains configuration for the outbox relay.
type OutboxRelayConfig struct {
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Config      config.OutboxConfig
	Logger      *slog.Logger
	Metrics     statsd.Sink
}

// RunOutboxRelay starts the outbox relay.
func RunOutboxRelay(ctx context.Context, cfg OutboxRelayConfig) error {
	runner, err := relay.NewRunner(relay.RunnerOptions{
		DB:      cfg.DB,
		Redis:   cfg.RedisClient,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create outbox relay runner: %w", err)
	}
	return runner.Run(ctx)
}

// OutboxSweeperConfig contains configuration for the outbox retention sweeper.
type OutboxSweeperConfig struct {
	DB      *sql.DB
	Config  config.OutboxConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// RunOutboxSweeper starts the outbox retention sweeper.
func RunOutboxSweeper(ctx context.Context, cfg OutboxSweeperConfig) error {
	runner, err := sweeper.NewRunner(sweeper.RunnerOptions{
		DB:      cfg.DB,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create outbox sweeper runner: %w", err)
	}
	return runner.Run(ctx)
}
