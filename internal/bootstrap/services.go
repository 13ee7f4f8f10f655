package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/target/renderjobs/config"
	"github.com/target/renderjobs/internal/data"
	"github.com/target/renderjobs/internal/observability/statsd"
	"github.com/target/renderjobs/internal/service"
	"github.com/target/renderjobs/internal/service/storage"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs          *service.JobService
	Results       *service.ResultService
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	// MetricsSink is nil when metrics are disabled.
	MetricsSink   statsd.Sink
	MetricsConfig config.ObservabilityMetricsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	JobRepo     *data.JobRepo
	ContentRepo *data.ContentRepo
	ProjectRepo *data.ProjectRepo
}

// buildObservability configures the metrics sink.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	container := ObservabilityContainer{MetricsConfig: cfg.Metrics}
	if !cfg.Metrics.IsEnabled() {
		return container
	}

	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.Metrics.StatsdAddress,
		Prefix:  cfg.Metrics.Prefix,
		Logger:  obsLogger,
	})
	if err != nil {
		obsLogger.Error("failed to initialise statsd client", "error", err)
		return container
	}
	container.MetricsSink = client
	return container
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, logger *slog.Logger) *serviceRepositories {
	repoCfg := data.RepoConfig{Logger: logger}
	return &serviceRepositories{
		JobRepo:     data.NewJobRepo(db, repoCfg),
		ContentRepo: data.NewContentRepo(db, repoCfg),
		ProjectRepo: data.NewProjectRepo(db, repoCfg),
	}
}

// buildDomainServices wires business services using repositories and observability adapters.
func buildDomainServices(
	repos *serviceRepositories,
	cfg *config.AppConfig,
	obs ObservabilityContainer,
	logger *slog.Logger,
) (ServiceContainer, error) {
	jobs, err := service.NewJobService(service.JobServiceOptions{
		Repo:       repos.JobRepo,
		RoutingKey: cfg.Jobs.RequestedRoutingKey,
		Logger:     logger,
		Metrics:    obs.MetricsSink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("wire job service: %w", err)
	}

	normalizer, err := storage.NewURLNormalizer(storage.Options{
		InternalScheme: cfg.Storage.InternalScheme,
		PublicBaseURL:  cfg.Storage.PublicBaseURL,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("wire storage normalizer: %w", err)
	}

	resolver, err := service.NewJMESPathTargetResolver(cfg.Jobs.TargetContentExpr, cfg.Jobs.TargetProjectExpr)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("wire target resolver: %w", err)
	}

	results, err := service.NewResultService(service.ResultServiceOptions{
		Jobs:     repos.JobRepo,
		Contents: repos.ContentRepo,
		Projects: repos.ProjectRepo,
		Storage:  normalizer,
		Resolver: resolver,
		Logger:   logger,
		Metrics:  obs.MetricsSink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("wire result service: %w", err)
	}

	return ServiceContainer{Jobs: jobs, Results: results, Observability: obs}, nil
}

// NewServices builds the service container shared by the HTTP API and the results consumer.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service dependencies and config are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	observability := buildObservability(logger, deps.Config.Observability)
	repos := buildRepositories(deps.DB, logger)
	return buildDomainServices(repos, deps.Config, observability, logger)
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:      deps.cfg.Config,
		Services:    deps.cfg.Services,
		DB:          deps.cfg.DB,
		RedisClient: deps.cfg.RedisClient,
		Logger:      deps.logger,
		ErrCh:       deps.errCh,
	})
}

// startBackgroundServices runs the enabled background services in one errgroup. The
// first failure cancels the others and is reported on errCh. The returned channel
// closes once every service has returned.
func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) <-chan struct{} {
	done := make(chan struct{})
	group, gctx := errgroup.WithContext(deps.ctx)

	for _, svc := range services {
		if !deps.enabledServices[svc.mode] {
			continue
		}
		group.Go(func() error {
			if err := svc.start(gctx); err != nil {
				return fmt.Errorf("%s failed: %w", svc.name, err)
			}
			return nil
		})
		deps.logger.InfoContext(deps.ctx, "background service started", "service", svc.name, "mode", svc.mode)
	}

	go func() {
		defer close(done)
		if err := group.Wait(); err != nil {
			select {
			case deps.errCh <- err:
			default:
				deps.logger.WarnContext(deps.ctx, "dropping background service error", "error", err)
			}
		}
	}()

	return done
}

func newResultsConsumerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeResultsConsumer,
		name: "results consumer",
		start: func(ctx context.Context) error {
			return RunResultsConsumer(ctx, ResultsConsumerConfig{
				RedisClient: deps.cfg.RedisClient,
				Applier:     deps.cfg.Services.Results,
				Jobs:        deps.cfg.Config.Jobs,
				Logger:      deps.logger,
				Metrics:     deps.cfg.Services.Observability.MetricsSink,
			})
		},
	}
}

func newOutboxRelayBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeOutboxRelay,
		name: "outbox relay",
		start: func(ctx context.Context) error {
			return RunOutboxRelay(ctx, OutboxRelayConfig{
				DB:          deps.cfg.DB,
				RedisClient: deps.cfg.RedisClient,
				Config:      deps.cfg.Config.Outbox,
				Logger:      deps.logger,
				Metrics:     deps.cfg.Services.Observability.MetricsSink,
			})
		},
	}
}

func newOutboxSweeperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeOutboxSweeper,
		name: "outbox sweeper",
		start: func(ctx context.Context) error {
			return RunOutboxSweeper(ctx, OutboxSweeperConfig{
				DB:      deps.cfg.DB,
				Config:  deps.cfg.Config.Outbox,
				Logger:  deps.logger,
				Metrics: deps.cfg.Services.Observability.MetricsSink,
			})
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newResultsConsumerBackgroundService(deps),
		newOutboxRelayBackgroundService(deps),
		newOutboxSweeperBackgroundService(deps),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	deps := &serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	}
	httpServer := startHTTPServerIfEnabled(deps)
	background := startBackgroundServices(deps, buildBackgroundServices(deps))

	return waitForShutdown(shutdownConfig{
		ctx:        serviceCtx,
		cancel:     cancel,
		errCh:      errCh,
		httpServer: httpServer,
		logger:     logger,
		background: background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	size := errorChannelCapacity(enabled) + 1
	if size < 1 {
		return 1
	}
	return size
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx        context.Context
	cancel     context.CancelFunc
	errCh      <-chan error
	httpServer *http.Server
	logger     *slog.Logger
	background <-chan struct{}
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel() // Cancel service context before waiting
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel() // Cancel service context before waiting
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	if cfg.httpServer != nil {
		// The service context is already cancelled; bound the drain on its own.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(cfg.ctx), shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		}); err != nil {
			return err
		}
	}

	waitForBackground(cfg.background, cfg.logger)
	return nil
}

// waitForBackground waits for background services to finish with timeout.
func waitForBackground(done <-chan struct{}, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info("background services stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for background services to stop")
	}
}
