package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/renderjobs/config"
	httpx "github.com/target/renderjobs/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
	// ErrCh receives a listener failure. Optional.
	ErrCh chan<- error
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	handler := buildHTTPHandler(logger, httpx.RouterServices{
		Jobs:    cfg.Services.Jobs,
		Results: cfg.Services.Results,
		Callback: httpx.CallbackAuthConfig{
			Secret: appCfg.Jobs.CallbackSecret,
			Header: appCfg.Jobs.CallbackHeader,
		},
		CallbackTimeout: appCfg.Jobs.CallbackTimeout,
		MaxBodyBytes:    appCfg.HTTP.MaxBodyBytes,
		Readiness:       readinessChecks(cfg.DB, cfg.RedisClient),
		Logger:          logger,
	})

	if appCfg.Jobs.CallbackSecret == "" {
		logger.Warn("JOBS_CALLBACK_SECRET is empty; all result callbacks will be rejected")
	}

	return startServer(logger, handler, appCfg.HTTP, cfg.ErrCh)
}

func buildHTTPHandler(logger *slog.Logger, services httpx.RouterServices) http.Handler {
	// Order: Recover -> Logging -> Router
	h := httpx.NewRouter(services)
	h = httpx.Logging(logger)(h)
	h = httpx.Recover(logger)(h)
	return h
}

// readinessChecks pings the database and, when configured, Redis.
func readinessChecks(db *sql.DB, redisClient redis.UniversalClient) []httpx.ReadinessCheck {
	var checks []httpx.ReadinessCheck
	if db != nil {
		checks = append(checks, httpx.ReadinessCheck{Name: "postgres", Check: db.PingContext})
	}
	if redisClient != nil {
		checks = append(checks, httpx.ReadinessCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}
	return checks
}

const idleTimeout = 120 * time.Second

func startServer(logger *slog.Logger, handler http.Handler, cfg config.HTTPConfig, errCh chan<- error) *http.Server {
	cfg.Sanitize()

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  idleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			if errCh != nil {
				select {
				case errCh <- fmt.Errorf("http server: %w", err):
				default:
				}
			}
		}
	}()

	return server
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	if err := cfg.Server.Shutdown(cfg.Context); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
