package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - database.go: Postgres and Redis connection settings
//   - http.go: HTTP server configuration
//   - jobs.go: job submission, result ingestion and callback settings
//   - outbox.go: outbox relay and retention sweeper settings
//   - storage.go: output reference normalization
//   - services.go: service mode selection
type AppConfig struct {
	// IsDev controls development mode behavior (text logs, relaxed checks).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	HTTP HTTPConfig

	// Services is a comma-delimited list of roles run by this process.
	Services string `env:"SERVICES" envDefault:"http"`

	Jobs    JobsConfig
	Outbox  OutboxConfig
	Storage StorageConfig

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Jobs.Sanitize()
	c.Outbox.Sanitize()
	c.Storage.Sanitize()
	c.Observability.Sanitize()

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in deployment tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

func (c *AppConfig) serviceEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[mode]
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool { return c.serviceEnabled(ServiceModeHTTP) }

// IsResultsConsumerEnabled returns true if the results stream consumer is enabled.
func (c *AppConfig) IsResultsConsumerEnabled() bool {
	return c.serviceEnabled(ServiceModeResultsConsumer)
}

// IsOutboxRelayEnabled returns true if the outbox relay is enabled.
func (c *AppConfig) IsOutboxRelayEnabled() bool { return c.serviceEnabled(ServiceModeOutboxRelay) }

// IsOutboxSweeperEnabled returns true if the outbox retention sweeper is enabled.
func (c *AppConfig) IsOutboxSweeperEnabled() bool {
	return c.serviceEnabled(ServiceModeOutboxSweeper)
}

// NeedsRedis reports whether any enabled role talks to the broker.
func (c *AppConfig) NeedsRedis() bool {
	return c.IsResultsConsumerEnabled() || c.IsOutboxRelayEnabled()
}
