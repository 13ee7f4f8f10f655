package config

import "time"

// OutboxConfig contains outbox relay and retention sweeper configuration.
type OutboxConfig struct {
	// Retention is how long outbox rows are kept before the sweeper deletes them.
	Retention time.Duration `env:"OUTBOX_RETENTION" envDefault:"168h"` // 7 days

	// SweepInterval is the sweeper tick interval.
	SweepInterval time.Duration `env:"OUTBOX_SWEEP_INTERVAL" envDefault:"10m"`

	// SweepBatchSize is the maximum number of rows deleted per statement.
	// Batching prevents long locks and I/O spikes on large tables.
	SweepBatchSize int `env:"OUTBOX_SWEEP_BATCH_SIZE" envDefault:"1000"`

	// RelayBatchSize is the number of undelivered events claimed per relay pass.
	RelayBatchSize int `env:"OUTBOX_RELAY_BATCH_SIZE" envDefault:"100"`

	// RelayPollInterval is the fallback poll period when no notification arrives.
	RelayPollInterval time.Duration `env:"OUTBOX_RELAY_POLL_INTERVAL" envDefault:"2s"`
}

// Sanitize applies guardrails to outbox configuration values.
func (o *OutboxConfig) Sanitize() {
	// Enforce minimums to prevent excessive database load
	if o.SweepInterval < 1*time.Minute {
		o.SweepInterval = 1 * time.Minute
	}
	if o.Retention < 1*time.Hour {
		o.Retention = 1 * time.Hour
	}

	if o.SweepBatchSize < 1 {
		o.SweepBatchSize = 1
	}
	if o.SweepBatchSize > 10000 {
		o.SweepBatchSize = 10000
	}

	if o.RelayBatchSize < 1 {
		o.RelayBatchSize = 1
	}
	if o.RelayBatchSize > 1000 {
		o.RelayBatchSize = 1000
	}
	if o.RelayPollInterval < 100*time.Millisecond {
		o.RelayPollInterval = 100 * time.Millisecond
	}
}
