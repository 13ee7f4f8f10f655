package core

import (
	"context"
	"database/sql"
	"time"

	"github.com/target/renderjobs/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// TxFunc runs inside a transaction owned by a repository.
type TxFunc func(ctx context.Context, tx *sql.Tx) error

// JobRepository defines the interface for job data operations.
type JobRepository interface {
	// CreateWithEvent inserts the job and its outbox event in one transaction.
	CreateWithEvent(ctx context.Context, job *model.Job, event *model.OutboxEvent) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	// MarkRunning moves a REQUESTED job to RUNNING. It returns false when the job was not REQUESTED.
	MarkRunning(ctx context.Context, id string) (bool, error)
	// Finalize applies a terminal transition guarded on the job still being REQUESTED or RUNNING.
	// When the guard matches, inTx runs in the same transaction; an error from inTx rolls
	// back the transition. It returns false, with nothing written, when the guard matched no row.
	Finalize(ctx context.Context, params model.FinalizeJobParams, inTx TxFunc) (bool, error)
}

// TargetRepository updates a dependent entity inside the reconciler's transaction.
type TargetRepository interface {
	UpdateResultInTx(ctx context.Context, tx *sql.Tx, id, resultURL string) error
	MarkFailedInTx(ctx context.Context, tx *sql.Tx, id string) error
}

// PublishFunc publishes one outbox event and returns the broker-assigned message id.
type PublishFunc func(ctx context.Context, event *model.OutboxEvent) (string, error)

// OutboxRepository defines the interface for outbox relay and retention operations.
type OutboxRepository interface {
	// RelayBatch claims up to limit undelivered events, publishes them in order and
	// records each delivery. It stops at the first publish failure and returns the
	// number delivered together with that failure.
	RelayBatch(ctx context.Context, limit int, publish PublishFunc) (int, error)
	// WaitForEvent blocks until a new outbox event is announced or ctx ends.
	WaitForEvent(ctx context.Context) error
	// DeleteOlderThan removes up to batchSize events created more than maxAge ago.
	DeleteOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
}

// EventPublisher publishes outbox events to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, event *model.OutboxEvent) (string, error)
}

// URLNormalizer converts internal storage references to publicly resolvable URLs.
type URLNormalizer interface {
	NormalizeToPublicURL(ctx context.Context, uri string) (string, error)
}

// TargetResolver finds the dependent entity referenced by a job payload.
type TargetResolver interface {
	Resolve(payload []byte) (model.TargetRef, error)
}

// ResultApplier is the single entry point both result ingress paths converge on.
type ResultApplier interface {
	ApplyResult(ctx context.Context, jobID string, outcome model.ResultOutcome) error
	MarkRunning(ctx context.Context, jobID string) error
}
