package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/target/renderjobs/internal/core"
	"github.com/target/renderjobs/internal/data/pgxutil"
	"github.com/target/renderjobs/internal/domain/model"
)

// OutboxChannel is the LISTEN/NOTIFY channel announcing new outbox events.
const OutboxChannel = "outbox_event_added"

const insertJobSQL = `
  INSERT INTO jobs (id, project_id, type, status, payload, trace_context, requested_at, updated_at)
  VALUES ($1, $2, $3, 'REQUESTED', $4, $5, $6, $6)
  RETURNING ` + jobColumns

const insertOutboxEventSQL = `
  INSERT INTO outbox_events (id, aggregate_type, aggregate_id, event_type, routing_key, payload, created_at)
  VALUES ($1, $2, $3, $4, $5, $6, $7)`

// CreateWithEvent inserts the job row and its outbox event inside one transaction and
// notifies the relay. Either both rows exist afterwards or neither does.
func (r *JobRepo) CreateWithEvent(
	ctx context.Context,
	job *model.Job,
	event *model.OutboxEvent,
) (*model.Job, error) {
	if job == nil || event == nil {
		return nil, errors.New("job and outbox event are required")
	}
	if strings.TrimSpace(job.ID) == "" || strings.TrimSpace(event.ID) == "" {
		return nil, errors.New("job and outbox event ids are required")
	}

	now := r.timeProvider.Now().UTC()
	if !job.RequestedAt.IsZero() {
		now = job.RequestedAt.UTC()
	}
	createdAt := event.CreatedAt.UTC()
	if event.CreatedAt.IsZero() {
		createdAt = now
	}

	var created *model.Job
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			row := tx.QueryRowContext(ctx, insertJobSQL,
				job.ID, job.ProjectID, job.Type, []byte(job.Payload), job.TraceContext, now)
			var scanErr error
			if created, scanErr = scanJobFromRow(row); scanErr != nil {
				return fmt.Errorf("insert job: %w", scanErr)
			}

			if _, err := tx.ExecContext(ctx, insertOutboxEventSQL,
				event.ID, event.AggregateType, event.AggregateID, event.EventType,
				event.RoutingKey, []byte(event.Payload), createdAt,
			); err != nil {
				return fmt.Errorf("insert outbox event: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1::text, $2::text)`, OutboxChannel, event.ID); err != nil {
				return fmt.Errorf("send outbox notification: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJobFromRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// MarkRunning moves a REQUESTED job to RUNNING.
func (r *JobRepo) MarkRunning(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'RUNNING', updated_at = $2
		WHERE id = $1 AND status = 'REQUESTED'
	`, id, r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark job running: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

const finalizeJobSQL = `
  UPDATE jobs
  SET status = $2,
      output_url = $3,
      error_code = $4,
      error_message = $5,
      completed_at = $6,
      updated_at = $6
  WHERE id = $1 AND status IN ('REQUESTED', 'RUNNING')
  RETURNING id`

// Finalize applies a terminal transition. The guarded UPDATE runs first so its row lock
// serializes concurrent deliveries; inTx only runs for the delivery that wins.
func (r *JobRepo) Finalize(ctx context.Context, params model.FinalizeJobParams, inTx core.TxFunc) (bool, error) {
	if err := params.Validate(); err != nil {
		return false, err
	}

	now := r.timeProvider.Now().UTC()
	applied := false
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var id string
			scanErr := tx.QueryRowContext(ctx, finalizeJobSQL,
				params.JobID,
				params.Status,
				nullIfEmpty(params.OutputURL),
				nullIfEmpty(params.ErrorCode),
				nullIfEmpty(params.ErrorMessage),
				now,
			).Scan(&id)
			if errors.Is(scanErr, sql.ErrNoRows) {
				return nil
			}
			if scanErr != nil {
				return fmt.Errorf("finalize job: %w", scanErr)
			}

			if inTx != nil {
				if err := inTx(ctx, tx); err != nil {
					return err
				}
			}
			applied = true
			return nil
		},
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
