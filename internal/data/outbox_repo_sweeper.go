package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/target/renderjobs/internal/data/pgxutil"
)

// Advisory lock namespace for retention operations.
// Using two-arg pg_try_advisory_xact_lock(major, minor) for proper namespacing.
const (
	advisoryLockRetentionMajor = 2000
	advisoryLockOutboxSweep    = 1 // minor key for DeleteOlderThan
)

// DeleteOlderThan deletes outbox events created before now-maxAge.
// Processes up to batchSize rows per call to prevent long locks and I/O spikes.
// When another instance holds the sweep lock it deletes nothing and returns 0.
// Delivery rows go with their events through ON DELETE CASCADE.
func (r *OutboxRepo) DeleteOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)",
				advisoryLockRetentionMajor, advisoryLockOutboxSweep).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				return nil
			}

			cutoff := r.timeProvider.Now().Add(-maxAge).UTC()
			res, err := tx.ExecContext(ctx, `
				DELETE FROM outbox_events
				WHERE id IN (
					SELECT id FROM outbox_events
					WHERE created_at < $1
					ORDER BY created_at
					LIMIT $2
				)
			`, cutoff, batchSize)
			if err != nil {
				return fmt.Errorf("delete old outbox events: %w", err)
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}
