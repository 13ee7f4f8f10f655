package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/target/renderjobs/internal/core"
	"github.com/target/renderjobs/internal/data/pgxutil"
	"github.com/target/renderjobs/internal/domain/model"
)

// OutboxRepo provides relay and retention operations over outbox_events.
// Events are never updated; delivery state lives in outbox_deliveries.
type OutboxRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewOutboxRepo creates a new OutboxRepo.
func NewOutboxRepo(db *sql.DB, cfg RepoConfig) *OutboxRepo {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxRepo{
		DB:           db,
		timeProvider: timeProviderOrDefault(cfg.TimeProvider),
		logger:       logger.With("component", "outbox_repo"),
	}
}

const outboxColumns = `e.id, e.aggregate_type, e.aggregate_id, e.event_type, e.routing_key, e.payload, e.created_at`

const claimUndeliveredSQL = `
  SELECT ` + outboxColumns + `
  FROM outbox_events e
  WHERE NOT EXISTS (SELECT 1 FROM outbox_deliveries d WHERE d.event_id = e.id)
  ORDER BY e.created_at, e.id
  LIMIT $1
  FOR UPDATE OF e SKIP LOCKED`

func scanOutboxEvent(scanner rowScanner) (*model.OutboxEvent, error) {
	ev := &model.OutboxEvent{}
	var payload []byte
	if err := scanner.Scan(
		&ev.ID,
		&ev.AggregateType,
		&ev.AggregateID,
		&ev.EventType,
		&ev.RoutingKey,
		&payload,
		&ev.CreatedAt,
	); err != nil {
		return nil, err
	}
	ev.Payload = cloneJSON(payload)
	ev.CreatedAt = ev.CreatedAt.UTC()
	return ev, nil
}

func claimUndelivered(ctx context.Context, tx *sql.Tx, limit int) ([]*model.OutboxEvent, error) {
	rows, err := tx.QueryContext(ctx, claimUndeliveredSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*model.OutboxEvent
	for rows.Next() {
		ev, scanErr := scanOutboxEvent(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan outbox event: %w", scanErr)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox events: %w", err)
	}
	return events, nil
}

// RelayBatch publishes the oldest undelivered events. Rows are locked with SKIP LOCKED so
// several relay instances can run side by side. Deliveries recorded before a publish
// failure still commit.
func (r *OutboxRepo) RelayBatch(ctx context.Context, limit int, publish core.PublishFunc) (int, error) {
	if publish == nil {
		return 0, errors.New("publish function is required")
	}
	if limit < 1 {
		limit = 1
	}

	delivered := 0
	var publishErr error
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			events, err := claimUndelivered(ctx, tx, limit)
			if err != nil {
				return err
			}
			for _, ev := range events {
				streamID, pubErr := publish(ctx, ev)
				if pubErr != nil {
					publishErr = fmt.Errorf("publish outbox event %s: %w", ev.ID, pubErr)
					return nil
				}
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO outbox_deliveries (event_id, stream_id, published_at)
					VALUES ($1, $2, $3)
				`, ev.ID, streamID, r.timeProvider.Now().UTC()); err != nil {
					return fmt.Errorf("record outbox delivery: %w", err)
				}
				delivered++
			}
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return delivered, publishErr
}

// WaitForEvent waits for a notification on OutboxChannel.
func (r *OutboxRepo) WaitForEvent(ctx context.Context) error {
	return pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		quoted := pgx.Identifier{OutboxChannel}.Sanitize()
		if _, err := conn.Exec(ctx, "LISTEN "+quoted); err != nil {
			return fmt.Errorf("listen %s: %w", OutboxChannel, err)
		}
		defer func() {
			// the connection returns to the pool; drop the subscription
			_, _ = conn.Exec(context.Background(), "UNLISTEN "+quoted)
		}()
		_, err := conn.WaitForNotification(ctx)
		return err
	})
}

// GetDelivery returns the delivery row for an event, or nil when it was not relayed yet.
func (r *OutboxRepo) GetDelivery(ctx context.Context, eventID string) (*model.OutboxDelivery, error) {
	d := &model.OutboxDelivery{}
	err := r.DB.QueryRowContext(ctx, `
		SELECT event_id, stream_id, published_at FROM outbox_deliveries WHERE event_id = $1
	`, eventID).Scan(&d.EventID, &d.StreamID, &d.PublishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get outbox delivery: %w", err)
	}
	return d, nil
}

// ListByAggregate returns the events recorded for one aggregate, oldest first.
func (r *OutboxRepo) ListByAggregate(ctx context.Context, aggregateType, aggregateID string) ([]*model.OutboxEvent, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+outboxColumns+`
		FROM outbox_events e
		WHERE e.aggregate_type = $1 AND e.aggregate_id = $2
		ORDER BY e.created_at, e.id
	`, aggregateType, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("list outbox events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*model.OutboxEvent
	for rows.Next() {
		ev, scanErr := scanOutboxEvent(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan outbox event: %w", scanErr)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
