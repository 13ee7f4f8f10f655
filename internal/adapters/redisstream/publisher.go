// Package redisstream publishes outbox events to Redis Streams.
package redisstream

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/target/renderjobs/internal/core"
	"github.com/target/renderjobs/internal/domain/model"
)

// Stream entry field names written for every event.
const (
	FieldEventID     = "event_id"
	FieldEventType   = "event_type"
	FieldAggregateID = "aggregate_id"
	FieldPayload     = "payload"
)

var _ core.EventPublisher = (*Publisher)(nil)

// PublisherOptions configures a Publisher.
type PublisherOptions struct {
	// MaxLen caps each stream with an approximate MAXLEN trim. Zero disables trimming.
	MaxLen int64
}

// Publisher appends outbox events to the stream named by their routing key.
type Publisher struct {
	client redis.UniversalClient
	maxLen int64
}

// NewPublisher creates a new stream publisher.
func NewPublisher(client redis.UniversalClient, opts PublisherOptions) (*Publisher, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &Publisher{client: client, maxLen: opts.MaxLen}, nil
}

// Publish XADDs the event and returns the entry id Redis assigned.
func (p *Publisher) Publish(ctx context.Context, event *model.OutboxEvent) (string, error) {
	if event == nil {
		return "", errors.New("event is required")
	}
	stream := strings.TrimSpace(event.RoutingKey)
	if stream == "" {
		return "", fmt.Errorf("event %s has no routing key", event.ID)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			FieldEventID:     event.ID,
			FieldEventType:   event.EventType,
			FieldAggregateID: event.AggregateID,
			FieldPayload:     string(event.Payload),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}
	return id, nil
}
