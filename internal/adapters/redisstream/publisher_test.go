package redisstream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/renderjobs/internal/domain/model"
	"github.com/target/renderjobs/internal/testutil"
)

func TestPublisher_Publish(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	pub, err := NewPublisher(client, PublisherOptions{MaxLen: 1000})
	require.NoError(t, err)
	ctx := context.Background()

	event := &model.OutboxEvent{
		ID:            "9b2f3c1e-0000-4000-8000-000000000001",
		AggregateType: model.AggregateTypeJob,
		AggregateID:   "9b2f3c1e-0000-4000-8000-000000000002",
		EventType:     model.EventTypeJobRequested,
		RoutingKey:    "test.render.jobs.requested",
		Payload:       []byte(`{"jobId":"9b2f3c1e-0000-4000-8000-000000000002"}`),
	}

	id, err := pub.Publish(ctx, event)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	entries, err := client.XRange(ctx, "test.render.jobs.requested", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, event.ID, entries[0].Values[FieldEventID])
	assert.Equal(t, model.EventTypeJobRequested, entries[0].Values[FieldEventType])
	assert.Equal(t, event.AggregateID, entries[0].Values[FieldAggregateID])
	assert.JSONEq(t, string(event.Payload), entries[0].Values[FieldPayload].(string))
}

func TestPublisher_Validation(t *testing.T) {
	_, err := NewPublisher(nil, PublisherOptions{})
	require.Error(t, err)

	client := testutil.SetupTestRedis(t)
	defer client.Close()
	pub, err := NewPublisher(client, PublisherOptions{})
	require.NoError(t, err)

	_, err = pub.Publish(context.Background(), &model.OutboxEvent{ID: "e-1"})
	assert.Error(t, err)
	_, err = pub.Publish(context.Background(), nil)
	assert.Error(t, err)
}
