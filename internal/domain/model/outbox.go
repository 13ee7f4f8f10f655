package model

import (
	"encoding/json"
	"time"
)

const (
	// AggregateTypeJob tags outbox events that describe a job.
	AggregateTypeJob = "job"
	// EventTypeJobRequested is emitted once per job at creation.
	EventTypeJobRequested = "JOB_REQUESTED"
)

// OutboxEvent is an immutable domain event co-committed with the state change it describes.
type OutboxEvent struct {
	ID            string          `json:"id"            db:"id"`
	AggregateType string          `json:"aggregateType" db:"aggregate_type"`
	AggregateID   string          `json:"aggregateId"   db:"aggregate_id"`
	EventType     string          `json:"eventType"     db:"event_type"`
	RoutingKey    string          `json:"routingKey"    db:"routing_key"`
	Payload       json.RawMessage `json:"payload"       db:"payload"`
	CreatedAt     time.Time       `json:"createdAt"     db:"created_at"`
}

// JobRequestedPayload is the snapshot carried by a JOB_REQUESTED event.
type JobRequestedPayload struct {
	JobID        string          `json:"jobId"`
	ProjectID    string          `json:"projectId"`
	JobType      JobType         `json:"jobType"`
	Payload      json.RawMessage `json:"payload"`
	RequestedAt  time.Time       `json:"requestedAt"`
	TraceContext *string         `json:"traceContext,omitempty"`
}

// OutboxDelivery records that the relay published an event.
type OutboxDelivery struct {
	EventID     string    `db:"event_id"`
	StreamID    string    `db:"stream_id"`
	PublishedAt time.Time `db:"published_at"`
}
