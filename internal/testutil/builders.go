// Package testutil provides testing utilities and helpers for the render job service.
package testutil

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/target/renderjobs/internal/domain/model"
)

// JobRequestBuilder provides a fluent interface for building CreateJobRequest objects for testing.
type JobRequestBuilder struct {
	req *model.CreateJobRequest
}

// NewJobRequest creates a new JobRequestBuilder with sensible defaults.
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: &model.CreateJobRequest{
			ProjectID: "project-1",
			Type:      model.JobTypeBannerGeneration,
			Payload:   json.RawMessage(`{"type":"BANNER"}`),
		},
	}
}

// WithProject sets the owning project.
func (b *JobRequestBuilder) WithProject(projectID string) *JobRequestBuilder {
	b.req.ProjectID = projectID
	return b
}

// WithType sets the job type.
func (b *JobRequestBuilder) WithType(jobType model.JobType) *JobRequestBuilder {
	b.req.Type = jobType
	return b
}

// WithPayloadString sets the job payload from a string.
func (b *JobRequestBuilder) WithPayloadString(payload string) *JobRequestBuilder {
	b.req.Payload = json.RawMessage(payload)
	return b
}

// WithTraceContext sets the W3C traceparent carried with the job.
func (b *JobRequestBuilder) WithTraceContext(tc string) *JobRequestBuilder {
	b.req.TraceContext = &tc
	return b
}

// Build returns the constructed CreateJobRequest.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	return b.req
}

// NewJobRecord builds a REQUESTED job and its JOB_REQUESTED outbox event with fresh ids,
// ready for JobRepo.CreateWithEvent.
func NewJobRecord(req *model.CreateJobRequest, routingKey string, at time.Time) (*model.Job, *model.OutboxEvent) {
	job := &model.Job{
		ID:           uuid.NewString(),
		ProjectID:    req.ProjectID,
		Type:         req.Type,
		Status:       model.JobStatusRequested,
		Payload:      req.Payload,
		TraceContext: req.TraceContext,
		RequestedAt:  at.UTC(),
		UpdatedAt:    at.UTC(),
	}
	payload, _ := json.Marshal(model.JobRequestedPayload{
		JobID:        job.ID,
		ProjectID:    job.ProjectID,
		JobType:      job.Type,
		Payload:      job.Payload,
		RequestedAt:  job.RequestedAt,
		TraceContext: job.TraceContext,
	})
	event := &model.OutboxEvent{
		ID:            uuid.NewString(),
		AggregateType: model.AggregateTypeJob,
		AggregateID:   job.ID,
		EventType:     model.EventTypeJobRequested,
		RoutingKey:    routingKey,
		Payload:       payload,
		CreatedAt:     at.UTC(),
	}
	return job, event
}
