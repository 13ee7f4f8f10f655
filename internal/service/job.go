package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/target/renderjobs/internal/core"
	"github.com/target/renderjobs/internal/data"
	"github.com/target/renderjobs/internal/domain/model"
	apperrors "github.com/target/renderjobs/internal/errors"
	"github.com/target/renderjobs/internal/observability/metrics"
	"github.com/target/renderjobs/internal/observability/statsd"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo       core.JobRepository // Required: job repository
	RoutingKey string             // Required: stream JOB_REQUESTED events are routed to
	Logger     *slog.Logger       // Optional: structured logger
	Metrics    statsd.Sink        // Optional: metrics sink (StatsD-compatible)
	Now        func() time.Time   // Optional: clock override for tests
}

// JobService accepts job submissions and serves job reads.
//
// A submission writes the job row and its JOB_REQUESTED outbox event in one
// transaction; the outbox relay publishes the event afterwards.
type JobService struct {
	repo       core.JobRepository
	routingKey string
	logger     *slog.Logger
	metrics    statsd.Sink
	now        func() time.Time
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	routingKey := strings.TrimSpace(opts.RoutingKey)
	if routingKey == "" {
		return nil, errors.New("RoutingKey is required")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
		logger.Debug("JobService initialized", "routing_key", routingKey)
	}

	return &JobService{
		repo:       opts.Repo,
		routingKey: routingKey,
		logger:     logger,
		metrics:    opts.Metrics,
		now:        now,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// RequestJob records a new job in REQUESTED together with its outbox event.
// Submissions are not deduplicated; every call creates a new job.
func (s *JobService) RequestJob(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, apperrors.Validation("job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, err.Error())
	}

	job, event, err := s.buildJobRecord(req)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.CreateWithEvent(ctx, job, event)
	if err != nil {
		metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
			JobType:    string(req.Type),
			Transition: metrics.TransitionRequested,
			Result:     metrics.ResultError,
			Err:        err,
		})
		return nil, fmt.Errorf("request job: %w", apperrors.MapDBError(err))
	}

	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		JobType:    string(created.Type),
		Transition: metrics.TransitionRequested,
		Result:     metrics.ResultSuccess,
	})
	if s.logger != nil {
		s.logger.InfoContext(ctx, "job requested",
			"job_id", created.ID,
			"project_id", created.ProjectID,
			"job_type", created.Type,
			"event_id", event.ID,
		)
	}
	return created, nil
}

func (s *JobService) buildJobRecord(req *model.CreateJobRequest) (*model.Job, *model.OutboxEvent, error) {
	requestedAt := s.now().UTC()
	job := &model.Job{
		ID:           uuid.NewString(),
		ProjectID:    strings.TrimSpace(req.ProjectID),
		Type:         req.Type,
		Status:       model.JobStatusRequested,
		Payload:      req.Payload,
		TraceContext: req.TraceContext,
		RequestedAt:  requestedAt,
		UpdatedAt:    requestedAt,
	}

	snapshot, err := json.Marshal(model.JobRequestedPayload{
		JobID:        job.ID,
		ProjectID:    job.ProjectID,
		JobType:      job.Type,
		Payload:      job.Payload,
		RequestedAt:  requestedAt,
		TraceContext: job.TraceContext,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal job requested payload: %w", err)
	}

	event := &model.OutboxEvent{
		ID:            uuid.NewString(),
		AggregateType: model.AggregateTypeJob,
		AggregateID:   job.ID,
		EventType:     model.EventTypeJobRequested,
		RoutingKey:    s.routingKey,
		Payload:       snapshot,
		CreatedAt:     requestedAt,
	}
	return job, event, nil
}

// GetJob returns the job with the given id.
func (s *JobService) GetJob(ctx context.Context, id string) (*model.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NotFoundf("job %s not found", id)
	}
	job, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, data.ErrJobNotFound) {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeNotFound, "job %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", apperrors.MapDBError(err))
	}
	return job, nil
}
