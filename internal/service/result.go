package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/target/renderjobs/internal/core"
	"github.com/target/renderjobs/internal/data"
	"github.com/target/renderjobs/internal/domain/model"
	apperrors "github.com/target/renderjobs/internal/errors"
	"github.com/target/renderjobs/internal/observability/metrics"
	"github.com/target/renderjobs/internal/observability/statsd"
)

var _ core.ResultApplier = (*ResultService)(nil)

// ResultServiceOptions groups dependencies for ResultService.
type ResultServiceOptions struct {
	Jobs     core.JobRepository    // Required: job repository
	Contents core.TargetRepository // Required: content updates
	Projects core.TargetRepository // Required: project updates
	Storage  core.URLNormalizer    // Required: output URI normalization
	Resolver core.TargetResolver   // Optional: defaults to the JMESPath resolver with default expressions
	Logger   *slog.Logger          // Optional: structured logger
	Metrics  statsd.Sink           // Optional: metrics sink (StatsD-compatible)
}

// ResultService reconciles worker results into the job and its dependent entity.
//
// Both ingress paths (HTTP callback and results stream) call ApplyResult. Redelivered or
// conflicting results are absorbed by the conditional terminal transition: the first
// outcome to commit wins and every later one is a no-op.
type ResultService struct {
	jobs     core.JobRepository
	targets  map[model.TargetKind]core.TargetRepository
	storage  core.URLNormalizer
	resolver core.TargetResolver
	logger   *slog.Logger
	metrics  statsd.Sink
}

// NewResultService constructs a new ResultService.
func NewResultService(opts ResultServiceOptions) (*ResultService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Contents == nil || opts.Projects == nil {
		return nil, errors.New("content and project repositories are required")
	}
	if opts.Storage == nil {
		return nil, errors.New("URLNormalizer is required")
	}

	resolver := opts.Resolver
	if resolver == nil {
		r, err := NewJMESPathTargetResolver(DefaultContentExpr, DefaultProjectExpr)
		if err != nil {
			return nil, err
		}
		resolver = r
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ResultService{
		jobs: opts.Jobs,
		targets: map[model.TargetKind]core.TargetRepository{
			model.TargetContent: opts.Contents,
			model.TargetProject: opts.Projects,
		},
		storage:  opts.Storage,
		resolver: resolver,
		logger:   logger.With("component", "result_service"),
		metrics:  opts.Metrics,
	}, nil
}

// ApplyResult applies a worker outcome to the job. It returns nil when the job is
// already terminal or another outcome won the race.
func (s *ResultService) ApplyResult(ctx context.Context, jobID string, outcome model.ResultOutcome) error {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return err
	}

	transition := metrics.TransitionFailed
	if outcome.Success {
		transition = metrics.TransitionSucceeded
	}

	if job.Status.Terminal() {
		s.logger.DebugContext(ctx, "ignoring result for finalized job",
			"job_id", job.ID,
			"status", job.Status,
		)
		s.emit(job, transition, metrics.ResultNoop, nil)
		return nil
	}

	outcome = outcome.Normalize()
	if err := outcome.Validate(); err != nil {
		appErr := apperrors.Wrap(err, apperrors.ErrCodeValidation, err.Error())
		appErr.Field = model.InvalidField(err)
		return appErr
	}

	var applied bool
	if outcome.Success {
		applied, err = s.applySuccess(ctx, job, outcome)
	} else {
		applied, err = s.applyFailure(ctx, job, outcome)
	}
	if err != nil {
		s.emit(job, transition, metrics.ResultError, err)
		return err
	}

	if !applied {
		s.logger.DebugContext(ctx, "result lost race to an earlier outcome", "job_id", job.ID)
		s.emit(job, transition, metrics.ResultNoop, nil)
		return nil
	}

	s.emit(job, transition, metrics.ResultSuccess, nil)
	s.logger.InfoContext(ctx, "job finalized",
		"job_id", job.ID,
		"job_type", job.Type,
		"success", outcome.Success,
		"error_code", outcome.ErrorCode,
	)
	return nil
}

func (s *ResultService) applySuccess(ctx context.Context, job *model.Job, outcome model.ResultOutcome) (bool, error) {
	publicURL, err := s.storage.NormalizeToPublicURL(ctx, outcome.OutputURI)
	if err != nil {
		if apperrors.GetCode(err) != "" {
			return false, err
		}
		return false, fmt.Errorf("normalize output uri: %w", err)
	}

	target, err := s.resolver.Resolve(job.Payload)
	if err != nil {
		if apperrors.GetCode(err) != "" {
			return false, err
		}
		return false, apperrors.Wrap(err, apperrors.ErrCodeInternal, "resolve job target")
	}

	params := model.FinalizeJobParams{
		JobID:     job.ID,
		Status:    model.JobStatusSucceeded,
		OutputURL: publicURL,
	}
	applied, err := s.jobs.Finalize(ctx, params, func(ctx context.Context, tx *sql.Tx) error {
		if target.IsZero() {
			return nil
		}
		if err := s.targets[target.Kind].UpdateResultInTx(ctx, tx, target.ID, publicURL); err != nil {
			return mapTargetError(target, err)
		}
		return nil
	})
	if err != nil {
		if apperrors.GetCode(err) != "" {
			return false, err
		}
		return false, fmt.Errorf("finalize job: %w", apperrors.MapDBError(err))
	}
	return applied, nil
}

func (s *ResultService) applyFailure(ctx context.Context, job *model.Job, outcome model.ResultOutcome) (bool, error) {
	target, err := s.resolver.Resolve(job.Payload)
	if err != nil {
		s.logger.WarnContext(ctx, "could not resolve job target; failing job without it",
			"job_id", job.ID,
			"error", err,
		)
		target = model.TargetRef{}
	}

	params := model.FinalizeJobParams{
		JobID:        job.ID,
		Status:       model.JobStatusFailed,
		ErrorCode:    outcome.ErrorCode,
		ErrorMessage: outcome.ErrorMessage,
	}
	applied, err := s.jobs.Finalize(ctx, params, func(ctx context.Context, tx *sql.Tx) error {
		if target.IsZero() {
			return nil
		}
		if err := s.targets[target.Kind].MarkFailedInTx(ctx, tx, target.ID); err != nil {
			s.logger.WarnContext(ctx, "could not mark job target failed",
				"job_id", job.ID,
				"target_kind", target.Kind,
				"target_id", target.ID,
				"error", err,
			)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("finalize job: %w", apperrors.MapDBError(err))
	}
	return applied, nil
}

// MarkRunning records that a worker picked up the job. Anything not in REQUESTED is left alone.
func (s *ResultService) MarkRunning(ctx context.Context, jobID string) error {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return err
	}

	ok, err := s.jobs.MarkRunning(ctx, job.ID)
	if err != nil {
		s.emit(job, metrics.TransitionRunning, metrics.ResultError, err)
		return fmt.Errorf("mark job running: %w", apperrors.MapDBError(err))
	}
	if !ok {
		s.emit(job, metrics.TransitionRunning, metrics.ResultNoop, nil)
		return nil
	}
	s.emit(job, metrics.TransitionRunning, metrics.ResultSuccess, nil)
	s.logger.DebugContext(ctx, "job running", "job_id", job.ID)
	return nil
}

func (s *ResultService) loadJob(ctx context.Context, jobID string) (*model.Job, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, apperrors.NotFoundf("job %s not found", jobID)
	}
	job, err := s.jobs.GetByID(ctx, jobID)
	if errors.Is(err, data.ErrJobNotFound) {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeNotFound, "job %s not found", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", apperrors.MapDBError(err))
	}
	return job, nil
}

// emit records a lifecycle metric. Successful terminal transitions also carry the
// request-to-completion latency.
func (s *ResultService) emit(job *model.Job, transition, result string, err error) {
	in := metrics.JobMetric{
		JobType:    string(job.Type),
		Transition: transition,
		Result:     result,
		Err:        err,
	}
	if result == metrics.ResultSuccess && transition != metrics.TransitionRunning && !job.RequestedAt.IsZero() {
		in.Duration = time.Since(job.RequestedAt)
	}
	metrics.EmitJobLifecycle(s.metrics, in)
}

func mapTargetError(target model.TargetRef, err error) error {
	if errors.Is(err, data.ErrContentNotFound) || errors.Is(err, data.ErrProjectNotFound) {
		return apperrors.Wrapf(err, apperrors.ErrCodeNotFound, "%s %s not found", target.Kind, target.ID)
	}
	return fmt.Errorf("update %s %s: %w", target.Kind, target.ID, err)
}
