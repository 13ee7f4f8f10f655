// Package httpx provides the HTTP API for submitting render jobs, reading their status
// and receiving worker result callbacks.
package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/target/renderjobs/internal/core"
	"github.com/target/renderjobs/internal/domain/model"
	apperrors "github.com/target/renderjobs/internal/errors"
	"github.com/target/renderjobs/internal/service"
)

const defaultCallbackTimeout = 10 * time.Second

// JobHandlers provides HTTP handlers for job-related operations.
type JobHandlers struct {
	Svc     *service.JobService
	Results core.ResultApplier
	// CallbackTimeout bounds a synchronous reconciliation.
	CallbackTimeout time.Duration
	Logger          *slog.Logger

	validate *validator.Validate
}

// NewJobHandlers wires the handlers with a configured validator.
func NewJobHandlers(h JobHandlers) *JobHandlers {
	if h.CallbackTimeout <= 0 {
		h.CallbackTimeout = defaultCallbackTimeout
	}
	if h.Logger == nil {
		h.Logger = slog.Default()
	}
	h.validate = newValidator()
	return &h
}

func (h *JobHandlers) structValidator() *validator.Validate {
	if h.validate == nil {
		h.validate = newValidator()
	}
	return h.validate
}

// CreateJob handles POST /api/jobs.
func (h *JobHandlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := h.structValidator().Struct(req); err != nil {
		WriteAppError(w, validationError(err))
		return
	}
	if isNullPayload(req.Payload) {
		WriteAppError(w, apperrors.ValidationField("payload", "payload is required"))
		return
	}
	tc, err := traceContext(r.Header.Get(TraceparentHeader))
	if err != nil {
		WriteAppError(w, err)
		return
	}

	job, err := h.Svc.RequestJob(r.Context(), &model.CreateJobRequest{
		ProjectID:    req.ProjectID,
		Type:         model.JobType(strings.ToUpper(strings.TrimSpace(req.JobType))),
		Payload:      req.Payload,
		TraceContext: tc,
	})
	if err != nil {
		h.logFailure(r.Context(), "create job failed", err)
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, CreateJobResponse{JobID: job.ID, Status: job.Status})
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return
	}

	job, err := h.Svc.GetJob(r.Context(), jobID)
	if err != nil {
		h.logFailure(r.Context(), "get job failed", err)
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// SubmitResult handles POST /api/jobs/{id}/result. The caller must already have passed
// RequireCallbackSecret. Duplicate and late results are acknowledged with 200.
func (h *JobHandlers) SubmitResult(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	var body ResultCallbackRequest
	if !DecodeJSON(w, r, &body) {
		return
	}
	if err := h.structValidator().Struct(body); err != nil {
		WriteAppError(w, validationError(err))
		return
	}
	if body.JobID != "" && body.JobID != jobID {
		WriteAppError(w, apperrors.ValidationField("jobId", "jobId does not match the request path"))
		return
	}
	outcome := body.Outcome()
	if err := outcome.Validate(); err != nil {
		WriteAppError(w, apperrors.ValidationField(model.InvalidField(err), err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.CallbackTimeout)
	defer cancel()

	if err := h.Results.ApplyResult(ctx, jobID, outcome); err != nil {
		h.logFailure(r.Context(), "result callback failed", err, "job_id", jobID)
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// MarkRunning handles POST /api/jobs/{id}/running. The caller must already have passed
// RequireCallbackSecret.
func (h *JobHandlers) MarkRunning(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	ctx, cancel := context.WithTimeout(r.Context(), h.CallbackTimeout)
	defer cancel()

	if err := h.Results.MarkRunning(ctx, jobID); err != nil {
		h.logFailure(r.Context(), "running callback failed", err, "job_id", jobID)
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *JobHandlers) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	if h.Logger == nil {
		return
	}
	attrs = append(attrs, "error", err)
	if apperrors.GetCode(err) == "" || apperrors.IsInternal(err) || apperrors.IsUnavailable(err) {
		h.Logger.ErrorContext(ctx, msg, attrs...)
		return
	}
	h.Logger.DebugContext(ctx, msg, attrs...)
}
