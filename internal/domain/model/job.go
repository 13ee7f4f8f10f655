// Package model defines the core data types shared by the render job lifecycle:
// jobs, outbox events, result outcomes and the dependent content/project records.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobType is the category of generation work a job represents.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobType string

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobTypeImageGeneration renders a still image.
	JobTypeImageGeneration JobType = "IMAGE_GENERATION"
	// JobTypeVideoGeneration renders a video clip.
	JobTypeVideoGeneration JobType = "VIDEO_GENERATION"
	// JobTypeMockupComposition composites artwork onto a product mockup.
	JobTypeMockupComposition JobType = "MOCKUP_COMPOSITION"
	// JobTypeBannerGeneration renders a marketing banner.
	JobTypeBannerGeneration JobType = "BANNER_GENERATION"

	// JobStatusRequested is the initial state, set when the job and its outbox event are written.
	JobStatusRequested JobStatus = "REQUESTED"
	// JobStatusRunning is advisory; a worker may report it before finishing.
	JobStatusRunning JobStatus = "RUNNING"
	// JobStatusSucceeded is terminal; OutputURL is set.
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	// JobStatusFailed is terminal; ErrorCode is set.
	JobStatusFailed JobStatus = "FAILED"
)

// ErrorCodeWorkerFailed is recorded when a worker reports failure without an error code.
const ErrorCodeWorkerFailed = "WORKER_FAILED"

// Limits on stored result fields.
const (
	MaxOutputURLLength    = 2048
	MaxErrorCodeLength    = 128
	MaxErrorMessageLength = 4096
)

// UnmarshalText implements encoding.TextUnmarshaler for JobType to allow env parsing.
func (t *JobType) UnmarshalText(text []byte) error {
	v := strings.ToUpper(strings.TrimSpace(string(text)))
	jt := JobType(v)
	if jt.Valid() {
		*t = jt
		return nil
	}
	return fmt.Errorf("invalid JobType: %q", v)
}

// Valid returns true if the JobType is valid.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeImageGeneration, JobTypeVideoGeneration, JobTypeMockupComposition, JobTypeBannerGeneration:
		return true
	default:
		return false
	}
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusRequested || s == JobStatusRunning || s == JobStatusSucceeded ||
		s == JobStatusFailed
}

// Terminal reports whether no further transition is accepted from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// Job is a unit of deferred generation work.
type Job struct {
	ID           string          `json:"jobId"                  db:"id"`
	ProjectID    string          `json:"projectId"              db:"project_id"`
	Type         JobType         `json:"jobType"                db:"type"`
	Status       JobStatus       `json:"status"                 db:"status"`
	Payload      json.RawMessage `json:"payload"                db:"payload"`
	OutputURL    *string         `json:"outputUrl,omitempty"    db:"output_url"`
	ErrorCode    *string         `json:"errorCode,omitempty"    db:"error_code"`
	ErrorMessage *string         `json:"errorMessage,omitempty" db:"error_message"`
	TraceContext *string         `json:"traceContext,omitempty" db:"trace_context"`
	RequestedAt  time.Time       `json:"requestedAt"            db:"requested_at"`
	UpdatedAt    time.Time       `json:"updatedAt"              db:"updated_at"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"  db:"completed_at"`
}

// CreateJobRequest represents a request to create a new job.
type CreateJobRequest struct {
	ProjectID    string          `json:"projectId"`
	Type         JobType         `json:"jobType"`
	Payload      json.RawMessage `json:"payload"`
	TraceContext *string         `json:"traceContext,omitempty"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if strings.TrimSpace(r.ProjectID) == "" {
		return errors.New("project id is required")
	}
	if !r.Type.Valid() {
		return errors.New("invalid job type")
	}
	if len(r.Payload) == 0 {
		return errors.New("payload is required")
	}
	return nil
}

// FinalizeJobParams describes a terminal transition.
type FinalizeJobParams struct {
	JobID        string
	Status       JobStatus
	OutputURL    string
	ErrorCode    string
	ErrorMessage string
}

// Validate enforces that success carries only an output and failure carries only an error.
func (p FinalizeJobParams) Validate() error {
	if _, err := uuid.Parse(p.JobID); err != nil {
		return errors.New("job id must be a valid UUID")
	}
	switch p.Status {
	case JobStatusSucceeded:
		if strings.TrimSpace(p.OutputURL) == "" {
			return errors.New("output url is required for a succeeded job")
		}
		if p.ErrorCode != "" || p.ErrorMessage != "" {
			return errors.New("succeeded job cannot carry an error")
		}
	case JobStatusFailed:
		if strings.TrimSpace(p.ErrorCode) == "" {
			return errors.New("error code is required for a failed job")
		}
		if p.OutputURL != "" {
			return errors.New("failed job cannot carry an output url")
		}
	case JobStatusRequested, JobStatusRunning:
		return fmt.Errorf("status %s is not terminal", p.Status)
	default:
		return fmt.Errorf("invalid status %q", p.Status)
	}
	return nil
}
