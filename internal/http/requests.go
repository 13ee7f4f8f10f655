package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/target/renderjobs/internal/domain/model"
	apperrors "github.com/target/renderjobs/internal/errors"
)

// TraceparentHeader carries the W3C trace context recorded with a new job.
const TraceparentHeader = "traceparent"

const maxTraceparentLength = 512

// CreateJobRequest is the body of POST /api/jobs.
type CreateJobRequest struct {
	ProjectID string          `json:"projectId" validate:"required,max=128"`
	JobType   string          `json:"jobType"   validate:"required,jobtype"`
	Payload   json.RawMessage `json:"payload"   validate:"required"`
}

// CreateJobResponse is returned with 202 Accepted.
type CreateJobResponse struct {
	JobID  string          `json:"jobId"`
	Status model.JobStatus `json:"status"`
}

// ResultCallbackRequest is the body of POST /api/jobs/{id}/result. A jobId in the
// body is optional and must match the path when present.
type ResultCallbackRequest struct {
	JobID        string `json:"jobId,omitempty"      validate:"omitempty,uuid"`
	Success      *bool  `json:"success"              validate:"required"`
	OutputURI    string `json:"outputUri,omitempty"  validate:"omitempty,max=2048"`
	ErrorCode    string `json:"errorCode,omitempty"  validate:"omitempty,max=128"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Outcome converts the callback body into a normalized outcome.
func (r ResultCallbackRequest) Outcome() model.ResultOutcome {
	return model.ResultOutcome{
		Success:      r.Success != nil && *r.Success,
		OutputURI:    r.OutputURI,
		ErrorCode:    r.ErrorCode,
		ErrorMessage: r.ErrorMessage,
	}.Normalize()
}

// newValidator returns a validator with the job type rule registered.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	_ = v.RegisterValidation("jobtype", func(fl validator.FieldLevel) bool {
		return model.JobType(strings.ToUpper(strings.TrimSpace(fl.Field().String()))).Valid()
	})
	return v
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// validationError converts a validator failure into a field-level AppError.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperrors.ValidationField(fe.Field(), describeFieldError(fe))
	}
	return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid request")
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fmt.Sprintf("%s cannot exceed %s characters", fe.Field(), fe.Param())
	case "uuid":
		return fe.Field() + " must be a valid UUID"
	case "jobtype":
		return fmt.Sprintf("%s must be one of: %s, %s, %s, %s", fe.Field(),
			model.JobTypeImageGeneration, model.JobTypeVideoGeneration,
			model.JobTypeMockupComposition, model.JobTypeBannerGeneration)
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// isNullPayload reports whether the payload is missing or the JSON literal null.
func isNullPayload(payload json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(payload))
	return trimmed == "" || trimmed == "null"
}

// traceContext extracts the optional traceparent header.
func traceContext(header string) (*string, error) {
	tc := strings.TrimSpace(header)
	if tc == "" {
		return nil, nil
	}
	if len(tc) > maxTraceparentLength {
		return nil, apperrors.ValidationField(TraceparentHeader, "traceparent header is too long")
	}
	return &tc, nil
}
