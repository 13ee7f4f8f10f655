package model

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ResultOutcome is a worker's report for one job, from either ingress path.
type ResultOutcome struct {
	Success      bool
	OutputURI    string
	ErrorCode    string
	ErrorMessage string
}

// FieldError is a validation failure tied to one result field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Message }

// ErrOutputURIRequired is returned when a successful outcome has no output reference.
var ErrOutputURIRequired error = &FieldError{Field: "outputUri", Message: "outputUri is required when success is true"}

// InvalidField returns the result field err is about, or "" when it names none.
func InvalidField(err error) string {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Field
	}
	return ""
}

// Normalize trims whitespace and fills the default failure code.
func (o ResultOutcome) Normalize() ResultOutcome {
	o.OutputURI = strings.TrimSpace(o.OutputURI)
	o.ErrorCode = strings.TrimSpace(o.ErrorCode)
	o.ErrorMessage = truncateRunes(strings.TrimSpace(o.ErrorMessage), MaxErrorMessageLength)
	if !o.Success && o.ErrorCode == "" {
		o.ErrorCode = ErrorCodeWorkerFailed
	}
	return o
}

// Validate checks a normalized outcome.
func (o ResultOutcome) Validate() error {
	if o.Success {
		if o.OutputURI == "" {
			return ErrOutputURIRequired
		}
		if len(o.OutputURI) > MaxOutputURLLength {
			return &FieldError{Field: "outputUri", Message: "outputUri is too long"}
		}
		return nil
	}
	if len(o.ErrorCode) > MaxErrorCodeLength {
		return &FieldError{Field: "errorCode", Message: "errorCode is too long"}
	}
	return nil
}

// ResultMessage is the wire shape of a worker result, shared by the HTTP callback body
// and the results stream. Status is optional; RUNNING reports progress only.
type ResultMessage struct {
	JobID        string    `json:"jobId,omitempty"`
	Status       JobStatus `json:"status,omitempty"`
	Success      *bool     `json:"success,omitempty"`
	OutputURI    string    `json:"outputUri,omitempty"`
	ErrorCode    string    `json:"errorCode,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// IsProgress reports whether the message is a RUNNING progress report.
func (m ResultMessage) IsProgress() bool {
	return m.Status == JobStatusRunning
}

// Outcome converts the message to a ResultOutcome. A missing success flag is a failure
// unless the explicit status says SUCCEEDED.
func (m ResultMessage) Outcome() ResultOutcome {
	success := m.Status == JobStatusSucceeded
	if m.Success != nil {
		success = *m.Success
	}
	return ResultOutcome{
		Success:      success,
		OutputURI:    m.OutputURI,
		ErrorCode:    m.ErrorCode,
		ErrorMessage: m.ErrorMessage,
	}
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
