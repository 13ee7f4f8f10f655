package data

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/target/renderjobs/internal/domain/model"
)

// RepoConfig holds configuration options shared by the repositories.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo provides database operations for the job store.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobRepo{
		DB:           db,
		timeProvider: timeProviderOrDefault(cfg.TimeProvider),
		logger:       logger.With("component", "job_repo"),
	}
}

const jobColumns = `
  id,
  project_id,
  type,
  status,
  payload,
  output_url,
  error_code,
  error_message,
  trace_context,
  requested_at,
  updated_at,
  completed_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	payload                                  []byte
	outputURL, errorCode, errorMsg, traceCtx sql.NullString
	completedAt                              sql.NullTime
}

func (d *jobRowData) scanInto(scanner rowScanner, job *model.Job) error {
	return scanner.Scan(
		&job.ID,
		&job.ProjectID,
		&job.Type,
		&job.Status,
		&d.payload,
		&d.outputURL,
		&d.errorCode,
		&d.errorMsg,
		&d.traceCtx,
		&job.RequestedAt,
		&job.UpdatedAt,
		&d.completedAt,
	)
}

func (d *jobRowData) apply(job *model.Job) {
	job.Payload = cloneJSON(d.payload)
	job.OutputURL = cloneNullableString(d.outputURL)
	job.ErrorCode = cloneNullableString(d.errorCode)
	job.ErrorMessage = cloneNullableString(d.errorMsg)
	job.TraceContext = cloneNullableString(d.traceCtx)
	job.CompletedAt = cloneNullableTime(d.completedAt)
	job.RequestedAt = job.RequestedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
}

func scanJobFromRow(scanner rowScanner) (*model.Job, error) {
	job := &model.Job{}
	var data jobRowData
	if err := data.scanInto(scanner, job); err != nil {
		return nil, err
	}
	data.apply(job)
	return job, nil
}

func cloneJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return append(json.RawMessage(nil), raw...)
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
