package model

import "time"

// TargetKind names the dependent entity updated alongside a job's terminal transition.
type TargetKind string

const (
	// TargetNone means the job payload references no dependent entity.
	TargetNone TargetKind = ""
	// TargetContent is a content record.
	TargetContent TargetKind = "content"
	// TargetProject is a project record.
	TargetProject TargetKind = "project"
)

// TargetRef points at the dependent entity of a job.
type TargetRef struct {
	Kind TargetKind
	ID   string
}

// IsZero reports whether the job has no dependent entity.
func (r TargetRef) IsZero() bool { return r.Kind == TargetNone || r.ID == "" }

// TargetStatus is the display state of a content or project record.
type TargetStatus string

const (
	TargetStatusPending TargetStatus = "PENDING"
	TargetStatusReady   TargetStatus = "READY"
	TargetStatusFailed  TargetStatus = "FAILED"
)

// Content is a generated asset owned by a project.
type Content struct {
	ID        string       `json:"id"                  db:"id"`
	ProjectID string       `json:"projectId"           db:"project_id"`
	Status    TargetStatus `json:"status"              db:"status"`
	ResultURL *string      `json:"resultUrl,omitempty" db:"result_url"`
	UpdatedAt time.Time    `json:"updatedAt"           db:"updated_at"`
}

// Project groups contents and may carry its own rendered result.
type Project struct {
	ID        string       `json:"id"                  db:"id"`
	Name      string       `json:"name"                db:"name"`
	Status    TargetStatus `json:"status"              db:"status"`
	ResultURL *string      `json:"resultUrl,omitempty" db:"result_url"`
	UpdatedAt time.Time    `json:"updatedAt"           db:"updated_at"`
}
