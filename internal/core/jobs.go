// Package core defines the ports between the render job services and their
// storage, broker and storage-normalization adapters.
package core

import (
	"github.com/target/renderjobs/internal/domain/model"
)

// JobType is re-exported for HTTP handlers to avoid direct coupling to the model package.
type JobType = model.JobType

// CreateJobRequest is re-exported for HTTP handlers to avoid direct coupling to the model package.
type CreateJobRequest = model.CreateJobRequest
