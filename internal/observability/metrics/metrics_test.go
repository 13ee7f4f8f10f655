package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/target/renderjobs/internal/errors"
	"github.com/target/renderjobs/internal/observability/statsd"
)

func TestEmitJobLifecycle(t *testing.T) {
	rec := &statsd.Recorder{}

	EmitJobLifecycle(rec, JobMetric{
		JobType:    "BANNER_GENERATION",
		Transition: TransitionSucceeded,
		Result:     ResultError,
		Duration:   2 * time.Second,
		Err:        apperrors.NotFound("content"),
	})

	samples := rec.Samples()
	require.Len(t, samples, 2)
	assert.Equal(t, "job.transition", samples[0].Name)
	assert.Equal(t, "not_found", samples[0].Tags["error_class"])
	assert.Equal(t, "BANNER_GENERATION", samples[0].Tags["job_type"])
	assert.Equal(t, "job.duration", samples[1].Name)

	EmitJobLifecycle(nil, JobMetric{})
}

func TestEmitOutboxRelay(t *testing.T) {
	rec := &statsd.Recorder{}

	EmitOutboxRelay(rec, 0, nil)
	EmitOutboxRelay(rec, 3, nil)
	EmitOutboxRelay(rec, 1, errors.New("broker down"))

	assert.Equal(t, int64(1), rec.Total("outbox.relay.batches", map[string]string{"result": ResultNoop}))
	assert.Equal(t, int64(1), rec.Total("outbox.relay.batches", map[string]string{"result": ResultError}))
	assert.Equal(t, int64(4), rec.Total("outbox.relay.published", nil))
}

func TestEmitOutboxSweep(t *testing.T) {
	rec := &statsd.Recorder{}

	EmitOutboxSweep(rec, 12, time.Millisecond, nil)
	EmitOutboxSweep(rec, 0, 0, errors.New("db down"))

	assert.Equal(t, int64(12), rec.Total("outbox.sweep.deleted", nil))
	assert.Equal(t, int64(1), rec.Total("outbox.sweep.runs", map[string]string{"result": ResultError}))
}

func TestEmitResultMessage(t *testing.T) {
	rec := &statsd.Recorder{}
	EmitResultMessage(rec, "stream", MessageDropped, apperrors.Validation("bad"))
	assert.Equal(t, int64(1), rec.Total("results.message", map[string]string{
		"source": "stream", "outcome": MessageDropped, "error_class": "validation",
	}))
}

func TestEmitOutboxPublishFailure(t *testing.T) {
	rec := &statsd.Recorder{}

	EmitOutboxPublishFailure(rec, "JOB_REQUESTED", 2, errors.New("broker down"))
	EmitOutboxPublishFailure(rec, "JOB_REQUESTED", 0, nil)
	EmitOutboxPublishFailure(nil, "JOB_REQUESTED", 1, errors.New("ignored"))

	assert.Equal(t, int64(1), rec.Total("outbox.relay.publish_failures", map[string]string{"event_type": "JOB_REQUESTED"}))
	samples := rec.Samples()
	require.Len(t, samples, 3)
	assert.Equal(t, statsd.Sample{Kind: "g", Name: "outbox.relay.head_failures", Value: 2,
		Tags: map[string]string{"event_type": "JOB_REQUESTED"}}, samples[1])
	assert.Equal(t, "g", samples[2].Kind)
	assert.Zero(t, samples[2].Value)
}
