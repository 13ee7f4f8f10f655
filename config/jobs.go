package config

import (
	"strings"
	"time"
)

// JobsConfig contains settings for job submission and result ingestion.
type JobsConfig struct {
	// RequestedRoutingKey is the stream that JOB_REQUESTED events are published to.
	RequestedRoutingKey string `env:"JOBS_REQUESTED_ROUTING_KEY" envDefault:"render.jobs.requested"`

	// ResultsStream is the stream workers publish results to.
	ResultsStream string `env:"JOBS_RESULTS_STREAM" envDefault:"render.jobs.results"`

	// ResultsGroup is the consumer group shared by all results-consumer instances.
	ResultsGroup string `env:"JOBS_RESULTS_GROUP" envDefault:"renderjobs"`

	// ResultsConsumerName identifies this instance within the group. Defaults to the hostname.
	ResultsConsumerName string `env:"JOBS_RESULTS_CONSUMER_NAME"`

	// ResultsConcurrency bounds in-flight reconciliations dispatched by the consumer.
	ResultsConcurrency int `env:"JOBS_RESULTS_CONCURRENCY" envDefault:"8"`

	// ResultsBatchSize is the XREADGROUP COUNT.
	ResultsBatchSize int `env:"JOBS_RESULTS_BATCH_SIZE" envDefault:"16"`

	// ResultsBlock is how long a single XREADGROUP call waits for messages.
	ResultsBlock time.Duration `env:"JOBS_RESULTS_BLOCK" envDefault:"5s"`

	// CallbackSecret is the shared secret workers present on the result callback.
	// An empty secret rejects every callback.
	CallbackSecret string `env:"JOBS_CALLBACK_SECRET"`

	// CallbackHeader carries the shared secret.
	CallbackHeader string `env:"JOBS_CALLBACK_HEADER" envDefault:"X-Callback-Secret"`

	// CallbackTimeout bounds a synchronous reconciliation triggered by the callback.
	CallbackTimeout time.Duration `env:"JOBS_CALLBACK_TIMEOUT" envDefault:"10s"`

	// TargetContentExpr and TargetProjectExpr are JMESPath expressions evaluated against
	// the job payload to find the dependent content or project, in that order.
	TargetContentExpr string `env:"JOBS_TARGET_CONTENT_EXPR" envDefault:"contentId || content_id"`
	TargetProjectExpr string `env:"JOBS_TARGET_PROJECT_EXPR" envDefault:"projectId || project_id"`
}

// Sanitize applies guardrails to jobs configuration values.
func (j *JobsConfig) Sanitize() {
	j.RequestedRoutingKey = strings.TrimSpace(j.RequestedRoutingKey)
	if j.RequestedRoutingKey == "" {
		j.RequestedRoutingKey = "render.jobs.requested"
	}
	j.ResultsStream = strings.TrimSpace(j.ResultsStream)
	if j.ResultsStream == "" {
		j.ResultsStream = "render.jobs.results"
	}
	if strings.TrimSpace(j.ResultsGroup) == "" {
		j.ResultsGroup = "renderjobs"
	}
	if j.ResultsConcurrency < 1 {
		j.ResultsConcurrency = 1
	}
	if j.ResultsConcurrency > 256 {
		j.ResultsConcurrency = 256
	}
	if j.ResultsBatchSize < 1 {
		j.ResultsBatchSize = 1
	}
	if j.ResultsBlock < 100*time.Millisecond {
		j.ResultsBlock = 100 * time.Millisecond
	}
	if strings.TrimSpace(j.CallbackHeader) == "" {
		j.CallbackHeader = "X-Callback-Secret"
	}
	if j.CallbackTimeout <= 0 {
		j.CallbackTimeout = 10 * time.Second
	}
	j.TargetContentExpr = strings.TrimSpace(j.TargetContentExpr)
	j.TargetProjectExpr = strings.TrimSpace(j.TargetProjectExpr)
}
