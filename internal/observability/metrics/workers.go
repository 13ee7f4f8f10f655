package metrics

import (
	"time"

	obserrors "github.com/target/renderjobs/internal/observability/errors"
	"github.com/target/renderjobs/internal/observability/statsd"
)

// Outcomes of a message pulled from the results stream.
const (
	MessageApplied  = "applied"
	MessageDropped  = "dropped"
	MessageFailed   = "failed"
	MessageProgress = "progress"
)

// EmitResultMessage counts one results-stream message by outcome and source.
func EmitResultMessage(sink statsd.Sink, source, outcome string, err error) {
	if sink == nil {
		return
	}
	tags := map[string]string{"source": source, "outcome": outcome}
	if err != nil {
		tags["error_class"] = obserrors.Classify(err)
	}
	sink.Count("results.message", 1, tags)
}

// EmitOutboxSweep records one retention sweep.
func EmitOutboxSweep(sink statsd.Sink, deleted int64, duration time.Duration, err error) {
	if sink == nil {
		return
	}
	tags := map[string]string{"result": ResultSuccess}
	if err != nil {
		tags["result"] = ResultError
		tags["error_class"] = obserrors.Classify(err)
	}
	sink.Count("outbox.sweep.runs", 1, tags)
	if deleted > 0 {
		sink.Count("outbox.sweep.deleted", deleted, nil)
	}
	if duration > 0 {
		sink.Timing("outbox.sweep.duration", duration, CloneTags(tags))
	}
}

// EmitOutboxRelay records one relay batch.
func EmitOutboxRelay(sink statsd.Sink, published int, err error) {
	if sink == nil {
		return
	}
	tags := map[string]string{"result": ResultSuccess}
	switch {
	case err != nil:
		tags["result"] = ResultError
		tags["error_class"] = obserrors.Classify(err)
	case published == 0:
		tags["result"] = ResultNoop
	}
	sink.Count("outbox.relay.batches", 1, tags)
	if published > 0 {
		sink.Count("outbox.relay.published", int64(published), nil)
	}
}

// EmitOutboxPublishFailure counts a failed publish and sets the head event's consecutive
// failure gauge. Pass attempts 0 with a nil err once the event goes through.
func EmitOutboxPublishFailure(sink statsd.Sink, eventType string, attempts int, err error) {
	if sink == nil {
		return
	}
	tags := map[string]string{"event_type": eventType}
	if err != nil {
		failTags := CloneTags(tags)
		failTags["error_class"] = obserrors.Classify(err)
		sink.Count("outbox.relay.publish_failures", 1, failTags)
	}
	sink.Gauge("outbox.relay.head_failures", float64(attempts), tags)
}
