// Package resultsconsumer reads worker results from a Redis Streams consumer group
// and hands them to the result reconciler.
package resultsconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/semaphore"

	"github.com/target/renderjobs/internal/core"
	"github.com/target/renderjobs/internal/domain/model"
	"github.com/target/renderjobs/internal/observability/metrics"
	"github.com/target/renderjobs/internal/observability/statsd"
)

// FieldData is the stream entry field carrying the JSON result.
const FieldData = "data"

const metricSource = "stream"

// ErrMalformed marks a stream entry that cannot be turned into a result.
var ErrMalformed = errors.New("malformed result message")

// Options configures a Consumer.
type Options struct {
	Client  redis.UniversalClient // Required
	Applier core.ResultApplier    // Required: reconciler entry point
	Stream  string                // Required
	Group   string                // Required
	// Consumer names this instance within the group. Defaults to the hostname.
	Consumer string
	// BatchSize is the XREADGROUP COUNT. Defaults to 16.
	BatchSize int
	// Block is how long one XREADGROUP waits. Defaults to 5s.
	Block time.Duration
	// Concurrency bounds reconciliations in flight. Defaults to 8.
	Concurrency int
	// HandleTimeout bounds one reconciliation. Defaults to 30s.
	HandleTimeout time.Duration
	Logger        *slog.Logger
	Metrics       statsd.Sink
}

// Consumer acknowledges every entry it reads, independent of the reconciliation
// outcome, and reconciles well-formed entries on their own goroutines.
type Consumer struct {
	client        redis.UniversalClient
	applier       core.ResultApplier
	stream        string
	group         string
	consumer      string
	batchSize     int64
	block         time.Duration
	concurrency   int64
	handleTimeout time.Duration
	sem           *semaphore.Weighted
	logger        *slog.Logger
	metrics       statsd.Sink
}

// New validates opts and creates a Consumer.
func New(opts Options) (*Consumer, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.Applier == nil {
		return nil, errors.New("result applier is required")
	}
	if strings.TrimSpace(opts.Stream) == "" || strings.TrimSpace(opts.Group) == "" {
		return nil, errors.New("stream and group are required")
	}

	name := strings.TrimSpace(opts.Consumer)
	if name == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "renderjobs"
		}
		name = host
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 16
	}
	if opts.Block <= 0 {
		opts.Block = 5 * time.Second
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 8
	}
	if opts.HandleTimeout <= 0 {
		opts.HandleTimeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		client:        opts.Client,
		applier:       opts.Applier,
		stream:        opts.Stream,
		group:         opts.Group,
		consumer:      name,
		batchSize:     int64(opts.BatchSize),
		block:         opts.Block,
		concurrency:   int64(opts.Concurrency),
		handleTimeout: opts.HandleTimeout,
		sem:           semaphore.NewWeighted(int64(opts.Concurrency)),
		logger:        logger.With("component", "results_consumer", "stream", opts.Stream, "consumer", name),
		metrics:       opts.Metrics,
	}, nil
}

// Run consumes until ctx is cancelled, then waits for in-flight reconciliations.
// Returns nil on graceful shutdown.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "starting results consumer", "group", c.group, "concurrency", c.concurrency)

	// Entries delivered to this consumer before a crash were never acknowledged.
	if err := c.drainPending(ctx); err != nil && ctx.Err() == nil {
		c.logger.WarnContext(ctx, "could not drain pending results", "error", err)
	}

	for ctx.Err() == nil {
		if _, err := c.ReadBatch(ctx, ">"); err != nil && ctx.Err() == nil {
			c.logger.ErrorContext(ctx, "read results failed", "error", err)
			sleepCtx(ctx, time.Second)
		}
	}

	c.wait()
	c.logger.InfoContext(ctx, "results consumer stopped")
	return nil
}

// EnsureGroup creates the consumer group, and the stream with it, when missing.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", c.group, c.stream, err)
	}
	return nil
}

func (c *Consumer) drainPending(ctx context.Context) error {
	for ctx.Err() == nil {
		n, err := c.ReadBatch(ctx, "0")
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
	return ctx.Err()
}

// ReadBatch reads one batch starting at id (">" for new entries, "0" for this
// consumer's pending entries), dispatches it and acknowledges every entry.
// It returns the number of entries read.
func (c *Consumer) ReadBatch(ctx context.Context, id string) (int, error) {
	block := c.block
	if id != ">" {
		// pending reads never block
		block = -1
	}
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, id},
		Count:    c.batchSize,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("xreadgroup %s: %w", c.stream, err)
	}

	var ids []string
	for _, s := range streams {
		for _, msg := range s.Messages {
			c.Dispatch(ctx, msg)
			ids = append(ids, msg.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	// Acknowledge on a context that survives shutdown so read entries are not redelivered.
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.client.XAck(ackCtx, c.stream, c.group, ids...).Err(); err != nil {
		c.logger.ErrorContext(ctx, "ack results failed", "count", len(ids), "error", err)
	}
	return len(ids), nil
}

// Dispatch decodes one entry and starts its reconciliation. Malformed entries are
// logged and dropped. It blocks only while Concurrency reconciliations are running.
func (c *Consumer) Dispatch(ctx context.Context, msg redis.XMessage) {
	result, err := Decode(msg)
	if err != nil {
		c.logger.WarnContext(ctx, "dropping malformed result", "message_id", msg.ID, "error", err)
		metrics.EmitResultMessage(c.metrics, metricSource, metrics.MessageDropped, err)
		return
	}

	// Reconciliations outlive the read loop; Run waits for them on shutdown.
	handleCtx := context.WithoutCancel(ctx)
	if err := c.sem.Acquire(handleCtx, 1); err != nil {
		return
	}
	go func() {
		defer c.sem.Release(1)
		c.handle(handleCtx, msg.ID, result)
	}()
}

func (c *Consumer) handle(ctx context.Context, messageID string, msg model.ResultMessage) {
	ctx, cancel := context.WithTimeout(ctx, c.handleTimeout)
	defer cancel()

	var err error
	outcome := metrics.MessageApplied
	if msg.IsProgress() {
		outcome = metrics.MessageProgress
		err = c.applier.MarkRunning(ctx, msg.JobID)
	} else {
		err = c.applier.ApplyResult(ctx, msg.JobID, msg.Outcome())
	}

	if err != nil {
		c.logger.ErrorContext(ctx, "apply result failed",
			"message_id", messageID,
			"job_id", msg.JobID,
			"error", err,
		)
		metrics.EmitResultMessage(c.metrics, metricSource, metrics.MessageFailed, err)
		return
	}
	metrics.EmitResultMessage(c.metrics, metricSource, outcome, nil)
}

// wait blocks until every dispatched reconciliation has finished.
func (c *Consumer) wait() {
	if err := c.sem.Acquire(context.Background(), c.concurrency); err == nil {
		c.sem.Release(c.concurrency)
	}
}

// Decode turns a stream entry into a result message. The job id must be a UUID and
// the message must carry a success flag or a RUNNING, SUCCEEDED or FAILED status.
func Decode(msg redis.XMessage) (model.ResultMessage, error) {
	var raw string
	switch v := msg.Values[FieldData].(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return model.ResultMessage{}, fmt.Errorf("%w: missing %q field", ErrMalformed, FieldData)
	}

	var out model.ResultMessage
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return model.ResultMessage{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	out.JobID = strings.TrimSpace(out.JobID)
	if _, err := uuid.Parse(out.JobID); err != nil {
		return model.ResultMessage{}, fmt.Errorf("%w: job id %q is not a uuid", ErrMalformed, out.JobID)
	}
	if out.Status != "" && !out.Status.Valid() {
		return model.ResultMessage{}, fmt.Errorf("%w: unknown status %q", ErrMalformed, out.Status)
	}
	if out.Status == model.JobStatusRequested {
		return model.ResultMessage{}, fmt.Errorf("%w: status %q is not a result", ErrMalformed, out.Status)
	}
	// Without a success flag only an explicit status says what happened.
	if out.Success == nil && out.Status == "" {
		return model.ResultMessage{}, fmt.Errorf("%w: missing success flag and status", ErrMalformed)
	}
	return out, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
