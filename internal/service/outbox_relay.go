package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/target/renderjobs/internal/core"
	"github.com/target/renderjobs/internal/domain/model"
	"github.com/target/renderjobs/internal/observability/metrics"
	"github.com/target/renderjobs/internal/observability/statsd"
)

// OutboxRelayServiceOptions groups dependencies for OutboxRelayService.
type OutboxRelayServiceOptions struct {
	Repo         core.OutboxRepository // Required: outbox repository
	Publisher    core.EventPublisher   // Required: broker publisher
	BatchSize    int                   // Required: events claimed per pass
	PollInterval time.Duration         // Required: fallback wake-up period
	Logger       *slog.Logger          // Optional: structured logger
	Metrics      statsd.Sink           // Optional: metrics sink (StatsD-compatible)
	StuckAfter   int                   // Optional: consecutive failures before an event is reported stuck (default 5)
}

const (
	defaultStuckAfter  = 5
	maxTrackedFailures = 1024
)

// OutboxRelayService moves undelivered outbox events to the broker.
//
// It wakes on the outbox notification channel or after PollInterval, whichever comes
// first, and drains the backlog in batches. Delivery is at-least-once: an event whose
// publish succeeded but whose delivery row did not commit is published again.
type OutboxRelayService struct {
	repo         core.OutboxRepository
	publisher    core.EventPublisher
	batchSize    int
	pollInterval time.Duration
	logger       *slog.Logger
	metrics      statsd.Sink
	stuckAfter   int

	// consecutive publish failures per event id, cleared when the event goes out
	failMu   sync.Mutex
	failures map[string]int
}

// NewOutboxRelayService constructs a new OutboxRelayService.
func NewOutboxRelayService(opts OutboxRelayServiceOptions) (*OutboxRelayService, error) {
	if opts.Repo == nil {
		return nil, errors.New("OutboxRepository is required")
	}
	if opts.Publisher == nil {
		return nil, errors.New("EventPublisher is required")
	}
	if opts.BatchSize < 1 {
		return nil, errors.New("batch size must be positive")
	}
	if opts.PollInterval <= 0 {
		return nil, errors.New("poll interval must be positive")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stuckAfter := opts.StuckAfter
	if stuckAfter < 1 {
		stuckAfter = defaultStuckAfter
	}

	return &OutboxRelayService{
		repo:         opts.Repo,
		publisher:    opts.Publisher,
		batchSize:    opts.BatchSize,
		pollInterval: opts.PollInterval,
		logger:       logger.With("component", "outbox_relay"),
		metrics:      opts.Metrics,
		stuckAfter:   stuckAfter,
		failures:     make(map[string]int),
	}, nil
}

// Run relays events until the context is cancelled. Returns nil on graceful shutdown.
func (s *OutboxRelayService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting outbox relay",
		"batch_size", s.batchSize,
		"poll_interval", s.pollInterval,
	)

	for {
		if _, err := s.Drain(ctx); err != nil && !isContextCancellation(err) {
			s.logger.ErrorContext(ctx, "outbox relay pass failed", "error", err)
		}

		s.wait(ctx)

		if ctx.Err() != nil {
			s.logger.InfoContext(ctx, "outbox relay stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		}
	}
}

// Drain relays batches until one comes back short or fails.
func (s *OutboxRelayService) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := s.RelayOnce(ctx)
		total += n
		if err != nil {
			return total, err
		}
		if n < s.batchSize || ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}

// RelayOnce relays a single batch and returns how many events were delivered.
func (s *OutboxRelayService) RelayOnce(ctx context.Context) (int, error) {
	n, err := s.repo.RelayBatch(ctx, s.batchSize, s.publish)
	metrics.EmitOutboxRelay(s.metrics, n, suppressContextCancellation(err))
	if n > 0 {
		s.logger.DebugContext(ctx, "relayed outbox events", "count", n)
	}
	if err != nil {
		return n, fmt.Errorf("relay outbox batch: %w", err)
	}
	return n, nil
}

// publish sends one event and tracks how often it has failed in a row. Batches stop at
// the first failure, so an event that never publishes holds back everything behind it.
func (s *OutboxRelayService) publish(ctx context.Context, ev *model.OutboxEvent) (string, error) {
	streamID, err := s.publisher.Publish(ctx, ev)
	if err == nil {
		if s.clearFailures(ev.ID) {
			metrics.EmitOutboxPublishFailure(s.metrics, ev.EventType, 0, nil)
		}
		return streamID, nil
	}
	if isContextCancellation(err) {
		return "", err
	}

	attempts := s.recordFailure(ev.ID)
	metrics.EmitOutboxPublishFailure(s.metrics, ev.EventType, attempts, err)
	attrs := []any{
		"event_id", ev.ID,
		"event_type", ev.EventType,
		"aggregate_id", ev.AggregateID,
		"attempts", attempts,
		"error", err,
	}
	if attempts >= s.stuckAfter {
		s.logger.ErrorContext(ctx, "outbox event keeps failing to publish; later events are blocked", attrs...)
	} else {
		s.logger.WarnContext(ctx, "outbox publish failed", attrs...)
	}
	return "", err
}

// FailureCount returns the consecutive publish failures recorded for an event.
func (s *OutboxRelayService) FailureCount(eventID string) int {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.failures[eventID]
}

func (s *OutboxRelayService) recordFailure(eventID string) int {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if _, ok := s.failures[eventID]; !ok && len(s.failures) >= maxTrackedFailures {
		// ids of swept events never clear; start over rather than grow
		s.failures = make(map[string]int)
	}
	s.failures[eventID]++
	return s.failures[eventID]
}

func (s *OutboxRelayService) clearFailures(eventID string) bool {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if _, ok := s.failures[eventID]; !ok {
		return false
	}
	delete(s.failures, eventID)
	return true
}

// wait blocks until an outbox notification arrives or the poll interval elapses.
func (s *OutboxRelayService) wait(ctx context.Context) {
	waitCtx, cancel := context.WithTimeout(ctx, s.pollInterval)
	defer cancel()

	err := s.repo.WaitForEvent(waitCtx)
	if err == nil || isContextCancellation(err) {
		return
	}

	// LISTEN is unavailable; fall back to plain polling for this round
	s.logger.WarnContext(ctx, "outbox notification wait failed", "error", err)
	<-waitCtx.Done()
}
