// Package relay implements the poll/claim/dispatch loop that drains
// transactional outbox rows onto a transport. It is the only component that
// ever moves an outbox row out of PENDING.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rustokhq/eventpipeline/internal/events"
	"github.com/rustokhq/eventpipeline/internal/outbox"
	"github.com/rustokhq/eventpipeline/internal/telemetry"
	"github.com/rustokhq/eventpipeline/internal/transport"
	"github.com/rustokhq/eventpipeline/pkg/mlog"
	"github.com/rustokhq/eventpipeline/pkg/mretry"
)

// defaultMaxWorkers and defaultStaleAfter are applied when the caller
// passes the zero value, mirroring the teacher worker's "defaults when
// zero" constructor behavior.
const (
	defaultMaxWorkers    = 5
	defaultBatchSize     = 100
	defaultPollInterval  = 2 * time.Second
	defaultStaleAfter    = 5 * time.Minute
)

// Worker polls the outbox, claims eligible rows, and dispatches each one to
// the configured transport. It panics on construction if any required
// dependency is nil, the same contract the teacher's metadata outbox worker
// enforces — a relay worker with a nil repository or transport is a wiring
// bug, not a runtime condition to recover from.
type Worker struct {
	logger      mlog.Logger
	repo        outbox.Repository
	transport   transport.Transport
	metrics     *telemetry.Metrics
	workerID    string
	maxWorkers  int
	batchSize   int
	pollEvery   time.Duration
	staleAfter  time.Duration
	retryConfig mretry.Config
	breaker     *gobreaker.CircuitBreaker[any]
}

// Option configures an optional Worker field beyond its defaulted values.
type Option func(*Worker)

// WithBatchSize overrides the number of rows claimed per poll.
func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithPollInterval overrides the delay between poll cycles when the
// previous cycle claimed nothing.
func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.pollEvery = d
		}
	}
}

// WithStaleAfter overrides how long a PROCESSING claim may sit unresolved
// before ReclaimStale treats the worker that claimed it as dead.
func WithStaleAfter(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.staleAfter = d
		}
	}
}

// WithRetryConfig overrides the default backoff policy.
func WithRetryConfig(cfg mretry.Config) Option {
	return func(w *Worker) { w.retryConfig = cfg }
}

// New builds a Worker. logger, repo, and tr must be non-nil; New panics
// otherwise so a misconfigured deployment fails at startup rather than
// silently dropping events. maxWorkers <= 0 defaults to 5 concurrent
// dispatch goroutines per poll batch.
func New(logger mlog.Logger, repo outbox.Repository, tr transport.Transport, metrics *telemetry.Metrics, workerID string, maxWorkers int, opts ...Option) *Worker {
	if logger == nil {
		panic("relay: logger must not be nil")
	}

	if repo == nil {
		panic("relay: outbox repository must not be nil")
	}

	if tr == nil {
		panic("relay: transport must not be nil")
	}

	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}

	w := &Worker{
		logger:      logger,
		repo:        repo,
		transport:   tr,
		metrics:     metrics,
		workerID:    workerID,
		maxWorkers:  maxWorkers,
		batchSize:   defaultBatchSize,
		pollEvery:   defaultPollInterval,
		staleAfter:  defaultStaleAfter,
		retryConfig: mretry.DefaultMetadataOutboxConfig(),
		breaker: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:        "relay-dispatch-" + workerID,
			MaxRequests: uint32(maxWorkers),
			Timeout:     30 * time.Second,
		}),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run polls until ctx is cancelled. Each cycle claims a batch, dispatches it
// with up to w.maxWorkers concurrent goroutines, and reclaims stale
// PROCESSING rows left behind by a crashed peer.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.reclaimStale(ctx); err != nil {
				w.logger.Errorw("reclaim stale outbox rows failed", "error", err)
			}

			claimed, err := w.pollOnce(ctx)
			if err != nil {
				w.logger.Errorw("poll outbox failed", "error", err)
				continue
			}

			if claimed == 0 {
				continue
			}

			// Busy-loop without waiting for the next tick while the
			// backlog is non-empty, the same way a drained queue should
			// be drained as fast as downstream can absorb it.
			for {
				n, err := w.pollOnce(ctx)
				if err != nil {
					w.logger.Errorw("poll outbox failed", "error", err)
					break
				}

				if n == 0 {
					break
				}
			}
		}
	}
}

func (w *Worker) reclaimStale(ctx context.Context) error {
	n, err := w.repo.ReclaimStale(ctx, time.Now().UTC().Add(-w.staleAfter), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reclaim stale: %w", err)
	}

	if n > 0 {
		w.logger.Warnw("reclaimed stale outbox claims", "count", n, "worker_id", w.workerID)
	}

	return nil
}

func (w *Worker) pollOnce(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	batch, err := w.repo.ClaimBatch(ctx, w.workerID, w.batchSize, now)
	if err != nil {
		return 0, fmt.Errorf("claim batch: %w", err)
	}

	if len(batch) == 0 {
		return 0, nil
	}

	sem := make(chan struct{}, w.maxWorkers)
	results := make(chan error, len(batch))

	for _, rec := range batch {
		sem <- struct{}{}

		go func(rec outbox.Record) {
			defer func() { <-sem }()
			results <- w.dispatch(ctx, rec)
		}(rec)
	}

	for range batch {
		if err := <-results; err != nil {
			w.logger.Errorw("dispatch outbox row failed", "error", err)
		}
	}

	if w.metrics != nil {
		w.refreshBacklogGauge(ctx)
	}

	return len(batch), nil
}

func (w *Worker) refreshBacklogGauge(ctx context.Context) {
	stats, err := w.repo.Stats(ctx, nil)
	if err != nil {
		return
	}

	w.metrics.OutboxBacklogSize.Set(float64(stats.Pending + stats.Failed))
	w.metrics.OutboxInFlight.Set(float64(stats.Processing))
}

// dispatch decodes rec's payload and publishes it, marking the row
// Published on success or Failed (dead-lettering once retries are
// exhausted) on error. Unknown event types, which indicate a producer
// running a newer schema this worker doesn't understand, go straight to
// Failed without ever touching the transport.
func (w *Worker) dispatch(ctx context.Context, rec outbox.Record) error {
	_, err := w.breaker.Execute(func() (any, error) {
		return nil, w.publish(ctx, rec)
	})
	if err == nil {
		return w.repo.MarkSucceeded(ctx, rec.ID, time.Now().UTC())
	}

	return w.handleFailure(ctx, rec, err)
}

func (w *Worker) publish(ctx context.Context, rec outbox.Record) error {
	if !events.KnownEventType(rec.EventType) {
		return fmt.Errorf("relay: %w: %q", events.ErrUnknownEventType, rec.EventType)
	}

	var env events.EventEnvelope
	if err := json.Unmarshal(rec.Payload, &env); err != nil {
		return fmt.Errorf("relay: decode envelope: %w", err)
	}

	return w.transport.Publish(ctx, env, rec.AggregateID)
}

func (w *Worker) handleFailure(ctx context.Context, rec outbox.Record, cause error) error {
	now := time.Now().UTC()
	delay := w.retryConfig.Backoff(rec.RetryCount)

	if w.metrics != nil {
		w.metrics.OutboxRetries.Inc()

		// rec.RetryCount is the count ClaimBatch fetched before this
		// failure; MarkFailed increments it below, so the DLQ transition
		// this failure will cause has to be predicted against the
		// post-increment count, not the stale one.
		if rec.RetryCount+1 >= rec.MaxRetries {
			w.metrics.OutboxDLQTotal.Inc()
		}
	}

	w.logger.Warnw("outbox dispatch failed, scheduling retry",
		"outbox_id", rec.ID, "event_type", rec.EventType, "retry_count", rec.RetryCount, "error", cause)

	return w.repo.MarkFailed(ctx, rec.ID, cause.Error(), now.Add(delay), now)
}

// calculateBackoff exposes the worker's configured backoff policy for a
// given attempt count; only tests call it.
func (w *Worker) calculateBackoff(attempt int) time.Duration {
	return w.retryConfig.Backoff(attempt)
}
