// Package eventbus is the single entry point application code uses to emit
// domain events. It owns the choice between writing an outbox row inside
// the caller's transaction (PublishInTx) and firing straight at a transport
// with no durability guarantee (Publish) — callers never talk to outbox or
// transport packages directly.
package eventbus

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rustokhq/eventpipeline/internal/events"
	outboxpg "github.com/rustokhq/eventpipeline/internal/outbox/postgres"
	"github.com/rustokhq/eventpipeline/internal/transport"
	"github.com/rustokhq/eventpipeline/internal/transport/outboxtransport"
	"github.com/rustokhq/eventpipeline/pkg/mlog"
)

// Clock is swappable so tests control event timestamps deterministically.
type Clock func() time.Time

// Bus is the transactional event bus (component F). PublishInTx binds an
// outboxtransport.Transport (component E) to the caller's *sql.Tx for one
// append; bestEffort is a separate, non-durable transport Publish uses
// instead — the two never share a transport instance.
type Bus struct {
	logger       mlog.Logger
	bestEffort   transport.Transport
	clock        Clock
	defaultShard func(tenantID uuid.UUID, aggregateID string) string
}

// New builds a Bus. bestEffort is the transport used by the non-durable
// Publish path; it may be nil if the deployment never calls Publish.
func New(logger mlog.Logger, bestEffort transport.Transport, clock Clock) *Bus {
	if clock == nil {
		clock = time.Now
	}

	return &Bus{
		logger:     logger,
		bestEffort: bestEffort,
		clock:      clock,
		defaultShard: func(tenantID uuid.UUID, aggregateID string) string {
			if aggregateID != "" {
				return aggregateID
			}

			return tenantID.String()
		},
	}
}

// PublishInTx wraps event in an envelope, validates it, and appends the
// resulting outbox row inside tx via the Outbox Transport, bound to tx for
// this one call. It must be called within the same transaction as the
// domain write event describes, giving the pipeline its atomicity
// guarantee: either both commit, or neither does.
func (b *Bus) PublishInTx(ctx context.Context, tx *sql.Tx, tenantID uuid.UUID, aggregateID string, event events.DomainEvent) (events.EventEnvelope, error) {
	now := b.clock().UTC()

	env, err := events.NewEnvelope(tenantID, event, now, traceIDFromContext(ctx))
	if err != nil {
		return events.EventEnvelope{}, fmt.Errorf("eventbus: build envelope: %w", err)
	}

	durable := outboxtransport.New(outboxpg.WithTx(tx), b.clock)

	if err := durable.Publish(ctx, env, aggregateID); err != nil {
		return events.EventEnvelope{}, fmt.Errorf("eventbus: %w", err)
	}

	b.logger.Infow("published event in transaction", "event_id", env.EventID, "event_type", env.EventType, "tenant_id", tenantID)

	return env, nil
}

// Publish sends event directly to the best-effort transport with no
// durability guarantee: if no subscriber is listening, or a subscriber's
// buffer is full, the event is lost and Publish still returns nil. Use PublishInTx for anything
// that must not be dropped.
func (b *Bus) Publish(ctx context.Context, tenantID uuid.UUID, aggregateID string, event events.DomainEvent) (events.EventEnvelope, error) {
	if b.bestEffort == nil {
		return events.EventEnvelope{}, fmt.Errorf("eventbus: Publish called with no best-effort transport configured")
	}

	now := b.clock().UTC()

	env, err := events.NewEnvelope(tenantID, event, now, traceIDFromContext(ctx))
	if err != nil {
		return events.EventEnvelope{}, fmt.Errorf("eventbus: build envelope: %w", err)
	}

	partitionKey := b.defaultShard(tenantID, aggregateID)

	if err := b.bestEffort.Publish(ctx, env, partitionKey); err != nil {
		b.logger.Warnw("best-effort publish failed", "event_id", env.EventID, "error", err)
		return env, fmt.Errorf("eventbus: best-effort publish: %w", err)
	}

	return env, nil
}
