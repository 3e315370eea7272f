// Package projection fans a decoded DomainEvent out to every registered
// Indexer, the way the teacher's consumer command handlers fan a queue
// message out to the services that care about it.
package projection

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/rustokhq/eventpipeline/internal/events"
	"github.com/rustokhq/eventpipeline/internal/telemetry"
	"github.com/rustokhq/eventpipeline/pkg/mlog"
)

// Indexer projects one DomainEvent into a read model. Handle must be
// idempotent: the same envelope can be redelivered after a crash between
// a successful write and the outbox row being marked Published.
type Indexer interface {
	// Name identifies this indexer in logs, metrics labels, and the
	// :indexer segment of the admin reindex routes.
	Name() string
	// Handle applies event to this indexer's read model. Returning nil
	// for an event type the indexer doesn't care about is correct and
	// expected — Dispatcher calls every indexer for every event.
	Handle(ctx context.Context, env events.EventEnvelope, event events.DomainEvent) error
}

// Dispatcher decodes an envelope once and hands the result to every
// registered Indexer concurrently.
type Dispatcher struct {
	logger   mlog.Logger
	metrics  *telemetry.Metrics
	indexers []Indexer
}

// New builds a Dispatcher over the given indexers.
func New(logger mlog.Logger, metrics *telemetry.Metrics, indexers ...Indexer) *Dispatcher {
	return &Dispatcher{logger: logger, metrics: metrics, indexers: indexers}
}

// Dispatch decodes env's payload and runs every indexer concurrently,
// returning the first error any indexer reported. One indexer's failure
// never cancels or blocks another's projection.
func (d *Dispatcher) Dispatch(ctx context.Context, env events.EventEnvelope) error {
	event, err := env.Decode()
	if err != nil {
		return fmt.Errorf("projection: decode envelope: %w", err)
	}

	var g errgroup.Group

	for _, idx := range d.indexers {
		idx := idx

		g.Go(func() error {
			if err := idx.Handle(ctx, env, event); err != nil {
				if d.metrics != nil {
					d.metrics.HandlerFailuresTotal.WithLabelValues(env.EventType).Inc()
				}

				d.logger.Errorw("indexer failed", "indexer", idx.Name(), "event_id", env.EventID, "event_type", env.EventType, "error", err)

				return fmt.Errorf("indexer %s: %w", idx.Name(), err)
			}

			return nil
		})
	}

	return g.Wait()
}
