// Package outboxtransport implements transport.Transport by writing every
// publish to the transactional outbox store instead of to a broker. It is
// the event bus's durable delivery target: PublishInTx binds it to the
// caller's own *sql.Tx so the outbox insert commits atomically with the
// domain write, and a non-transactional caller can bind it to an
// AutoTxRepository (see internal/outbox/postgres) that opens and commits a
// short-lived transaction of its own around the single append.
package outboxtransport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rustokhq/eventpipeline/internal/events"
	"github.com/rustokhq/eventpipeline/internal/outbox"
	"github.com/rustokhq/eventpipeline/internal/transport"
)

// Appender is the subset of the outbox store this transport needs: a
// single insert. outbox.Repository, outbox/postgres.TxRepository, and
// outbox/postgres.AutoTxRepository all satisfy it.
type Appender interface {
	Append(ctx context.Context, rec outbox.Record) error
}

// Clock is swappable so tests control the outbox row's timestamps.
type Clock func() time.Time

// Transport writes every Publish call to the outbox as a Durable row, then
// leaves delivery to the relay worker. It never hands an envelope to a
// subscriber directly, so Subscribe always errors.
type Transport struct {
	appender Appender
	clock    Clock
}

// New builds a Transport over appender.
func New(appender Appender, clock Clock) *Transport {
	if clock == nil {
		clock = time.Now
	}

	return &Transport{appender: appender, clock: clock}
}

// Reliability reports Durable: once Publish returns nil the envelope is
// committed to the outbox table and survives a process crash.
func (t *Transport) Reliability() transport.Reliability { return transport.Durable }

// Publish appends env to the outbox, keyed by partitionKey as the row's
// aggregate_id; the relay worker later passes that value to the downstream
// transport as its partition key.
func (t *Transport) Publish(ctx context.Context, env events.EventEnvelope, partitionKey string) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("outboxtransport: marshal envelope: %w", err)
	}

	rec, err := outbox.NewRecord(env.TenantID, partitionKey, env.EventType, env.SchemaVersion, payload, t.clock().UTC())
	if err != nil {
		return fmt.Errorf("outboxtransport: build outbox record: %w", err)
	}

	rec.ID = env.EventID

	if err := t.appender.Append(ctx, rec); err != nil {
		return fmt.Errorf("outboxtransport: append: %w", err)
	}

	return nil
}

// Subscribe is not supported: nothing consumes directly from the outbox
// table. The relay worker claims rows itself via outbox.Repository.ClaimBatch.
func (t *Transport) Subscribe(ctx context.Context, group string, handler transport.Handler) (transport.Subscription, error) {
	return nil, fmt.Errorf("outboxtransport: subscribe not supported, the relay worker claims rows directly from the outbox store")
}

// Close is a no-op: Transport holds no resource of its own beyond the
// Appender it was given.
func (t *Transport) Close() error { return nil }
