// Package transport defines the pluggable delivery abstraction every
// producer and projector programs against. Concrete reliability
// characteristics (best-effort in-memory fanout, durable outbox-backed
// delivery, partitioned streaming over RabbitMQ) live in sibling packages;
// this package only fixes the contract and the shared error taxonomy.
package transport

import (
	"context"
	"errors"

	"github.com/rustokhq/eventpipeline/internal/events"
)

// Reliability tags the delivery guarantee a Transport makes. Callers pick a
// transport by the guarantee their use case needs, not by broker brand.
type Reliability int

const (
	// BestEffort delivers to whatever subscribers are currently attached
	// and drops the message under backpressure. No persistence.
	BestEffort Reliability = iota
	// Durable persists every publish (via the transactional outbox) before
	// acknowledging, and guarantees at-least-once delivery to the relay
	// worker's dispatch targets.
	Durable
	// Streaming is Durable plus ordered, replayable delivery within a
	// partition and consumer-group fan-out semantics.
	Streaming
)

func (r Reliability) String() string {
	switch r {
	case BestEffort:
		return "best_effort"
	case Durable:
		return "durable"
	case Streaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// ErrBackpressure names the condition where a subscriber's buffer is full.
// The memory transport does not return it: it drops the message, counts and
// logs the drop, and Publish returns nil.
var ErrBackpressure = errors.New("transport: subscriber backpressure, message dropped")

// ErrClosed is returned by Publish/Subscribe once a transport has been shut
// down.
var ErrClosed = errors.New("transport: closed")

// Handler processes one delivered envelope. A non-nil error tells the
// transport the message was not durably handled; Durable/Streaming
// transports redeliver per their retry policy, BestEffort transports do
// not retry at all.
type Handler func(ctx context.Context, env events.EventEnvelope) error

// Transport is the delivery contract. PartitionKey routes and orders
// deliveries only in Streaming transports; the Outbox transport stores it as
// the row's aggregate_id, and the Memory transport ignores it.
type Transport interface {
	// Reliability reports this transport's delivery guarantee.
	Reliability() Reliability

	// Publish hands env to the transport for delivery. For a Streaming
	// transport, partitionKey determines which partition the envelope is
	// routed to, preserving per-key ordering; the Outbox transport records it
	// as the row's aggregate_id, and the Memory transport ignores it.
	Publish(ctx context.Context, env events.EventEnvelope, partitionKey string) error

	// Subscribe registers handler under a named consumer group. Delivery
	// fan-out across groups, and load-balancing within a group, follow the
	// transport's own semantics.
	Subscribe(ctx context.Context, group string, handler Handler) (Subscription, error)

	// Close releases any resources (goroutines, channels, connections) the
	// transport holds.
	Close() error
}

// Subscription lets a caller stop receiving deliveries.
type Subscription interface {
	Unsubscribe() error
}
