// Package streaming implements a Streaming transport.Transport: a
// partitioned, replayable log emulated on top of RabbitMQ, which has no
// native partition or offset concept. Partitioning is done with a
// consistent-hash routing key bound to one queue per partition under a
// topic exchange; replay is done by keeping a separate offset-addressable
// audit log, since AMQP itself cannot rewind a queue to an arbitrary point.
package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/rustokhq/eventpipeline/internal/events"
	"github.com/rustokhq/eventpipeline/internal/transport"
	"github.com/rustokhq/eventpipeline/pkg/mlog"
	"github.com/rustokhq/eventpipeline/pkg/mrabbitmq"
	"github.com/rustokhq/eventpipeline/pkg/mretry"
)

// AuditLog is the offset-addressable store Replay reads from. The postgres
// implementation under internal/consistency backs this with a simple
// append-only table; a Streaming transport cannot itself rewind a RabbitMQ
// queue, so every published envelope is also appended here.
type AuditLog interface {
	Append(ctx context.Context, partition int, env events.EventEnvelope) (offset int64, err error)
	Since(ctx context.Context, partition int, fromOffset int64, limit int) ([]AuditRecord, error)
}

// AuditRecord pairs a replayed envelope with the offset it was stored at.
type AuditRecord struct {
	Offset   int64
	Envelope events.EventEnvelope
}

// Topology names the exchange, partition count, and DLQ for one logical
// stream (e.g. "content", "commerce").
type Topology struct {
	Stream         string
	PartitionCount int
}

func (t Topology) exchange() string       { return "rustok." + t.Stream }
func (t Topology) dlqExchange() string    { return "rustok." + t.Stream + ".dlq" }
func (t Topology) dlqQueue() string       { return "rustok." + t.Stream + ".dlq" }
func (t Topology) partitionKey(n int) string { return fmt.Sprintf("partition.%d", n) }
func (t Topology) groupQueue(group string) string {
	return "rustok." + t.Stream + "." + group
}

// Transport is a RabbitMQ-backed Streaming transport.
type Transport struct {
	logger   mlog.Logger
	conn     *mrabbitmq.Connection
	topology Topology
	audit    AuditLog
	retry    mretry.Config
}

// New declares the exchange/partition-queue topology and returns a ready
// Transport.
func New(ctx context.Context, logger mlog.Logger, conn *mrabbitmq.Connection, topology Topology, audit AuditLog) (*Transport, error) {
	if topology.PartitionCount <= 0 {
		topology.PartitionCount = 8
	}

	ch, err := conn.GetChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("streaming: get channel: %w", err)
	}

	if err := declareTopology(ch, topology); err != nil {
		return nil, err
	}

	return &Transport{
		logger:   logger,
		conn:     conn,
		topology: topology,
		audit:    audit,
		retry:    mretry.DefaultMetadataOutboxConfig(),
	}, nil
}

func declareTopology(ch *amqp.Channel, topo Topology) error {
	if err := ch.ExchangeDeclare(topo.exchange(), "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", topo.exchange(), err)
	}

	if err := ch.ExchangeDeclare(topo.dlqExchange(), "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlq exchange %s: %w", topo.dlqExchange(), err)
	}

	if _, err := ch.QueueDeclare(topo.dlqQueue(), true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlq queue %s: %w", topo.dlqQueue(), err)
	}

	if err := ch.QueueBind(topo.dlqQueue(), "", topo.dlqExchange(), false, nil); err != nil {
		return fmt.Errorf("bind dlq queue: %w", err)
	}

	for n := 0; n < topo.PartitionCount; n++ {
		queue := fmt.Sprintf("%s.partition.%d", topo.exchange(), n)

		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare partition queue %s: %w", queue, err)
		}

		if err := ch.QueueBind(queue, topo.partitionKey(n), topo.exchange(), false, nil); err != nil {
			return fmt.Errorf("bind partition queue %s: %w", queue, err)
		}
	}

	return nil
}

func (t *Transport) Reliability() transport.Reliability { return transport.Streaming }

// partitionFor hashes partitionKey into [0, PartitionCount), so every
// envelope sharing a key (e.g. the same aggregate ID) lands in the same
// partition and is delivered in publish order within it.
func (t *Transport) partitionFor(partitionKey string) int {
	if partitionKey == "" {
		return 0
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(partitionKey))

	return int(h.Sum32()) % t.topology.PartitionCount
}

// Publish appends env to the audit log (so it becomes replayable) and then
// publishes it to the partition's routing key. The audit append happens
// first: a crash between the two leaves the envelope replayable but not yet
// broker-delivered, which a consumer-side replay call recovers, rather than
// the other way around which would make an audited offset point at an
// envelope no subscriber ever saw.
func (t *Transport) Publish(ctx context.Context, env events.EventEnvelope, partitionKey string) error {
	partition := t.partitionFor(partitionKey)

	if t.audit != nil {
		if _, err := t.audit.Append(ctx, partition, env); err != nil {
			return fmt.Errorf("streaming: append audit log: %w", err)
		}
	}

	ch, err := t.conn.GetChannel(ctx)
	if err != nil {
		return fmt.Errorf("streaming: get channel: %w", err)
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("streaming: marshal envelope: %w", err)
	}

	err = ch.PublishWithContext(ctx, t.topology.exchange(), t.topology.partitionKey(partition), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.EventID.String(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("streaming: publish to partition %d: %w", partition, err)
	}

	return nil
}

// Subscribe declares (if absent) a per-group queue bound to every partition
// routing key and consumes from it. A handler error requeues the delivery
// up to the configured retry budget before routing it to the DLQ exchange,
// at which point it carries an x-death history RabbitMQ itself maintains.
func (t *Transport) Subscribe(ctx context.Context, group string, handler transport.Handler) (transport.Subscription, error) {
	ch, err := t.conn.GetChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("streaming: get channel: %w", err)
	}

	queue := t.topology.groupQueue(group)

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare group queue %s: %w", queue, err)
	}

	for n := 0; n < t.topology.PartitionCount; n++ {
		if err := ch.QueueBind(queue, t.topology.partitionKey(n), t.topology.exchange(), false, nil); err != nil {
			return nil, fmt.Errorf("bind group queue %s to partition %d: %w", queue, n, err)
		}
	}

	deliveries, err := ch.Consume(queue, group, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", queue, err)
	}

	consumeCtx, cancel := context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-consumeCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				t.handleDelivery(consumeCtx, ch, d, handler)
			}
		}
	}()

	return &subscription{cancel: cancel}, nil
}

func (t *Transport) handleDelivery(ctx context.Context, ch *amqp.Channel, d amqp.Delivery, handler transport.Handler) {
	var env events.EventEnvelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		t.logger.Errorw("streaming: malformed delivery, routing to dlq", "error", err)
		t.deadLetter(ch, d)

		return
	}

	if err := handler(ctx, env); err != nil {
		t.logger.Warnw("streaming: handler failed", "event_id", env.EventID, "event_type", env.EventType, "error", err)

		deaths := deathCount(d)
		if deaths >= t.retry.MaxRetries {
			t.deadLetter(ch, d)
			return
		}

		_ = d.Nack(false, true)

		return
	}

	_ = d.Ack(false)
}

func deathCount(d amqp.Delivery) int {
	raw, ok := d.Headers["x-death"]
	if !ok {
		return 0
	}

	deaths, ok := raw.([]any)
	if !ok {
		return 0
	}

	return len(deaths)
}

func (t *Transport) deadLetter(ch *amqp.Channel, d amqp.Delivery) {
	err := ch.Publish(t.topology.dlqExchange(), "", false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Body:         d.Body,
	})
	if err != nil {
		t.logger.Errorw("streaming: failed to route to dlq, nacking without requeue", "error", err)
	}

	_ = d.Nack(false, false)
}

// Replay reads envelopes for partition starting at fromOffset from the
// audit log and delivers them to handler directly, bypassing the broker.
// This is how a consumer recovers history a Streaming transport's queues
// have already consumed and acked — RabbitMQ has no concept of rewinding a
// queue, so replay only ever works from the audit log.
func (t *Transport) Replay(ctx context.Context, partition int, fromOffset int64, handler transport.Handler) error {
	if t.audit == nil {
		return fmt.Errorf("streaming: replay requires an audit log")
	}

	const batchSize = 500

	offset := fromOffset

	for {
		records, err := t.audit.Since(ctx, partition, offset, batchSize)
		if err != nil {
			return fmt.Errorf("streaming: read audit log: %w", err)
		}

		if len(records) == 0 {
			return nil
		}

		for _, rec := range records {
			if err := handler(ctx, rec.Envelope); err != nil {
				return fmt.Errorf("streaming: replay handler failed at offset %d: %w", rec.Offset, err)
			}

			offset = rec.Offset + 1
		}
	}
}

func (t *Transport) Close() error {
	return nil
}

type subscription struct {
	cancel context.CancelFunc
}

func (s *subscription) Unsubscribe() error {
	s.cancel()
	return nil
}
