package streaming

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestTransport_PartitionFor_StableForSameKey(t *testing.T) {
	tr := &Transport{topology: Topology{Stream: "content", PartitionCount: 8}}

	a := tr.partitionFor("node-123")
	b := tr.partitionFor("node-123")

	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a, 0)
	assert.Less(t, a, 8)
}

func TestTransport_PartitionFor_EmptyKeyGoesToZero(t *testing.T) {
	tr := &Transport{topology: Topology{Stream: "content", PartitionCount: 8}}

	assert.Equal(t, 0, tr.partitionFor(""))
}

func TestTransport_PartitionFor_SpreadsAcrossPartitions(t *testing.T) {
	tr := &Transport{topology: Topology{Stream: "content", PartitionCount: 4}}

	seen := map[int]bool{}
	for i := 0; i < 50; i++ {
		key := string(rune('a' + i%26))
		seen[tr.partitionFor(key)] = true
	}

	assert.Greater(t, len(seen), 1)
}

func TestDeathCount_NoHeader(t *testing.T) {
	d := amqp.Delivery{}
	assert.Equal(t, 0, deathCount(d))
}

func TestDeathCount_WithHeader(t *testing.T) {
	d := amqp.Delivery{Headers: amqp.Table{"x-death": []any{map[string]any{}, map[string]any{}}}}
	assert.Equal(t, 2, deathCount(d))
}

func TestTopology_QueueNames(t *testing.T) {
	topo := Topology{Stream: "content", PartitionCount: 4}

	assert.Equal(t, "rustok.content", topo.exchange())
	assert.Equal(t, "rustok.content.dlq", topo.dlqExchange())
	assert.Equal(t, "partition.2", topo.partitionKey(2))
	assert.Equal(t, "rustok.content.indexers", topo.groupQueue("indexers"))
}
