package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustokhq/eventpipeline/internal/events"
	"github.com/rustokhq/eventpipeline/internal/transport"
	"github.com/rustokhq/eventpipeline/pkg/mlog"
)

func testEnvelope(t *testing.T) events.EventEnvelope {
	t.Helper()

	env, err := events.NewEnvelope(uuid.New(), events.NodeDeleted{NodeID: uuid.New()}, time.Unix(0, 0).UTC(), "")
	require.NoError(t, err)

	return env
}

func TestMemoryTransport_DeliversToSubscriber(t *testing.T) {
	tr := New(&mlog.NoneLogger{}, 8)
	defer tr.Close()

	var (
		mu       sync.Mutex
		received events.EventEnvelope
		got      bool
		wg       sync.WaitGroup
	)

	wg.Add(1)

	_, err := tr.Subscribe(context.Background(), "indexers", func(ctx context.Context, env events.EventEnvelope) error {
		mu.Lock()
		received = env
		got = true
		mu.Unlock()
		wg.Done()

		return nil
	})
	require.NoError(t, err)

	env := testEnvelope(t)
	require.NoError(t, tr.Publish(context.Background(), env, ""))

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, got)
	assert.Equal(t, env.EventID, received.EventID)
}

func TestMemoryTransport_DropsUnderBackpressure(t *testing.T) {
	tr := New(&mlog.NoneLogger{}, 1)
	defer tr.Close()

	block := make(chan struct{})

	_, err := tr.Subscribe(context.Background(), "slow", func(ctx context.Context, env events.EventEnvelope) error {
		<-block
		return nil
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, tr.Publish(context.Background(), testEnvelope(t), ""))
	}

	close(block)

	assert.Greater(t, tr.Dropped(), uint64(0))
}

func TestMemoryTransport_PublishAfterClose(t *testing.T) {
	tr := New(&mlog.NoneLogger{}, 4)
	require.NoError(t, tr.Close())

	err := tr.Publish(context.Background(), testEnvelope(t), "")
	assert.ErrorIs(t, err, transport.ErrClosed)
}
