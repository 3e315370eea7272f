package tenantcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustokhq/eventpipeline/internal/telemetry"
	"github.com/rustokhq/eventpipeline/pkg/mlog"
)

func TestCache_Resolve_CachesPositiveResult(t *testing.T) {
	var calls atomic.Int32

	wantID := uuid.New()
	resolver := func(ctx context.Context, key string) (uuid.UUID, error) {
		calls.Add(1)
		return wantID, nil
	}

	c := New(&mlog.NoneLogger{}, resolver, telemetry.NewMetrics(), time.Minute, time.Minute)

	id1, err := c.Resolve(context.Background(), "Acme")
	require.NoError(t, err)
	assert.Equal(t, wantID, id1)

	id2, err := c.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, wantID, id2)

	assert.Equal(t, int32(1), calls.Load())
}

func TestCache_Resolve_CachesNegativeResult(t *testing.T) {
	var calls atomic.Int32

	resolver := func(ctx context.Context, key string) (uuid.UUID, error) {
		calls.Add(1)
		return uuid.Nil, ErrNotFound
	}

	c := New(&mlog.NoneLogger{}, resolver, telemetry.NewMetrics(), time.Minute, time.Minute)

	_, err := c.Resolve(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Resolve(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, int32(1), calls.Load())
}

func TestCache_Resolve_CoalescesConcurrentCalls(t *testing.T) {
	var calls atomic.Int32

	release := make(chan struct{})
	wantID := uuid.New()

	resolver := func(ctx context.Context, key string) (uuid.UUID, error) {
		calls.Add(1)
		<-release
		return wantID, nil
	}

	c := New(&mlog.NoneLogger{}, resolver, telemetry.NewMetrics(), time.Minute, time.Minute)

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			id, err := c.Resolve(context.Background(), "acme")
			assert.NoError(t, err)
			assert.Equal(t, wantID, id)
		}()
	}

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestCache_Invalidate_ClearsBothCaches(t *testing.T) {
	wantID := uuid.New()
	resolver := func(ctx context.Context, key string) (uuid.UUID, error) { return wantID, nil }

	c := New(&mlog.NoneLogger{}, resolver, telemetry.NewMetrics(), time.Hour, time.Hour)

	_, err := c.Resolve(context.Background(), "acme")
	require.NoError(t, err)

	c.Invalidate("acme")

	_, ok := c.lookupPositive("acme", time.Now())
	assert.False(t, ok)
}

func TestCache_Resolve_ExpiresAfterTTL(t *testing.T) {
	var calls atomic.Int32

	wantID := uuid.New()
	resolver := func(ctx context.Context, key string) (uuid.UUID, error) {
		calls.Add(1)
		return wantID, nil
	}

	now := time.Now()
	clock := &now

	c := New(&mlog.NoneLogger{}, resolver, telemetry.NewMetrics(), time.Second, time.Second, WithClock(func() time.Time { return *clock }))

	_, err := c.Resolve(context.Background(), "acme")
	require.NoError(t, err)

	advanced := now.Add(2 * time.Second)
	clock = &advanced

	_, err = c.Resolve(context.Background(), "acme")
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}
