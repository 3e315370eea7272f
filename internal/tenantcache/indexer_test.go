package tenantcache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustokhq/eventpipeline/internal/events"
	"github.com/rustokhq/eventpipeline/internal/telemetry"
	"github.com/rustokhq/eventpipeline/pkg/mlog"
)

func TestInvalidationIndexer_EvictsNegativeEntryOnTenantCreated(t *testing.T) {
	resolveCalls := 0
	resolver := func(ctx context.Context, key string) (uuid.UUID, error) {
		resolveCalls++
		return uuid.New(), nil
	}

	cache := New(&mlog.NoneLogger{}, resolver, telemetry.NewMetrics(), time.Minute, time.Minute)

	cache.storeNegative("acme", cache.now())
	assert.True(t, cache.lookupNegative("acme", cache.now()))

	indexer := NewInvalidationIndexer(cache, nil)

	created := &events.TenantCreated{NewTenantID: uuid.New(), Slug: "acme"}
	require.NoError(t, indexer.Handle(context.Background(), events.EventEnvelope{}, created))

	assert.False(t, cache.lookupNegative("acme", cache.now()))
}

func TestInvalidationIndexer_IgnoresOtherEventTypes(t *testing.T) {
	cache := New(&mlog.NoneLogger{}, func(ctx context.Context, key string) (uuid.UUID, error) {
		return uuid.Nil, ErrNotFound
	}, telemetry.NewMetrics(), time.Minute, time.Minute)

	indexer := NewInvalidationIndexer(cache, nil)

	err := indexer.Handle(context.Background(), events.EventEnvelope{}, &events.ReindexRequested{Indexer: "content"})
	require.NoError(t, err)
}

func TestInvalidationIndexer_Name(t *testing.T) {
	indexer := NewInvalidationIndexer(nil, nil)
	assert.Equal(t, "tenantcache-invalidation", indexer.Name())
}
