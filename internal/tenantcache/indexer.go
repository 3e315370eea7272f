package tenantcache

import (
	"context"

	"github.com/rustokhq/eventpipeline/internal/events"
)

// InvalidationIndexer is a projection.Indexer that evicts a just-provisioned
// tenant's slug/domain from the negative cache, so a lookup that raced ahead
// of provisioning and got cached as "not found" doesn't keep returning
// ErrNotFound for the rest of its negativeTTL.
type InvalidationIndexer struct {
	cache     *Cache
	broadcast *RedisInvalidator
}

// NewInvalidationIndexer builds an InvalidationIndexer. broadcast may be nil
// in single-replica deployments, in which case only the local cache entry is
// evicted.
func NewInvalidationIndexer(cache *Cache, broadcast *RedisInvalidator) *InvalidationIndexer {
	return &InvalidationIndexer{cache: cache, broadcast: broadcast}
}

func (i *InvalidationIndexer) Name() string { return "tenantcache-invalidation" }

func (i *InvalidationIndexer) Handle(ctx context.Context, env events.EventEnvelope, event events.DomainEvent) error {
	// Decode hands indexers value types; a pointer is accepted as well.
	var created events.TenantCreated

	switch ev := event.(type) {
	case events.TenantCreated:
		created = ev
	case *events.TenantCreated:
		created = *ev
	default:
		return nil
	}

	i.cache.Invalidate(created.Slug)

	if created.Domain != "" {
		i.cache.Invalidate(created.Domain)
	}

	if i.broadcast == nil {
		return nil
	}

	if err := i.broadcast.Broadcast(ctx, created.Slug); err != nil {
		return err
	}

	if created.Domain != "" {
		return i.broadcast.Broadcast(ctx, created.Domain)
	}

	return nil
}
