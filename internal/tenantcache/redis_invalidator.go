package tenantcache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rustokhq/eventpipeline/pkg/mlog"
)

// invalidationChannel is the Redis Pub/Sub channel every process instance
// subscribes to, so a tenant rename/deletion invalidates every replica's
// local cache instead of only the replica that handled the write.
const invalidationChannel = "eventpipeline:tenantcache:invalidate"

// RedisInvalidator broadcasts and receives cross-replica cache invalidation
// messages over Redis Pub/Sub. The positive/negative cache itself stays
// entirely in-process (see Cache); this only carries the signal that tells
// every other replica to drop its own copy of a key.
type RedisInvalidator struct {
	client *redis.Client
	logger mlog.Logger
}

// NewRedisInvalidator wraps client for cross-replica invalidation broadcast.
func NewRedisInvalidator(client *redis.Client, logger mlog.Logger) *RedisInvalidator {
	return &RedisInvalidator{client: client, logger: logger}
}

// Broadcast publishes key so every subscribed replica's cache evicts it.
// The local cache is not touched here; callers invalidate their own copy
// separately (Publish doesn't loop back to its own subscriber reliably
// under redis-server restarts).
func (r *RedisInvalidator) Broadcast(ctx context.Context, key string) error {
	if err := r.client.Publish(ctx, invalidationChannel, normalizeKey(key)).Err(); err != nil {
		return fmt.Errorf("tenantcache: publish invalidation: %w", err)
	}

	return nil
}

// Listen subscribes to the invalidation channel and evicts key from cache
// for every message received, until ctx is canceled.
func (r *RedisInvalidator) Listen(ctx context.Context, cache *Cache) error {
	sub := r.client.Subscribe(ctx, invalidationChannel)
	defer sub.Close()

	ch := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			cache.Invalidate(msg.Payload)
			r.logger.Debugw("tenantcache: invalidated from peer", "key", msg.Payload)
		}
	}
}
