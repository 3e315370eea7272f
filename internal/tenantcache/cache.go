// Package tenantcache resolves a tenant lookup key (slug or custom domain)
// to a tenant ID with a positive/negative TTL cache in front of the
// authoritative resolver, coalescing concurrent lookups for the same key
// with golang.org/x/sync/singleflight the way a cache stampede guard should.
package tenantcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/rustokhq/eventpipeline/internal/telemetry"
	"github.com/rustokhq/eventpipeline/pkg/mlog"
)

// Resolver looks up the tenant ID for key against the system of record
// (typically a Postgres query). A nil error with uuid.Nil is never valid;
// a Resolver must return ErrNotFound for a key that doesn't resolve.
type Resolver func(ctx context.Context, key string) (uuid.UUID, error)

// ErrNotFound is returned by a Resolver when key has no corresponding
// tenant. Cache treats this distinctly from a transient resolver error: it
// is cached negatively, a transient error is never cached at all.
var ErrNotFound = fmt.Errorf("tenantcache: tenant not found")

type entry struct {
	tenantID  uuid.UUID
	expiresAt time.Time
}

type negativeEntry struct {
	expiresAt time.Time
}

// Cache is a single-flight-coalesced, TTL-bounded tenant resolution cache.
type Cache struct {
	logger   mlog.Logger
	resolve  Resolver
	metrics  *telemetry.Metrics
	positiveTTL time.Duration
	negativeTTL time.Duration

	mu       sync.RWMutex
	positive map[string]entry
	negative map[string]negativeEntry

	group singleflight.Group

	now func() time.Time
}

// Option configures optional Cache behavior.
type Option func(*Cache)

// WithClock overrides the cache's time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New builds a Cache. positiveTTL bounds how long a resolved tenant ID is
// trusted before the next lookup re-resolves; negativeTTL bounds how long a
// "not found" result suppresses re-querying the resolver for the same key.
func New(logger mlog.Logger, resolve Resolver, metrics *telemetry.Metrics, positiveTTL, negativeTTL time.Duration, opts ...Option) *Cache {
	c := &Cache{
		logger:      logger,
		resolve:     resolve,
		metrics:     metrics,
		positiveTTL: positiveTTL,
		negativeTTL: negativeTTL,
		positive:    make(map[string]entry),
		negative:    make(map[string]negativeEntry),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// normalizeKey lower-cases and trims a lookup key so "Acme.example.com" and
// "acme.example.com " hit the same cache entry.
func normalizeKey(key string) string {
	out := make([]byte, 0, len(key))

	trimming := true

	for i := 0; i < len(key); i++ {
		b := key[i]

		if trimming && (b == ' ' || b == '\t') {
			continue
		}

		trimming = false

		if b >= 'A' && b <= 'Z' {
			b += 'a' - 'A'
		}

		out = append(out, b)
	}

	for len(out) > 0 && (out[len(out)-1] == ' ' || out[len(out)-1] == '\t') {
		out = out[:len(out)-1]
	}

	return string(out)
}

// Resolve returns the tenant ID for key, consulting the positive cache,
// then the negative cache, then coalescing concurrent calls for the same
// key through a single resolver invocation.
func (c *Cache) Resolve(ctx context.Context, key string) (uuid.UUID, error) {
	key = normalizeKey(key)
	now := c.now()

	if id, ok := c.lookupPositive(key, now); ok {
		c.metrics.TenantCacheHits.Inc()
		return id, nil
	}

	c.metrics.TenantCacheMisses.Inc()

	if c.lookupNegative(key, now) {
		c.metrics.TenantCacheNegativeHits.Inc()
		return uuid.Nil, ErrNotFound
	}

	c.metrics.TenantCacheNegativeMisses.Inc()

	v, err, shared := c.group.Do(key, func() (any, error) {
		return c.resolve(ctx, key)
	})

	if shared {
		c.metrics.TenantCacheCoalescedRequests.Inc()
	}

	if err != nil {
		if err == ErrNotFound { //nolint:errorlint
			c.storeNegative(key, now)
			return uuid.Nil, ErrNotFound
		}

		return uuid.Nil, fmt.Errorf("tenantcache: resolve %q: %w", key, err)
	}

	id, _ := v.(uuid.UUID)
	c.storePositive(key, id, now)

	return id, nil
}

func (c *Cache) lookupPositive(key string, now time.Time) (uuid.UUID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.positive[key]
	if !ok || now.After(e.expiresAt) {
		return uuid.Nil, false
	}

	return e.tenantID, true
}

func (c *Cache) lookupNegative(key string, now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.negative[key]
	if !ok || now.After(e.expiresAt) {
		return false
	}

	return true
}

func (c *Cache) storePositive(key string, id uuid.UUID, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.negative, key)
	c.positive[key] = entry{tenantID: id, expiresAt: now.Add(c.positiveTTL)}
	c.metrics.TenantCacheEntries.Set(float64(len(c.positive)))
}

func (c *Cache) storeNegative(key string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.negative[key] = negativeEntry{expiresAt: now.Add(c.negativeTTL)}
	c.metrics.TenantCacheNegativeInserts.Inc()
	c.metrics.TenantCacheNegativeEntries.Set(float64(len(c.negative)))
}

// Invalidate evicts key from both the positive and negative cache. Called
// by the projection dispatcher whenever a TenantCreated (or future
// tenant-mutating) event arrives for that key, so a rename or deletion is
// visible without waiting out the TTL.
func (c *Cache) Invalidate(key string) {
	key = normalizeKey(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.positive[key]; ok {
		delete(c.positive, key)
		c.metrics.TenantCacheEvictions.Inc()
		c.metrics.TenantCacheEntries.Set(float64(len(c.positive)))
	}

	if _, ok := c.negative[key]; ok {
		delete(c.negative, key)
		c.metrics.TenantCacheNegativeEvictions.Inc()
		c.metrics.TenantCacheNegativeEntries.Set(float64(len(c.negative)))
	}
}
