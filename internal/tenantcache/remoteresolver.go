package tenantcache

import (
	"context"
	"fmt"
	"time"

	libLog "github.com/LerianStudio/lib-commons/v3/commons/log"
	tmclient "github.com/LerianStudio/lib-commons/v3/commons/tenant-manager/client"
	tmcore "github.com/LerianStudio/lib-commons/v3/commons/tenant-manager/core"
	"github.com/google/uuid"

	"github.com/rustokhq/eventpipeline/pkg/mlog"
)

// RemoteResolver answers Cache lookups against a standalone tenant-manager
// service instead of a local SQL table, the way the teacher's ledger and
// CRM components resolve a tenant through tmclient.Client rather than
// querying their own schema directly. It is a Resolver, so it drops in
// wherever the SQL-backed resolveTenant does: Cache itself stays unaware
// of which system of record is behind it.
type RemoteResolver struct {
	client *tmclient.Client
}

// RemoteResolverOption configures optional RemoteResolver behavior.
type RemoteResolverOption func(*[]tmclient.ClientOption)

// WithCircuitBreaker trips the underlying tmclient.Client's circuit breaker
// after failureThreshold consecutive errors, reopening it after timeout —
// the same guard the teacher applies so one flaky tenant-manager deploy
// can't take down every tenant lookup in the caller.
func WithCircuitBreaker(failureThreshold int, timeout time.Duration) RemoteResolverOption {
	return func(opts *[]tmclient.ClientOption) {
		*opts = append(*opts, tmclient.WithCircuitBreaker(failureThreshold, timeout))
	}
}

// WithRequestTimeout bounds a single resolve call against the tenant
// manager, separately from the circuit breaker's failure-counting window.
func WithRequestTimeout(timeout time.Duration) RemoteResolverOption {
	return func(opts *[]tmclient.ClientOption) {
		*opts = append(*opts, tmclient.WithTimeout(timeout))
	}
}

// NewRemoteResolver builds a RemoteResolver that calls the tenant-manager
// service at baseURL. logger is adapted to the narrower libLog.Logger
// contract tmclient.Client expects, the same bridging the teacher's own
// callers (onboarding, transaction) do when handing their mlog-equivalent
// logger down into lib-commons.
func NewRemoteResolver(baseURL string, logger mlog.Logger, opts ...RemoteResolverOption) *RemoteResolver {
	var clientOpts []tmclient.ClientOption

	for _, opt := range opts {
		opt(&clientOpts)
	}

	return &RemoteResolver{
		client: tmclient.NewClient(baseURL, libLogAdapter{Logger: logger}, clientOpts...),
	}
}

// Resolve implements Resolver by asking the tenant-manager service to
// resolve key (a slug or custom domain) to a tenant ID. A tenant that
// exists but has no provisioned schema is treated the same as "not found"
// from the cache's point of view: there is nothing a caller can route
// traffic to either way.
func (r *RemoteResolver) Resolve(ctx context.Context, key string) (uuid.UUID, error) {
	tenant, err := r.client.ResolveTenant(ctx, key)
	if err != nil {
		if tmcore.IsTenantNotProvisionedError(err) {
			return uuid.Nil, ErrNotFound
		}

		return uuid.Nil, fmt.Errorf("tenantcache: remote resolve %q: %w", key, err)
	}

	id, err := uuid.Parse(tenant.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("tenantcache: parse tenant id %q: %w", tenant.ID, err)
	}

	return id, nil
}

// libLogAdapter bridges mlog.Logger to lib-commons's libLog.Logger
// contract, since tenant-manager client takes the latter directly rather
// than depending on this module's own logging interface.
type libLogAdapter struct {
	mlog.Logger
}

func (a libLogAdapter) WithFields(fields ...any) libLog.Logger {
	return libLogAdapter{Logger: a.Logger.WithFields(fields...)}
}
