package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the storage contract the relay worker, event bus, and
// admin/backfill surface depend on. The postgres implementation under
// internal/outbox/postgres satisfies it with SELECT ... FOR UPDATE SKIP
// LOCKED claim semantics; tests substitute an in-memory fake.
type Repository interface {
	// Append inserts rec. Called inside the same *sql.Tx as the domain
	// write that produced it — callers pass a transaction-scoped
	// Repository (see outbox/postgres.TxRepository) so this never opens its own.
	Append(ctx context.Context, rec Record) error

	// ClaimBatch atomically moves up to limit PENDING (or FAILED, retry
	// eligible) rows with AvailableAt <= now to PROCESSING, stamping
	// ClaimedBy/ClaimedAt, and returns them. Implemented with SELECT ...
	// FOR UPDATE SKIP LOCKED so concurrent relay workers never claim the
	// same row twice.
	ClaimBatch(ctx context.Context, workerID string, limit int, now time.Time) ([]Record, error)

	// MarkSucceeded transitions id from PROCESSING to PUBLISHED.
	MarkSucceeded(ctx context.Context, id uuid.UUID, now time.Time) error

	// MarkFailed transitions id from PROCESSING to FAILED (or straight to
	// DLQ when retries are exhausted), recording errMsg and scheduling the
	// next AvailableAt per the caller's backoff policy.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, nextAvailableAt time.Time, now time.Time) error

	// ReclaimStale moves PROCESSING rows whose ClaimedAt is older than
	// olderThan back to FAILED, so a crashed worker's claims eventually
	// become visible to another worker instead of being stuck forever.
	ReclaimStale(ctx context.Context, olderThan time.Time, now time.Time) (int, error)

	// ListDLQ returns up to limit rows in the terminal DLQ state, most
	// recently updated first, for the admin inspection endpoint.
	ListDLQ(ctx context.Context, tenantID uuid.UUID, limit int) ([]Record, error)

	// Requeue transitions a DLQ row back to PENDING with a reset retry
	// counter, for manual operator-triggered replay.
	Requeue(ctx context.Context, id uuid.UUID, now time.Time) error

	// Stats returns counts of rows per status for the backlog/in-flight
	// gauges, scoped to tenantID when non-nil.
	Stats(ctx context.Context, tenantID *uuid.UUID) (Stats, error)
}

// Stats summarizes row counts by status for metrics and the admin surface.
type Stats struct {
	Pending    int
	Processing int
	Published  int
	Failed     int
	DLQ        int
}
