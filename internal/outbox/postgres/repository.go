// Package postgres implements outbox.Repository against PostgreSQL using
// the teacher's dbresolver-backed connection and squirrel for everything
// except the claim query, which needs a CTE squirrel can't express cleanly.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/google/uuid"

	"github.com/rustokhq/eventpipeline/internal/outbox"
	"github.com/rustokhq/eventpipeline/pkg/apperr"
)

const tableName = "outbox_records"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository is a dbresolver-backed outbox.Repository. A DB (rather than a
// bare *sql.DB) lets writes land on the primary while Stats/ListDLQ read
// from a replica.
type Repository struct {
	db dbresolver.DB
}

// New builds a Repository over db.
func New(db dbresolver.DB) *Repository {
	return &Repository{db: db}
}

// TxRepository binds a Repository's Append to an in-flight *sql.Tx so the
// outbox insert and the caller's domain write commit atomically. Obtained
// via WithTx from the caller's own transaction.
type TxRepository struct {
	tx *sql.Tx
}

// WithTx returns a Repository scoped to tx, used by the event bus's
// publish_in_tx path.
func WithTx(tx *sql.Tx) *TxRepository {
	return &TxRepository{tx: tx}
}

// Append inserts rec within the bound transaction.
func (r *TxRepository) Append(ctx context.Context, rec outbox.Record) error {
	query, args, err := psql.Insert(tableName).
		Columns("id", "tenant_id", "aggregate_id", "event_type", "schema_version", "payload",
			"status", "retry_count", "max_retries", "available_at", "created_at", "updated_at").
		Values(rec.ID, rec.TenantID, rec.AggregateID, rec.EventType, rec.SchemaVersion, rec.Payload,
			rec.Status, rec.RetryCount, rec.MaxRetries, rec.AvailableAt, rec.CreatedAt, rec.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build outbox insert: %w", err)
	}

	if _, err := r.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert outbox record: %w", err)
	}

	return nil
}

// Append inserts rec in its own implicit transaction. Prefer TxRepository
// via WithTx whenever the insert must be atomic with a domain write.
func (r *Repository) Append(ctx context.Context, rec outbox.Record) error {
	query, args, err := psql.Insert(tableName).
		Columns("id", "tenant_id", "aggregate_id", "event_type", "schema_version", "payload",
			"status", "retry_count", "max_retries", "available_at", "created_at", "updated_at").
		Values(rec.ID, rec.TenantID, rec.AggregateID, rec.EventType, rec.SchemaVersion, rec.Payload,
			rec.Status, rec.RetryCount, rec.MaxRetries, rec.AvailableAt, rec.CreatedAt, rec.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build outbox insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert outbox record: %w", err)
	}

	return nil
}

// AutoTxRepository wraps db with a short-lived transaction opened and
// committed around each Append call, for a caller with no transaction of
// its own to bind to — the event bus's non-transactional publish path
// through the outbox transport.
type AutoTxRepository struct {
	db dbresolver.DB
}

// WithAutoTx builds an AutoTxRepository over db.
func WithAutoTx(db dbresolver.DB) *AutoTxRepository {
	return &AutoTxRepository{db: db}
}

// Append opens a transaction, inserts rec, and commits.
func (r *AutoTxRepository) Append(ctx context.Context, rec outbox.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outbox append transaction: %w", err)
	}

	if err := WithTx(tx).Append(ctx, rec); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outbox append transaction: %w", err)
	}

	return nil
}

// ClaimBatch claims up to limit eligible rows for workerID using a
// SELECT ... FOR UPDATE SKIP LOCKED CTE, so concurrent relay workers never
// observe or claim the same row twice.
func (r *Repository) ClaimBatch(ctx context.Context, workerID string, limit int, now time.Time) ([]outbox.Record, error) {
	const claimSQL = `
WITH claimed AS (
	SELECT id FROM ` + tableName + `
	WHERE status IN ('PENDING', 'FAILED') AND available_at <= $1
	ORDER BY available_at
	LIMIT $2
	FOR UPDATE SKIP LOCKED
)
UPDATE ` + tableName + ` o
SET status = 'PROCESSING', claimed_by = $3, claimed_at = $1, updated_at = $1
FROM claimed
WHERE o.id = claimed.id
RETURNING o.id, o.tenant_id, o.aggregate_id, o.event_type, o.schema_version, o.payload,
	o.status, o.retry_count, o.max_retries, o.last_error, o.available_at, o.claimed_by,
	o.claimed_at, o.created_at, o.updated_at`

	rows, err := r.db.QueryContext(ctx, claimSQL, now, limit, workerID)
	if err != nil {
		return nil, fmt.Errorf("claim outbox batch: %w", err)
	}
	defer rows.Close()

	var out []outbox.Record

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claimed outbox record: %w", err)
		}

		out = append(out, rec)
	}

	return out, rows.Err()
}

// MarkSucceeded transitions id to PUBLISHED.
func (r *Repository) MarkSucceeded(ctx context.Context, id uuid.UUID, now time.Time) error {
	query, args, err := psql.Update(tableName).
		Set("status", outbox.StatusPublished).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": outbox.StatusProcessing}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark succeeded: %w", err)
	}

	return r.execExpectingRow(ctx, query, args, id)
}

// MarkFailed transitions id to FAILED, recording errMsg and scheduling the
// next visibility window, then moves it on to DLQ when the incremented
// retry_count has reached max_retries.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, nextAvailableAt time.Time, now time.Time) error {
	query, args, err := psql.Update(tableName).
		Set("status", outbox.StatusFailed).
		Set("last_error", errMsg).
		Set("retry_count", sq.Expr("retry_count + 1")).
		Set("available_at", nextAvailableAt).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": outbox.StatusProcessing}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark failed: %w", err)
	}

	if err := r.execExpectingRow(ctx, query, args, id); err != nil {
		return err
	}

	// A row whose retry budget is now exhausted moves straight to DLQ; this
	// mirrors FAILED->DLQ in outbox.ValidOutboxTransitions and keeps the
	// relay worker's call site a single MarkFailed call regardless of which
	// edge actually applies.
	dlqQuery, dlqArgs, err := psql.Update(tableName).
		Set("status", outbox.StatusDLQ).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": outbox.StatusFailed}).
		Where("retry_count >= max_retries").
		ToSql()
	if err != nil {
		return fmt.Errorf("build dlq transition: %w", err)
	}

	_, err = r.db.ExecContext(ctx, dlqQuery, dlqArgs...)

	return err
}

// ReclaimStale moves PROCESSING rows claimed before olderThan back to
// FAILED so another worker can pick them up after a crash.
func (r *Repository) ReclaimStale(ctx context.Context, olderThan time.Time, now time.Time) (int, error) {
	query, args, err := psql.Update(tableName).
		Set("status", outbox.StatusFailed).
		Set("last_error", "reclaimed: stale PROCESSING claim").
		Set("updated_at", now).
		Where(sq.Eq{"status": outbox.StatusProcessing}).
		Where(sq.Lt{"claimed_at": olderThan}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build reclaim stale: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale outbox rows: %w", err)
	}

	n, err := res.RowsAffected()

	return int(n), err
}

// ListDLQ returns up to limit DLQ rows, most recently updated first.
func (r *Repository) ListDLQ(ctx context.Context, tenantID uuid.UUID, limit int) ([]outbox.Record, error) {
	builder := psql.Select("id", "tenant_id", "aggregate_id", "event_type", "schema_version", "payload",
		"status", "retry_count", "max_retries", "last_error", "available_at", "claimed_by",
		"claimed_at", "created_at", "updated_at").
		From(tableName).
		Where(sq.Eq{"status": outbox.StatusDLQ}).
		OrderBy("updated_at DESC").
		Limit(uint64(limit))

	if tenantID != uuid.Nil {
		builder = builder.Where(sq.Eq{"tenant_id": tenantID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list dlq: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list dlq rows: %w", err)
	}
	defer rows.Close()

	var out []outbox.Record

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dlq record: %w", err)
		}

		out = append(out, rec)
	}

	return out, rows.Err()
}

// Requeue moves a DLQ row back to PENDING with its retry counter reset, for
// operator-triggered manual replay.
func (r *Repository) Requeue(ctx context.Context, id uuid.UUID, now time.Time) error {
	query, args, err := psql.Update(tableName).
		Set("status", outbox.StatusPending).
		Set("retry_count", 0).
		Set("last_error", "").
		Set("available_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": outbox.StatusDLQ}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build requeue: %w", err)
	}

	return r.execExpectingRow(ctx, query, args, id)
}

// Stats returns row counts grouped by status, optionally scoped to a tenant.
func (r *Repository) Stats(ctx context.Context, tenantID *uuid.UUID) (outbox.Stats, error) {
	builder := psql.Select("status", "count(*)").From(tableName).GroupBy("status")

	if tenantID != nil {
		builder = builder.Where(sq.Eq{"tenant_id": *tenantID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return outbox.Stats{}, fmt.Errorf("build stats query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return outbox.Stats{}, fmt.Errorf("query outbox stats: %w", err)
	}
	defer rows.Close()

	var stats outbox.Stats

	for rows.Next() {
		var (
			status string
			count  int
		)

		if err := rows.Scan(&status, &count); err != nil {
			return outbox.Stats{}, fmt.Errorf("scan outbox stats row: %w", err)
		}

		switch outbox.OutboxStatus(status) {
		case outbox.StatusPending:
			stats.Pending = count
		case outbox.StatusProcessing:
			stats.Processing = count
		case outbox.StatusPublished:
			stats.Published = count
		case outbox.StatusFailed:
			stats.Failed = count
		case outbox.StatusDLQ:
			stats.DLQ = count
		}
	}

	return stats, rows.Err()
}

func (r *Repository) execExpectingRow(ctx context.Context, query string, args []any, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("execute outbox update: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return apperr.ConflictError{
			EntityType: "outbox_record",
			Message:    fmt.Sprintf("outbox record %s is not in the expected state for this transition", id),
		}
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (outbox.Record, error) {
	var (
		rec       outbox.Record
		lastError sql.NullString
		claimedBy sql.NullString
		claimedAt sql.NullTime
	)

	err := row.Scan(&rec.ID, &rec.TenantID, &rec.AggregateID, &rec.EventType, &rec.SchemaVersion, &rec.Payload,
		&rec.Status, &rec.RetryCount, &rec.MaxRetries, &lastError, &rec.AvailableAt, &claimedBy,
		&claimedAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return outbox.Record{}, err
	}

	rec.LastError = lastError.String
	rec.ClaimedBy = claimedBy.String

	if claimedAt.Valid {
		rec.ClaimedAt = &claimedAt.Time
	}

	return rec, nil
}

// ErrNoRows is returned by callers that expect sql.ErrNoRows to surface as a
// typed not-found error instead.
var ErrNoRows = errors.New("postgres: no rows")
