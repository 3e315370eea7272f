// Package consistency backs the streaming transport's replay log and runs
// the periodic reconciliation job that finds outbox rows stuck outside the
// happy path, the way the teacher's reconciliation jobs sweep for orphaned
// transaction state on a ticker.
package consistency

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/bxcodec/dbresolver/v2"

	"github.com/rustokhq/eventpipeline/internal/events"
	"github.com/rustokhq/eventpipeline/internal/transport/streaming"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// AuditRepository implements streaming.AuditLog over a postgres table. Each
// partition has its own monotonically increasing offset, assigned under a
// per-partition advisory lock so concurrent publishers never collide.
type AuditRepository struct {
	db dbresolver.DB
}

// NewAuditRepository builds an AuditRepository over db.
func NewAuditRepository(db dbresolver.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// appendQuery assigns the next offset for partition. Append runs it inside a
// transaction holding the partition's advisory lock (appendLockQuery), so
// concurrent publishers serialize on the lock rather than racing to compute
// the same MAX(offset_seq).
const appendQuery = `
INSERT INTO stream_audit_log (partition, offset_seq, event_id, event_type, tenant_id, occurred_at, payload)
SELECT $1, COALESCE(MAX(offset_seq), -1) + 1, $2, $3, $4, $5, $6
FROM stream_audit_log
WHERE partition = $1
RETURNING offset_seq`

// appendLockQuery takes a transaction-scoped advisory lock keyed on the
// partition; it is released when the append transaction ends.
const appendLockQuery = `SELECT pg_advisory_xact_lock(hashtext('stream_audit_log'), $1)`

// Append inserts env as the next offset for partition and returns the
// assigned offset.
func (r *AuditRepository) Append(ctx context.Context, partition int, env events.EventEnvelope) (int64, error) {
	var offset int64

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("consistency: begin audit append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, appendLockQuery, partition); err != nil {
		return 0, fmt.Errorf("consistency: lock audit partition: %w", err)
	}

	row := tx.QueryRowContext(ctx, appendQuery, partition, env.EventID, env.EventType, env.TenantID, env.OccurredAt, []byte(env.Payload))
	if err := row.Scan(&offset); err != nil {
		return 0, fmt.Errorf("consistency: append audit row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("consistency: commit audit append: %w", err)
	}

	return offset, nil
}

// Since returns up to limit audit records for partition starting at
// fromOffset, ordered by offset ascending.
func (r *AuditRepository) Since(ctx context.Context, partition int, fromOffset int64, limit int) ([]streaming.AuditRecord, error) {
	query, args, err := psql.Select("offset_seq", "event_id", "event_type", "tenant_id", "occurred_at", "payload").
		From("stream_audit_log").
		Where(sq.Eq{"partition": partition}).
		Where(sq.GtOrEq{"offset_seq": fromOffset}).
		OrderBy("offset_seq ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("consistency: build since query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("consistency: query audit log: %w", err)
	}
	defer rows.Close()

	var out []streaming.AuditRecord

	for rows.Next() {
		var (
			rec     streaming.AuditRecord
			payload []byte
		)

		if err := rows.Scan(&rec.Offset, &rec.Envelope.EventID, &rec.Envelope.EventType, &rec.Envelope.TenantID, &rec.Envelope.OccurredAt, &payload); err != nil {
			return nil, fmt.Errorf("consistency: scan audit row: %w", err)
		}

		rec.Envelope.Payload = payload
		out = append(out, rec)
	}

	return out, rows.Err()
}
