package consistency

import (
	"context"
	"fmt"

	"github.com/bxcodec/dbresolver/v2"
)

// RBACAuditRepository runs the three SQL audit queries §4.10 names:
// users with no effective role, orphan role/permission rows, and content
// index rows that are missing or stale relative to their node's
// updated_at. It reads from the replica side of db, the same split
// outbox.Repository.Stats and ListDLQ use, since an audit sweep is a report,
// never a write.
type RBACAuditRepository struct {
	db dbresolver.DB
}

// NewRBACAuditRepository builds an RBACAuditRepository over db.
func NewRBACAuditRepository(db dbresolver.DB) *RBACAuditRepository {
	return &RBACAuditRepository{db: db}
}

// usersWithoutRolesQuery counts users who have no row in user_roles at
// all — an account that can authenticate but can do nothing, usually left
// behind by a provisioning step that created the user but never granted a
// default role.
const usersWithoutRolesQuery = `
SELECT count(*) FROM users u
WHERE NOT EXISTS (SELECT 1 FROM user_roles ur WHERE ur.user_id = u.id)`

// CountUsersWithoutRoles implements audit (a).
func (r *RBACAuditRepository) CountUsersWithoutRoles(ctx context.Context) (int, error) {
	return r.scalar(ctx, usersWithoutRolesQuery)
}

// orphanRoleAssignmentsQuery counts user_roles rows whose role_id no
// longer has a matching row in roles (the role was deleted without first
// revoking every assignment) or whose user_id no longer has a matching row
// in users (the user was deleted without cascading the assignment).
const orphanRoleAssignmentsQuery = `
SELECT count(*) FROM user_roles ur
WHERE NOT EXISTS (SELECT 1 FROM roles r WHERE r.id = ur.role_id)
   OR NOT EXISTS (SELECT 1 FROM users u WHERE u.id = ur.user_id)`

// CountOrphanRoleAssignments implements audit (b).
func (r *RBACAuditRepository) CountOrphanRoleAssignments(ctx context.Context) (int, error) {
	return r.scalar(ctx, orphanRoleAssignmentsQuery)
}

// staleContentIndexQuery counts nodes whose content_index_watermark row is
// either absent (never indexed) or older than the node's own updated_at
// (indexed, but stale relative to the last write) — the SQL-side mirror of
// the Mongo content_documents collection this module otherwise treats as
// opaque, kept only to answer "is this node's index current" without a
// cross-store join. A relay/projection path with no gap would keep this
// watermark in lockstep with every update; rows that show up here are
// exactly the ones a backfill's reindex_all call needs to revisit.
const staleContentIndexQuery = `
SELECT count(*) FROM nodes n
LEFT JOIN content_index_watermark w ON w.node_id = n.id
WHERE n.deleted_at IS NULL
  AND (w.node_id IS NULL OR w.indexed_at < n.updated_at)`

// CountStaleContentIndex implements audit (c).
func (r *RBACAuditRepository) CountStaleContentIndex(ctx context.Context) (int, error) {
	return r.scalar(ctx, staleContentIndexQuery)
}

// StaleContentIndexNodeIDs returns the node ids audit (c) flagged, up to
// limit, for the backfill command to feed into ContentIndexer.IndexOne.
func (r *RBACAuditRepository) StaleContentIndexNodeIDs(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT n.id FROM nodes n
LEFT JOIN content_index_watermark w ON w.node_id = n.id
WHERE n.deleted_at IS NULL
  AND (w.node_id IS NULL OR w.indexed_at < n.updated_at)
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("consistency: query stale content index node ids: %w", err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("consistency: scan stale content index node id: %w", err)
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *RBACAuditRepository) scalar(ctx context.Context, query string) (int, error) {
	var n int

	if err := r.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("consistency: run audit query: %w", err)
	}

	return n, nil
}
