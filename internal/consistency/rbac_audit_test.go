package consistency

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/stretchr/testify/require"
)

func newMockRBACRepo(t *testing.T) (*RBACAuditRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	resolver := dbresolver.New(dbresolver.WithPrimaryDBs(db), dbresolver.WithReplicaDBs(db))

	return NewRBACAuditRepository(resolver), mock
}

func TestRBACAuditRepository_CountUsersWithoutRoles(t *testing.T) {
	repo, mock := newMockRBACRepo(t)

	mock.ExpectQuery("SELECT count").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := repo.CountUsersWithoutRoles(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRBACAuditRepository_CountOrphanRoleAssignments(t *testing.T) {
	repo, mock := newMockRBACRepo(t)

	mock.ExpectQuery("SELECT count").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	n, err := repo.CountOrphanRoleAssignments(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRBACAuditRepository_CountStaleContentIndex(t *testing.T) {
	repo, mock := newMockRBACRepo(t)

	mock.ExpectQuery("SELECT count").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := repo.CountStaleContentIndex(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRBACAuditRepository_StaleContentIndexNodeIDs(t *testing.T) {
	repo, mock := newMockRBACRepo(t)

	mock.ExpectQuery("SELECT n.id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("node-1").AddRow("node-2"))

	ids, err := repo.StaleContentIndexNodeIDs(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, []string{"node-1", "node-2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
