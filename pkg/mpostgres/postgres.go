// Package mpostgres wires the pipeline into PostgreSQL the way the teacher's
// common/mpostgres does: a primary/replica pair behind a single
// dbresolver.DB, opened once and shared across the outbox store and the
// consistency checker.
package mpostgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/bxcodec/dbresolver/v2"
)

// Connection is a hub dealing with a primary/replica PostgreSQL pair.
// Zero-valued until Connect succeeds; callers hold one Connection per
// process and pass its DB to every repository constructor.
type Connection struct {
	ConnectionStringPrimary string
	ConnectionStringReplica string
	MaxOpenConns            int
	MaxIdleConns            int

	DB        *dbresolver.DB
	Connected bool
}

// Connect opens the primary and replica pools and wraps them in a
// round-robin dbresolver.DB. The replica falls back to the primary
// connection string when none is configured, so a single-instance deployment
// doesn't need two DSNs.
func (c *Connection) Connect(ctx context.Context) error {
	replicaDSN := c.ConnectionStringReplica
	if replicaDSN == "" {
		replicaDSN = c.ConnectionStringPrimary
	}

	primary, err := sql.Open("pgx", c.ConnectionStringPrimary)
	if err != nil {
		return fmt.Errorf("open primary postgres connection: %w", err)
	}

	replica, err := sql.Open("pgx", replicaDSN)
	if err != nil {
		return fmt.Errorf("open replica postgres connection: %w", err)
	}

	for _, pool := range []*sql.DB{primary, replica} {
		if c.MaxOpenConns > 0 {
			pool.SetMaxOpenConns(c.MaxOpenConns)
		}

		if c.MaxIdleConns > 0 {
			pool.SetMaxIdleConns(c.MaxIdleConns)
		}
	}

	if err := primary.PingContext(ctx); err != nil {
		return fmt.Errorf("ping primary postgres: %w", err)
	}

	resolved := dbresolver.New(
		dbresolver.WithPrimaryDBs(primary),
		dbresolver.WithReplicaDBs(replica),
		dbresolver.WithLoadBalancer(dbresolver.RoundRobinLB),
	)

	c.DB = &resolved
	c.Connected = true

	return nil
}

// Close tears down both pools.
func (c *Connection) Close() error {
	if c.DB == nil {
		return nil
	}

	return (*c.DB).Close()
}
