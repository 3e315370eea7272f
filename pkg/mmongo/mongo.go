// Package mmongo wires the indexer read models into MongoDB the way the
// teacher's common/mmongo wires the platform into the mongo driver.
package mmongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rustokhq/eventpipeline/pkg/mlog"
)

// Connection is a hub dealing with a MongoDB client and database handle.
type Connection struct {
	ConnectionString string
	Database         string
	Logger           mlog.Logger

	Client    *mongo.Client
	Connected bool
}

// Connect dials mongo and verifies connectivity with a ping.
func (c *Connection) Connect(ctx context.Context) error {
	c.Logger.Info("connecting to mongodb...")

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.ConnectionString))
	if err != nil {
		return fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping mongodb: %w", err)
	}

	c.Client = client
	c.Connected = true

	c.Logger.Info("connected to mongodb")

	return nil
}

// DB returns the configured database handle, connecting first if necessary.
func (c *Connection) DB(ctx context.Context) (*mongo.Database, error) {
	if !c.Connected {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return c.Client.Database(c.Database), nil
}

// Close disconnects the client.
func (c *Connection) Close(ctx context.Context) error {
	if c.Client == nil {
		return nil
	}

	return c.Client.Disconnect(ctx)
}
