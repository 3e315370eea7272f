// Package mredis wires the tenant resolution cache into Redis the way the
// teacher's common/mredis wires the platform into go-redis.
package mredis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rustokhq/eventpipeline/pkg/mlog"
)

// Connection is a hub dealing with a redis.Client.
type Connection struct {
	ConnectionString string
	Logger           mlog.Logger

	Client    *redis.Client
	Connected bool
}

// Connect parses the connection string and pings the server.
func (c *Connection) Connect(ctx context.Context) error {
	c.Logger.Info("connecting to redis...")

	opts, err := redis.ParseURL(c.ConnectionString)
	if err != nil {
		return fmt.Errorf("parse redis connection string: %w", err)
	}

	client := redis.NewClient(opts)

	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	c.Client = client
	c.Connected = true

	c.Logger.Info("connected to redis")

	return nil
}

// DB returns the client, connecting first if necessary.
func (c *Connection) DB(ctx context.Context) (*redis.Client, error) {
	if !c.Connected {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return c.Client, nil
}

// Close tears down the client.
func (c *Connection) Close() error {
	if c.Client == nil {
		return nil
	}

	return c.Client.Close()
}
