// Package mrabbitmq wires the streaming transport into RabbitMQ the way the
// teacher's common/mrabbitmq wires the platform into AMQP, updated to the
// maintained rabbitmq/amqp091-go client.
package mrabbitmq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/rustokhq/eventpipeline/pkg/mlog"
)

// Connection is a singleton-style hub for a RabbitMQ connection and
// channel, reopened transparently on GetChannel when the underlying
// connection has dropped.
type Connection struct {
	ConnectionString string
	Logger           mlog.Logger

	mu        sync.Mutex
	conn      *amqp.Connection
	channel   *amqp.Channel
	connected bool
}

// Connect dials the broker and opens a channel.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connectLocked()
}

func (c *Connection) connectLocked() error {
	c.Logger.Info("connecting to rabbitmq...")

	conn, err := amqp.Dial(c.ConnectionString)
	if err != nil {
		c.connected = false
		return fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		c.connected = false
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}

	c.conn = conn
	c.channel = ch
	c.connected = true

	c.Logger.Info("connected to rabbitmq")

	return nil
}

// GetChannel returns the live channel, reconnecting first if necessary.
func (c *Connection) GetChannel(ctx context.Context) (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.channel == nil {
		if err := c.connectLocked(); err != nil {
			return nil, err
		}
	}

	return c.channel, nil
}

// HealthCheck reports whether the connection and channel are both live.
func (c *Connection) HealthCheck() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connected && c.conn != nil && !c.conn.IsClosed()
}

// Close tears down the channel and connection.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil {
		_ = c.channel.Close()
	}

	if c.conn != nil {
		return c.conn.Close()
	}

	return nil
}
