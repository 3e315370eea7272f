// Package memory implements a Best-Effort transport.Transport: an in-process
// bounded broadcast with no persistence. It exists for local development and
// for projections that can tolerate losing events (see SPEC_FULL.md's
// Best-Effort open question decision in DESIGN.md).
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rustokhq/eventpipeline/internal/events"
	"github.com/rustokhq/eventpipeline/internal/transport"
	"github.com/rustokhq/eventpipeline/pkg/mlog"
)

// Transport is a bounded, fan-out, in-memory broadcast. Each subscriber
// gets its own buffered channel; a slow subscriber drops messages instead of
// blocking publishers, and every drop increments a counter a caller can read
// via Dropped.
type Transport struct {
	logger     mlog.Logger
	bufferSize int

	mu      sync.RWMutex
	subs    map[string][]*subscription
	closed  bool
	dropped atomic.Uint64
}

// New builds a memory transport whose per-subscriber channel holds
// bufferSize pending envelopes before it starts dropping.
func New(logger mlog.Logger, bufferSize int) *Transport {
	if bufferSize <= 0 {
		bufferSize = 256
	}

	return &Transport{
		logger:     logger,
		bufferSize: bufferSize,
		subs:       make(map[string][]*subscription),
	}
}

func (t *Transport) Reliability() transport.Reliability { return transport.BestEffort }

// Publish broadcasts env to every subscription in every group. A full
// subscriber buffer drops the message for that subscriber only; Publish
// itself never blocks or returns ErrBackpressure for a partial drop — it
// only returns an error once the transport itself is closed.
func (t *Transport) Publish(ctx context.Context, env events.EventEnvelope, _ string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return transport.ErrClosed
	}

	for _, group := range t.subs {
		for _, sub := range group {
			select {
			case sub.ch <- env:
			default:
				t.dropped.Add(1)
				t.logger.Warnw("memory transport dropped envelope", "event_id", env.EventID, "event_type", env.EventType)
			}
		}
	}

	return nil
}

// Dropped returns the cumulative count of envelopes dropped for backpressure.
func (t *Transport) Dropped() uint64 {
	return t.dropped.Load()
}

// Subscribe registers handler under group and starts a goroutine delivering
// buffered envelopes to it until Unsubscribe or the transport closes.
func (t *Transport) Subscribe(ctx context.Context, group string, handler transport.Handler) (transport.Subscription, error) {
	t.mu.Lock()

	if t.closed {
		t.mu.Unlock()
		return nil, transport.ErrClosed
	}

	sub := &subscription{
		ch:   make(chan events.EventEnvelope, t.bufferSize),
		done: make(chan struct{}),
	}

	t.subs[group] = append(t.subs[group], sub)
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-sub.done:
				return
			case <-ctx.Done():
				return
			case env := <-sub.ch:
				if err := handler(ctx, env); err != nil {
					t.logger.Errorw("memory transport handler failed, dropping (best-effort has no redelivery)",
						"event_id", env.EventID, "event_type", env.EventType, "group", group, "error", err)
				}
			}
		}
	}()

	return &unsubscribe{t: t, group: group, sub: sub}, nil
}

// Close stops delivery to every subscriber.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	t.closed = true

	for _, group := range t.subs {
		for _, sub := range group {
			close(sub.done)
		}
	}

	t.subs = nil

	return nil
}

type subscription struct {
	ch   chan events.EventEnvelope
	done chan struct{}
}

type unsubscribe struct {
	t     *Transport
	group string
	sub   *subscription
}

func (u *unsubscribe) Unsubscribe() error {
	u.t.mu.Lock()
	defer u.t.mu.Unlock()

	subs := u.t.subs[u.group]

	for i, s := range subs {
		if s == u.sub {
			u.t.subs[u.group] = append(subs[:i], subs[i+1:]...)
			close(s.done)

			break
		}
	}

	return nil
}
