package outboxtransport

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustokhq/eventpipeline/internal/events"
	"github.com/rustokhq/eventpipeline/internal/outbox"
	"github.com/rustokhq/eventpipeline/internal/transport"
)

type fakeAppender struct {
	appended []outbox.Record
	err      error
}

func (f *fakeAppender) Append(ctx context.Context, rec outbox.Record) error {
	if f.err != nil {
		return f.err
	}

	f.appended = append(f.appended, rec)

	return nil
}

func TestTransport_Reliability_IsDurable(t *testing.T) {
	tr := New(&fakeAppender{}, func() time.Time { return time.Unix(0, 0) })
	assert.Equal(t, transport.Durable, tr.Reliability())
}

func TestTransport_Publish_AppendsOutboxRecord(t *testing.T) {
	appender := &fakeAppender{}
	tr := New(appender, func() time.Time { return time.Unix(100, 0) })

	tenantID := uuid.New()
	env, err := events.NewEnvelope(tenantID, events.UserLoggedIn{UserID: uuid.New()}, time.Unix(100, 0), "")
	require.NoError(t, err)

	require.NoError(t, tr.Publish(context.Background(), env, "agg-1"))
	require.Len(t, appender.appended, 1)

	rec := appender.appended[0]
	assert.Equal(t, env.EventID, rec.ID)
	assert.Equal(t, tenantID, rec.TenantID)
	assert.Equal(t, "agg-1", rec.AggregateID)
	assert.Equal(t, env.EventType, rec.EventType)
}

func TestTransport_Publish_PropagatesAppendError(t *testing.T) {
	appender := &fakeAppender{err: assert.AnError}
	tr := New(appender, nil)

	env, err := events.NewEnvelope(uuid.New(), events.UserLoggedIn{UserID: uuid.New()}, time.Now(), "")
	require.NoError(t, err)

	require.Error(t, tr.Publish(context.Background(), env, "agg-1"))
}

func TestTransport_Subscribe_NotSupported(t *testing.T) {
	tr := New(&fakeAppender{}, nil)

	_, err := tr.Subscribe(context.Background(), "group", func(ctx context.Context, env events.EventEnvelope) error { return nil })
	require.Error(t, err)
}
