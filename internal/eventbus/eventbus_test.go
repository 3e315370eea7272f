package eventbus

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustokhq/eventpipeline/internal/events"
	"github.com/rustokhq/eventpipeline/internal/transport/memory"
	"github.com/rustokhq/eventpipeline/pkg/mlog"
)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func TestBus_Publish_DeliversViaBestEffort(t *testing.T) {
	tr := memory.New(&mlog.NoneLogger{}, 4)
	defer tr.Close()

	bus := New(&mlog.NoneLogger{}, tr, fixedClock(time.Unix(100, 0)))

	received := make(chan events.EventEnvelope, 1)
	_, err := tr.Subscribe(context.Background(), "test", func(ctx context.Context, env events.EventEnvelope) error {
		received <- env
		return nil
	})
	require.NoError(t, err)

	tenantID := uuid.New()
	event := events.UserLoggedIn{UserID: uuid.New()}

	env, err := bus.Publish(context.Background(), tenantID, "", event)
	require.NoError(t, err)
	assert.Equal(t, "user.logged_in", env.EventType)

	select {
	case got := <-received:
		assert.Equal(t, env.EventID, got.EventID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for best-effort delivery")
	}
}

func TestBus_Publish_NoTransportConfigured(t *testing.T) {
	bus := New(&mlog.NoneLogger{}, nil, fixedClock(time.Now()))

	_, err := bus.Publish(context.Background(), uuid.New(), "", events.UserLoggedIn{UserID: uuid.New()})
	require.Error(t, err)
}

func TestBus_Publish_InvalidEventRejected(t *testing.T) {
	tr := memory.New(&mlog.NoneLogger{}, 4)
	defer tr.Close()

	bus := New(&mlog.NoneLogger{}, tr, fixedClock(time.Now()))

	_, err := bus.Publish(context.Background(), uuid.New(), "", events.UserLoggedIn{})
	require.Error(t, err)
}

func TestBus_PublishInTx_AppendsThroughOutboxTransport(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO outbox_records").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	bus := New(&mlog.NoneLogger{}, nil, fixedClock(time.Unix(100, 0)))

	tenantID := uuid.New()
	env, err := bus.PublishInTx(context.Background(), tx, tenantID, "agg-1", events.UserLoggedIn{UserID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, "user.logged_in", env.EventType)

	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBus_PublishInTx_InvalidEventRejected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	bus := New(&mlog.NoneLogger{}, nil, fixedClock(time.Now()))

	_, err = bus.PublishInTx(context.Background(), tx, uuid.New(), "", events.UserLoggedIn{})
	require.Error(t, err)
}
