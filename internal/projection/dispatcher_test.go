package projection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustokhq/eventpipeline/internal/events"
	"github.com/rustokhq/eventpipeline/internal/telemetry"
	"github.com/rustokhq/eventpipeline/pkg/mlog"
)

type recordingIndexer struct {
	name string
	mu   sync.Mutex
	seen []events.DomainEvent
	err  error
}

func (r *recordingIndexer) Name() string { return r.name }

func (r *recordingIndexer) Handle(ctx context.Context, env events.EventEnvelope, event events.DomainEvent) error {
	r.mu.Lock()
	r.seen = append(r.seen, event)
	r.mu.Unlock()

	return r.err
}

func TestDispatcher_Dispatch_FansOutToEveryIndexer(t *testing.T) {
	content := &recordingIndexer{name: "content"}
	product := &recordingIndexer{name: "product"}

	d := New(&mlog.NoneLogger{}, telemetry.NewMetrics(), content, product)

	event := events.NodeCreated{NodeID: uuid.New(), Locale: "en-US"}
	env, err := events.NewEnvelope(uuid.New(), event, time.Now().UTC(), "")
	require.NoError(t, err)

	require.NoError(t, d.Dispatch(context.Background(), env))

	assert.Len(t, content.seen, 1)
	assert.Len(t, product.seen, 1)
	assert.Equal(t, event, content.seen[0])
}

func TestDispatcher_Dispatch_OneIndexerFailureDoesNotBlockAnother(t *testing.T) {
	failing := &recordingIndexer{name: "failing", err: errors.New("boom")}
	healthy := &recordingIndexer{name: "healthy"}

	d := New(&mlog.NoneLogger{}, telemetry.NewMetrics(), failing, healthy)

	event := events.UserLoggedIn{UserID: uuid.New()}
	env, err := events.NewEnvelope(uuid.New(), event, time.Now().UTC(), "")
	require.NoError(t, err)

	err = d.Dispatch(context.Background(), env)
	require.Error(t, err)

	assert.Len(t, healthy.seen, 1)
}

func TestDispatcher_Dispatch_UnknownEventTypeFails(t *testing.T) {
	d := New(&mlog.NoneLogger{}, telemetry.NewMetrics())

	env := events.EventEnvelope{EventType: "bogus", Payload: []byte(`{}`)}
	err := d.Dispatch(context.Background(), env)
	require.Error(t, err)
}
