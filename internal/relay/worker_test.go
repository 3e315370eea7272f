package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustokhq/eventpipeline/internal/events"
	"github.com/rustokhq/eventpipeline/internal/outbox"
	"github.com/rustokhq/eventpipeline/internal/telemetry"
	"github.com/rustokhq/eventpipeline/internal/transport/memory"
	"github.com/rustokhq/eventpipeline/pkg/mlog"
	"github.com/rustokhq/eventpipeline/pkg/mretry"
)

// fakeRepo is a minimal in-memory outbox.Repository for worker tests.
type fakeRepo struct {
	claimed   []outbox.Record
	succeeded []uuid.UUID
	failed    []uuid.UUID
}

func (f *fakeRepo) Append(ctx context.Context, rec outbox.Record) error { return nil }

func (f *fakeRepo) ClaimBatch(ctx context.Context, workerID string, limit int, now time.Time) ([]outbox.Record, error) {
	batch := f.claimed
	f.claimed = nil

	return batch, nil
}

func (f *fakeRepo) MarkSucceeded(ctx context.Context, id uuid.UUID, now time.Time) error {
	f.succeeded = append(f.succeeded, id)
	return nil
}

func (f *fakeRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, nextAvailableAt, now time.Time) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) ReclaimStale(ctx context.Context, olderThan, now time.Time) (int, error) {
	return 0, nil
}

func (f *fakeRepo) ListDLQ(ctx context.Context, tenantID uuid.UUID, limit int) ([]outbox.Record, error) {
	return nil, nil
}

func (f *fakeRepo) Requeue(ctx context.Context, id uuid.UUID, now time.Time) error { return nil }

func (f *fakeRepo) Stats(ctx context.Context, tenantID *uuid.UUID) (outbox.Stats, error) {
	return outbox.Stats{}, nil
}

func TestNew_PanicsOnNilLogger(t *testing.T) {
	repo := &fakeRepo{}
	tr := memory.New(&mlog.NoneLogger{}, 4)
	defer tr.Close()

	assert.Panics(t, func() {
		New(nil, repo, tr, telemetry.NewMetrics(), "w1", 5)
	})
}

func TestNew_PanicsOnNilRepo(t *testing.T) {
	tr := memory.New(&mlog.NoneLogger{}, 4)
	defer tr.Close()

	assert.Panics(t, func() {
		New(&mlog.NoneLogger{}, nil, tr, telemetry.NewMetrics(), "w1", 5)
	})
}

func TestNew_PanicsOnNilTransport(t *testing.T) {
	repo := &fakeRepo{}

	assert.Panics(t, func() {
		New(&mlog.NoneLogger{}, repo, nil, telemetry.NewMetrics(), "w1", 5)
	})
}

func TestNew_DefaultsMaxWorkersWhenZero(t *testing.T) {
	repo := &fakeRepo{}
	tr := memory.New(&mlog.NoneLogger{}, 4)
	defer tr.Close()

	w := New(&mlog.NoneLogger{}, repo, tr, telemetry.NewMetrics(), "w1", 0)
	assert.Equal(t, defaultMaxWorkers, w.maxWorkers)
}

func TestCalculateBackoff_ZeroAttempt(t *testing.T) {
	repo := &fakeRepo{}
	tr := memory.New(&mlog.NoneLogger{}, 4)
	defer tr.Close()

	w := New(&mlog.NoneLogger{}, repo, tr, telemetry.NewMetrics(), "w1", 5)
	assert.Equal(t, mretry.DefaultInitialBackoff, w.calculateBackoff(0))
}

func TestCalculateBackoff_CapsAtMax(t *testing.T) {
	repo := &fakeRepo{}
	tr := memory.New(&mlog.NoneLogger{}, 4)
	defer tr.Close()

	w := New(&mlog.NoneLogger{}, repo, tr, telemetry.NewMetrics(), "w1", 5)
	assert.LessOrEqual(t, w.calculateBackoff(100), mretry.DefaultMaxBackoff)
}

func TestWorker_PollOnce_DispatchesAndMarksSucceeded(t *testing.T) {
	tr := memory.New(&mlog.NoneLogger{}, 4)
	defer tr.Close()

	delivered := make(chan struct{}, 1)
	_, err := tr.Subscribe(context.Background(), "test", func(ctx context.Context, env events.EventEnvelope) error {
		delivered <- struct{}{}
		return nil
	})
	require.NoError(t, err)

	env, err := events.NewEnvelope(uuid.New(), events.UserLoggedIn{UserID: uuid.New()}, time.Now().UTC(), "")
	require.NoError(t, err)

	payload, err := json.Marshal(env)
	require.NoError(t, err)

	rec, err := outbox.NewRecord(env.TenantID, "", env.EventType, env.SchemaVersion, payload, time.Now().UTC())
	require.NoError(t, err)
	rec.Status = outbox.StatusProcessing

	repo := &fakeRepo{claimed: []outbox.Record{rec}}
	w := New(&mlog.NoneLogger{}, repo, tr, telemetry.NewMetrics(), "w1", 1)

	n, err := w.pollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatch to reach subscriber")
	}

	assert.Contains(t, repo.succeeded, rec.ID)
}

func TestHandleFailure_DoesNotIncrementDLQWhileRetriesRemain(t *testing.T) {
	repo := &fakeRepo{}
	tr := memory.New(&mlog.NoneLogger{}, 4)
	defer tr.Close()

	metrics := telemetry.NewMetrics()
	w := New(&mlog.NoneLogger{}, repo, tr, metrics, "w1", 1)

	rec, err := outbox.NewRecord(uuid.New(), "", "user.logged_in", 1, []byte(`{}`), time.Now().UTC())
	require.NoError(t, err)
	rec.RetryCount = 0

	require.NoError(t, w.handleFailure(context.Background(), rec, assert.AnError))
	assert.Contains(t, repo.failed, rec.ID)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.OutboxDLQTotal))
}

func TestHandleFailure_IncrementsDLQOnFinalRetry(t *testing.T) {
	repo := &fakeRepo{}
	tr := memory.New(&mlog.NoneLogger{}, 4)
	defer tr.Close()

	metrics := telemetry.NewMetrics()
	w := New(&mlog.NoneLogger{}, repo, tr, metrics, "w1", 1)

	rec, err := outbox.NewRecord(uuid.New(), "", "user.logged_in", 1, []byte(`{}`), time.Now().UTC())
	require.NoError(t, err)
	rec.RetryCount = rec.MaxRetries - 1

	require.NoError(t, w.handleFailure(context.Background(), rec, assert.AnError))
	assert.Contains(t, repo.failed, rec.ID)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.OutboxDLQTotal))
}
