package consistency

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustokhq/eventpipeline/internal/outbox"
	"github.com/rustokhq/eventpipeline/internal/telemetry"
	"github.com/rustokhq/eventpipeline/pkg/mlog"
)

type fakeRepo struct {
	stats    outbox.Stats
	statsErr error
	dlq      []outbox.Record
	requeued []uuid.UUID
}

func (f *fakeRepo) Append(ctx context.Context, rec outbox.Record) error { return nil }
func (f *fakeRepo) ClaimBatch(ctx context.Context, workerID string, limit int, now time.Time) ([]outbox.Record, error) {
	return nil, nil
}
func (f *fakeRepo) MarkSucceeded(ctx context.Context, id uuid.UUID, now time.Time) error { return nil }
func (f *fakeRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, nextAvailableAt, now time.Time) error {
	return nil
}
func (f *fakeRepo) ReclaimStale(ctx context.Context, olderThan, now time.Time) (int, error) {
	return 0, nil
}
func (f *fakeRepo) ListDLQ(ctx context.Context, tenantID uuid.UUID, limit int) ([]outbox.Record, error) {
	return f.dlq, nil
}
func (f *fakeRepo) Requeue(ctx context.Context, id uuid.UUID, now time.Time) error {
	f.requeued = append(f.requeued, id)
	return nil
}
func (f *fakeRepo) Stats(ctx context.Context, tenantID *uuid.UUID) (outbox.Stats, error) {
	return f.stats, f.statsErr
}

func TestChecker_Sweep_RecordsOrphanGauge(t *testing.T) {
	repo := &fakeRepo{stats: outbox.Stats{Failed: 3, DLQ: 2}}
	metrics := telemetry.NewMetrics()

	checker := NewChecker(&mlog.NoneLogger{}, repo, nil, metrics, time.Minute)
	require.NoError(t, checker.sweep(context.Background()))

	value := testutil.ToFloat64(metrics.ConsistencyOrphans.WithLabelValues("outbox"))
	assert.Equal(t, float64(5), value)
}

func TestBackfill_RequeuesEveryDLQRow(t *testing.T) {
	repo := &fakeRepo{dlq: []outbox.Record{{ID: uuid.New()}, {ID: uuid.New()}}}

	n, err := Backfill(context.Background(), repo, &mlog.NoneLogger{}, uuid.Nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, repo.requeued, 2)
}
