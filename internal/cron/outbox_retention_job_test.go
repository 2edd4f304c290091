package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/procurebot/procurement-backend/pkg/db/dbtest"
	"github.com/procurebot/procurement-backend/pkg/db/models"
	"github.com/procurebot/procurement-backend/pkg/enums"
	"github.com/procurebot/procurement-backend/pkg/logger"
	"github.com/procurebot/procurement-backend/pkg/outbox"
	"github.com/procurebot/procurement-backend/pkg/types"
)

func TestOutboxRetentionJobComputesCutoff(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeOutboxRetentionRepo{}
	job := newOutboxRetentionJob(t, repo, outboxRetentionTxRunner{}, 0)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectedCutoff := now.Add(-defaultOutboxRetention)
	if !repo.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, repo.lastCutoff)
	}
	if repo.called != 1 {
		t.Fatalf("expected repo called once, got %d", repo.called)
	}
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{err: errors.New("boom")}
	job := newOutboxRetentionJob(t, repo, outboxRetentionTxRunner{}, time.Hour)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestOutboxRetentionJobKeepsUndeliveredRows(t *testing.T) {
	client := dbtest.Open(t)
	now := time.Now().UTC()
	old := now.Add(-48 * time.Hour)
	recent := now.Add(-time.Hour)
	rows := []models.OutboxEvent{
		newOutboxRow(&old),
		newOutboxRow(&recent),
		newOutboxRow(nil),
	}
	require.NoError(t, client.DB().Create(&rows).Error)

	job := newOutboxRetentionJob(t, outbox.NewRepository(client.DB()), client, 24*time.Hour)
	require.NoError(t, job.Run(context.Background()))

	require.Equal(t, int64(2), dbtest.Count(t, client, "outbox_events"))
	var remaining []models.OutboxEvent
	require.NoError(t, client.DB().Find(&remaining).Error)
	for _, row := range remaining {
		require.NotEqual(t, rows[0].ID, row.ID)
	}
}

func newOutboxRow(publishedAt *time.Time) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventSupplierOrdersDelivered,
		AggregateType: enums.AggregateSupplier,
		AggregateID:   types.ID(1),
		Payload:       `{"version":1}`,
		PublishedAt:   publishedAt,
	}
}

func newOutboxRetentionJob(t *testing.T, repo outboxRetentionRepo, db txRunner, retention time.Duration) *outboxRetentionJob {
	t.Helper()
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:         db,
		Repository: repo,
		Retention:  retention,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job, ok := jobIface.(*outboxRetentionJob)
	if !ok {
		t.Fatalf("expected outboxRetentionJob, got %T", jobIface)
	}
	return job
}

type fakeOutboxRetentionRepo struct {
	lastCutoff time.Time
	called     int
	err        error
}

func (f *fakeOutboxRetentionRepo) DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return 7, nil
}

type outboxRetentionTxRunner struct{}

func (outboxRetentionTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
