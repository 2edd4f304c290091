package notifications

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/procurebot/procurement-backend/pkg/config"
	"github.com/procurebot/procurement-backend/pkg/db/dbtest"
	"github.com/procurebot/procurement-backend/pkg/db/models"
	"github.com/procurebot/procurement-backend/pkg/enums"
	"github.com/procurebot/procurement-backend/pkg/logger"
	"github.com/procurebot/procurement-backend/pkg/outbox"
	"github.com/procurebot/procurement-backend/pkg/outbox/payloads"
	pkgredis "github.com/procurebot/procurement-backend/pkg/redis"
	"github.com/procurebot/procurement-backend/pkg/types"
)

func TestSelectNotifier(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}})

	n, err := SelectNotifier(config.SMTPConfig{}, logg)
	require.NoError(t, err)
	require.Equal(t, "log", n.Name())

	n, err = SelectNotifier(config.SMTPConfig{Host: "smtp.local", Port: 25, From: "bot@local", To: []string{"ops@local"}}, logg)
	require.NoError(t, err)
	require.Equal(t, "email", n.Name())
}

func TestDispatcherDeliversThroughLogNotifier(t *testing.T) {
	client := dbtest.Open(t)
	var logs bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &logs})
	cfg := &config.Config{Outbox: config.OutboxConfig{BatchSize: 10, MaxAttempts: 3}}

	d, err := NewDispatcher(PipelineParams{Config: cfg, Logger: logg, DB: client, Store: pkgredis.NewMemoryStore()})
	require.NoError(t, err)

	box := outbox.NewService(outbox.NewRepository(client.DB()), logg)
	ctx := context.Background()
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return box.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSupplierOrdersDelivered,
			AggregateType: enums.AggregateSupplier,
			AggregateID:   types.ID(5),
			Data: payloads.SupplierOrdersDeliveredEvent{
				SupplierID:   5,
				SupplierName: "Alpha",
				OrderIDs:     []types.ID{10},
				DeliveredAt:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
				DeliveredBy:  "Olga",
			},
		})
	}))

	_, err = d.ProcessBatch(ctx)
	require.NoError(t, err)

	var published int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Where("published_at IS NOT NULL").Count(&published).Error)
	require.Equal(t, int64(1), published)
	require.Contains(t, logs.String(), "Поставка от Alpha принята")
}
