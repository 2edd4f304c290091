package notifications

import (
	"fmt"
	"time"

	"github.com/procurebot/procurement-backend/pkg/config"
	"github.com/procurebot/procurement-backend/pkg/db"
	"github.com/procurebot/procurement-backend/pkg/logger"
	"github.com/procurebot/procurement-backend/pkg/outbox"
	"github.com/procurebot/procurement-backend/pkg/outbox/dispatcher"
	"github.com/procurebot/procurement-backend/pkg/outbox/idempotency"
	"github.com/procurebot/procurement-backend/pkg/outbox/registry"
	pkgredis "github.com/procurebot/procurement-backend/pkg/redis"
)

const processedTTL = 7 * 24 * time.Hour

type outcomeRecorder interface {
	OutboxOutcome(eventType, outcome string)
}

// PipelineParams wires the outbox dispatcher to the notification consumer.
type PipelineParams struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.Client
	Store   pkgredis.IdempotencyStore
	Metrics outcomeRecorder
}

// SelectNotifier returns the SMTP notifier when e-mail is configured and the
// log notifier otherwise.
func SelectNotifier(cfg config.SMTPConfig, logg *logger.Logger) (Notifier, error) {
	if cfg.Enabled() {
		return NewEmailNotifier(cfg)
	}
	return NewLogNotifier(logg), nil
}

// NewDispatcher builds the dispatcher used by cmd/outbox-publisher and by the
// API's inline mode.
func NewDispatcher(p PipelineParams) (*dispatcher.Dispatcher, error) {
	if p.Config == nil || p.DB == nil || p.Logger == nil {
		return nil, fmt.Errorf("config, database and logger are required")
	}

	notifier, err := SelectNotifier(p.Config.SMTP, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}

	var manager *idempotency.Manager
	if p.Store != nil {
		manager, err = idempotency.NewManager(p.Store, processedTTL)
		if err != nil {
			return nil, fmt.Errorf("idempotency manager: %w", err)
		}
	}

	consumer, err := NewConsumer(notifier, manager, p.Logger)
	if err != nil {
		return nil, err
	}

	return dispatcher.New(dispatcher.Params{
		Logger:        p.Logger,
		DB:            p.DB,
		Repository:    outbox.NewRepository(p.DB.DB()),
		DLQRepository: outbox.NewDLQRepository(p.DB.DB()),
		Registry:      registry.NewEventRegistry(),
		Handlers:      consumer.Handlers(),
		Metrics:       p.Metrics,
		BatchSize:     p.Config.Outbox.BatchSize,
		MaxAttempts:   p.Config.Outbox.MaxAttempts,
		PollInterval:  p.Config.Outbox.PollInterval(),
	})
}
