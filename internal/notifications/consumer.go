package notifications

import (
	"context"
	"fmt"

	"github.com/procurebot/procurement-backend/pkg/enums"
	"github.com/procurebot/procurement-backend/pkg/logger"
	"github.com/procurebot/procurement-backend/pkg/outbox/dispatcher"
	"github.com/procurebot/procurement-backend/pkg/outbox/idempotency"
	"github.com/procurebot/procurement-backend/pkg/outbox/payloads"
	"github.com/procurebot/procurement-backend/pkg/outbox/registry"
)

const consumerName = "notifications"

// Consumer turns resolved outbox events into notifications.
type Consumer struct {
	notifier    Notifier
	idempotency *idempotency.Manager
	logg        *logger.Logger
}

// NewConsumer builds the notification consumer. manager may be nil, in
// which case redelivered events notify again.
func NewConsumer(notifier Notifier, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &Consumer{notifier: notifier, idempotency: manager, logg: logg}, nil
}

// Handlers returns the dispatcher bindings for every event the consumer
// understands.
func (c *Consumer) Handlers() map[enums.OutboxEventType]dispatcher.Handler {
	return map[enums.OutboxEventType]dispatcher.Handler{
		enums.EventRequisitionSubmitted:    dispatcher.HandlerFunc(c.Handle),
		enums.EventSupplierOrdersDelivered: dispatcher.HandlerFunc(c.Handle),
	}
}

// Handle renders and sends the event. A failed send forgets the event so
// the dispatcher retry can run it again.
func (c *Consumer) Handle(ctx context.Context, event *registry.ResolvedEvent) error {
	msg, err := render(event)
	if err != nil {
		return err
	}

	eventID := event.Envelope.EventID
	if c.idempotency != nil {
		already, err := c.idempotency.CheckAndMarkProcessed(ctx, consumerName, eventID)
		if err != nil {
			return fmt.Errorf("idempotency check: %w", err)
		}
		if already {
			c.info(ctx, event, "notification already sent")
			return nil
		}
	}

	if err := c.notifier.Notify(ctx, msg); err != nil {
		if c.idempotency != nil {
			_ = c.idempotency.Delete(ctx, consumerName, eventID)
		}
		return fmt.Errorf("%s notifier: %w", c.notifier.Name(), err)
	}
	c.info(ctx, event, "notification sent")
	return nil
}

func render(event *registry.ResolvedEvent) (Message, error) {
	switch payload := event.Payload.(type) {
	case *payloads.RequisitionSubmittedEvent:
		return RenderRequisitionSubmitted(*payload), nil
	case *payloads.SupplierOrdersDeliveredEvent:
		return RenderOrdersDelivered(*payload), nil
	default:
		return Message{}, registry.NewNonRetryableError(fmt.Errorf("no renderer for %T", event.Payload))
	}
}

func (c *Consumer) info(ctx context.Context, event *registry.ResolvedEvent, msg string) {
	if c.logg == nil {
		return
	}
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   event.Envelope.EventID,
		"event_type": event.Descriptor.EventType,
		"notifier":   c.notifier.Name(),
	})
	c.logg.Info(logCtx, msg)
}
