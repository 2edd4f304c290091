package notifications

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/procurebot/procurement-backend/pkg/enums"
	"github.com/procurebot/procurement-backend/pkg/outbox"
	"github.com/procurebot/procurement-backend/pkg/outbox/idempotency"
	"github.com/procurebot/procurement-backend/pkg/outbox/payloads"
	"github.com/procurebot/procurement-backend/pkg/outbox/registry"
	"github.com/procurebot/procurement-backend/pkg/redis"
	"github.com/procurebot/procurement-backend/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type recordingNotifier struct {
	sent []Message
	err  error
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Notify(_ context.Context, msg Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func submittedEvent() *registry.ResolvedEvent {
	contact := "+7 900 000-00-00"
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{EventType: enums.EventRequisitionSubmitted},
		Envelope:   outbox.PayloadEnvelope{EventID: uuid.NewString()},
		Payload: &payloads.RequisitionSubmittedEvent{
			RequisitionID: 77,
			UserID:        "100",
			UserName:      "Ivan",
			SubmittedAt:   time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC),
			Orders: []payloads.SupplierOrderLine{{
				OrderID:         1,
				SupplierID:      2,
				SupplierName:    "Alpha",
				SupplierContact: &contact,
				Items: []payloads.OrderedItem{
					{ProductID: 3, ProductName: "Flour", Unit: "kg", Qty: decimal.NewFromInt(5)},
					{ProductID: 4, ProductName: "Sugar", Unit: "kg", Qty: decimal.RequireFromString("1.5"), Fallback: true},
				},
			}},
		},
	}
}

func newManager(t *testing.T) *idempotency.Manager {
	t.Helper()
	manager, err := idempotency.NewManager(redis.NewMemoryStore(), time.Hour)
	require.NoError(t, err)
	return manager
}

func TestConsumerSendsOnce(t *testing.T) {
	notifier := &recordingNotifier{}
	consumer, err := NewConsumer(notifier, newManager(t), nil)
	require.NoError(t, err)

	event := submittedEvent()
	require.NoError(t, consumer.Handle(context.Background(), event))
	require.NoError(t, consumer.Handle(context.Background(), event))

	require.Len(t, notifier.sent, 1)
	msg := notifier.sent[0]
	assert.Equal(t, "Заявка #77: 1 заказ(ов)", msg.Subject)
	assert.Contains(t, msg.Text, "Alpha (+7 900 000-00-00)")
	assert.Contains(t, msg.Text, "Flour: 5 kg")
	assert.Contains(t, msg.Text, "Sugar: 1.5 kg [замена поставщика]")
	assert.Contains(t, msg.HTML, "<li>Flour: 5 kg</li>")
}

func TestConsumerFailureAllowsRetry(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	consumer, err := NewConsumer(notifier, newManager(t), nil)
	require.NoError(t, err)

	event := submittedEvent()
	err = consumer.Handle(context.Background(), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recording notifier")

	notifier.err = nil
	require.NoError(t, consumer.Handle(context.Background(), event))
	assert.Len(t, notifier.sent, 1)
}

func TestConsumerRejectsUnknownPayload(t *testing.T) {
	consumer, err := NewConsumer(&recordingNotifier{}, nil, nil)
	require.NoError(t, err)

	err = consumer.Handle(context.Background(), &registry.ResolvedEvent{Payload: "bogus"})
	var nonRetryable registry.NonRetryableError
	assert.True(t, errors.As(err, &nonRetryable))
}

func TestConsumerHandlersCoverEvents(t *testing.T) {
	consumer, err := NewConsumer(&recordingNotifier{}, nil, nil)
	require.NoError(t, err)
	handlers := consumer.Handlers()
	assert.Contains(t, handlers, enums.EventRequisitionSubmitted)
	assert.Contains(t, handlers, enums.EventSupplierOrdersDelivered)
}

func TestRenderOrdersDelivered(t *testing.T) {
	msg := RenderOrdersDelivered(payloads.SupplierOrdersDeliveredEvent{
		SupplierName: "Beta",
		OrderIDs:     []types.ID{10, 11},
		DeliveredAt:  time.Date(2026, 2, 11, 17, 5, 0, 0, time.UTC),
		DeliveredBy:  "42",
	})
	assert.Equal(t, "Поставка от Beta принята", msg.Subject)
	assert.Equal(t, "Beta: принято заказов 2 (11.02.2026 17:05), отметил 42\n", msg.Text)
}

type fakeSender struct {
	messages []*gomail.Message
	err      error
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, m...)
	return nil
}

func TestEmailNotifierBuildsMessage(t *testing.T) {
	sender := &fakeSender{}
	notifier := newEmailNotifier(sender, "bot@example.com", []string{" ops@example.com ", ""})
	require.NoError(t, notifier.Notify(context.Background(), Message{Subject: "Hi", Text: "body"}))

	require.Len(t, sender.messages, 1)
	msg := sender.messages[0]
	assert.Equal(t, []string{"bot@example.com"}, msg.GetHeader("From"))
	assert.Equal(t, []string{"ops@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"Hi"}, msg.GetHeader("Subject"))

	sender.err = errors.New("refused")
	err := notifier.Notify(context.Background(), Message{Subject: "Hi"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "refused"))
}
