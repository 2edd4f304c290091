package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/procurebot/procurement-backend/pkg/db/models"
	"github.com/procurebot/procurement-backend/pkg/enums"
	"github.com/procurebot/procurement-backend/pkg/outbox"
	"github.com/procurebot/procurement-backend/pkg/outbox/payloads"
	"github.com/procurebot/procurement-backend/pkg/types"
	"github.com/shopspring/decimal"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := NewEventRegistry()

	payloadBytes := mustMarshal(t, payloads.RequisitionSubmittedEvent{
		RequisitionID: types.ID(10),
		UserID:        "100",
		Orders: []payloads.SupplierOrderLine{{
			OrderID:      types.ID(11),
			SupplierID:   types.ID(12),
			SupplierName: "Metro",
			Items: []payloads.OrderedItem{{
				ProductID: types.ID(13), ProductName: "Flour", Unit: "kg", Qty: decimal.NewFromInt(5),
			}},
		}},
	})

	event := models.OutboxEvent{
		EventType:     enums.EventRequisitionSubmitted,
		AggregateType: enums.AggregateRequisition,
		AggregateID:   types.ID(10),
		Payload:       mustEnvelope(t, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.EventType != enums.EventRequisitionSubmitted {
		t.Fatalf("unexpected event type %s", resolved.Descriptor.EventType)
	}
	payload, ok := resolved.Payload.(*payloads.RequisitionSubmittedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if len(payload.Orders) != 1 || !payload.Orders[0].Items[0].Qty.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" {
		t.Fatalf("envelope missing event id")
	}
	if resolved.Envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope missing occurred_at")
	}
}

func TestEventRegistryResolveUnknownEvent(t *testing.T) {
	reg := NewEventRegistry()

	event := models.OutboxEvent{
		EventType:     enums.OutboxEventType("supplier_renamed"),
		AggregateType: enums.AggregateSupplier,
		AggregateID:   types.ID(1),
		Payload:       mustEnvelope(t, []byte(`{"reason":"none"}`)),
	}

	_, err := reg.Resolve(event)
	assertNonRetryable(t, err)
}

func TestEventRegistryResolveAggregateMismatch(t *testing.T) {
	reg := NewEventRegistry()

	event := models.OutboxEvent{
		EventType:     enums.EventSupplierOrdersDelivered,
		AggregateType: enums.AggregateRequisition,
		AggregateID:   types.ID(1),
		Payload:       mustEnvelope(t, []byte(`{"supplier_id":"1"}`)),
	}

	_, err := reg.Resolve(event)
	assertNonRetryable(t, err)
}

func TestEventRegistryResolveMissingPayload(t *testing.T) {
	reg := NewEventRegistry()

	event := models.OutboxEvent{
		EventType:     enums.EventSupplierOrdersDelivered,
		AggregateType: enums.AggregateSupplier,
		AggregateID:   types.ID(1),
		Payload:       mustEnvelope(t, []byte(`null`)),
	}

	_, err := reg.Resolve(event)
	assertNonRetryable(t, err)
}

func TestEventRegistryResolveBadEnvelope(t *testing.T) {
	reg := NewEventRegistry()

	event := models.OutboxEvent{
		EventType:     enums.EventSupplierOrdersDelivered,
		AggregateType: enums.AggregateSupplier,
		AggregateID:   types.ID(1),
		Payload:       "{not json",
	}

	_, err := reg.Resolve(event)
	assertNonRetryable(t, err)
}

func assertNonRetryable(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error")
	}
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %T", err)
	}
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, data []byte) string {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    "evt-1",
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
	return string(mustMarshal(t, envelope))
}
