package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event describes.
type OutboxAggregateType string

const (
	AggregateRequisition OutboxAggregateType = "requisition"
	AggregateSupplier    OutboxAggregateType = "supplier"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateRequisition,
	AggregateSupplier,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a post-commit domain event.
type OutboxEventType string

const (
	EventRequisitionSubmitted    OutboxEventType = "requisition_submitted"
	EventSupplierOrdersDelivered OutboxEventType = "supplier_orders_delivered"
)

var validOutboxEventTypes = []OutboxEventType{
	EventRequisitionSubmitted,
	EventSupplierOrdersDelivered,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
