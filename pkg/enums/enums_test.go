package enums

import "testing"

func TestOrderStatusTerminal(t *testing.T) {
	if OrderStatusPending.IsTerminal() {
		t.Fatalf("pending must not be terminal")
	}
	if !OrderStatusDelivered.IsTerminal() {
		t.Fatalf("delivered must be terminal")
	}
	if _, err := ParseOrderStatus("draft"); err == nil {
		t.Fatalf("expected draft to be rejected")
	}
}

func TestParseUserRole(t *testing.T) {
	role, err := ParseUserRole(" Admin ")
	if err != nil || role != UserRoleAdmin {
		t.Fatalf("expected admin, got %q err=%v", role, err)
	}
	if _, err := ParseUserRole("owner"); err == nil {
		t.Fatalf("expected unknown role to fail")
	}
}

func TestOutboxEnums(t *testing.T) {
	if !EventRequisitionSubmitted.IsValid() || !AggregateRequisition.IsValid() {
		t.Fatalf("expected known outbox enums to be valid")
	}
	if OutboxEventType("order_created").IsValid() {
		t.Fatalf("unexpected legacy event type")
	}
	if !OutboxDLQReasonMaxAttempts.IsValid() {
		t.Fatalf("expected dlq reason valid")
	}
}
