package payloads

import (
	"time"

	"github.com/procurebot/procurement-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// RequisitionSubmittedEvent carries the per-supplier breakdown of a split
// requisition so notifiers can render it without touching the database.
type RequisitionSubmittedEvent struct {
	RequisitionID types.ID            `json:"requisition_id"`
	UserID        string              `json:"user_id"`
	UserName      string              `json:"user_name,omitempty"`
	SubmittedAt   time.Time           `json:"submitted_at"`
	Orders        []SupplierOrderLine `json:"orders"`
}

// SupplierOrderLine is one order of the split.
type SupplierOrderLine struct {
	OrderID         types.ID      `json:"order_id"`
	SupplierID      types.ID      `json:"supplier_id"`
	SupplierName    string        `json:"supplier_name"`
	SupplierContact *string       `json:"supplier_contact,omitempty"`
	Items           []OrderedItem `json:"items"`
}

type OrderedItem struct {
	ProductID   types.ID        `json:"product_id"`
	ProductName string          `json:"product_name"`
	Unit        string          `json:"unit"`
	Qty         decimal.Decimal `json:"qty"`
	// Fallback marks lines routed to an alternative because the primary
	// supplier was inactive.
	Fallback bool `json:"fallback,omitempty"`
}

// SupplierOrdersDeliveredEvent reports a bulk delivery acknowledgement.
type SupplierOrdersDeliveredEvent struct {
	SupplierID   types.ID   `json:"supplier_id"`
	SupplierName string     `json:"supplier_name"`
	OrderIDs     []types.ID `json:"order_ids"`
	DeliveredAt  time.Time  `json:"delivered_at"`
	DeliveredBy  string     `json:"delivered_by,omitempty"`
}
