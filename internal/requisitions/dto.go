package requisitions

import (
	"time"

	"github.com/procurebot/procurement-backend/internal/sourcing"
	"github.com/procurebot/procurement-backend/pkg/enums"
	"github.com/procurebot/procurement-backend/pkg/types"
	"github.com/shopspring/decimal"
)

const (
	// DefaultListLimit caps the admin requisition list.
	DefaultListLimit = 200

	maxItems    = 500
	maxQtyScale = types.QuantityScale
)

// SubmitItem is one requested product line.
type SubmitItem struct {
	ProductID types.ID
	Qty       decimal.Decimal
}

// SubmitInput is a staff submission.
type SubmitInput struct {
	UserID string
	Role   enums.UserRole
	Items  []SubmitItem
}

// SubmitResult reports the requisition id and how it was split.
type SubmitResult struct {
	RequisitionID types.ID         `json:"requisition_id"`
	Orders        []SubmittedOrder `json:"orders"`
}

type SubmittedOrder struct {
	OrderID      types.ID `json:"order_id"`
	SupplierID   types.ID `json:"supplier_id"`
	SupplierName string   `json:"supplier_name"`
	ItemCount    int      `json:"item_count"`
}

// Detail is the admin view of one requisition.
type Detail struct {
	Summary
	Orders []OrderDetail `json:"orders"`
}

type OrderDetail struct {
	OrderID     types.ID          `json:"order_id"`
	Supplier    SupplierRef       `json:"supplier"`
	Status      enums.OrderStatus `json:"status"`
	DeliveredAt *time.Time        `json:"delivered_at,omitempty"`
	Items       []ItemDetail      `json:"items"`
}

type SupplierRef struct {
	ID   types.ID `json:"id"`
	Name string   `json:"name"`
}

type ItemDetail struct {
	ID           types.ID        `json:"id"`
	ProductID    types.ID        `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Unit         string          `json:"unit"`
	QtyRequested decimal.Decimal `json:"qty_requested"`
	QtyFinal     decimal.Decimal `json:"qty_final"`
	Note         *string         `json:"note,omitempty"`
	// Alternatives are the other active suppliers ranked for the product,
	// in rank order.
	Alternatives []SupplierRef `json:"alternatives"`
}

func buildDetail(summary Summary, lines []OrderLine, ranked map[types.ID][]sourcing.RankedSupplier) *Detail {
	detail := &Detail{Summary: summary, Orders: []OrderDetail{}}
	index := make(map[types.ID]int)
	for _, line := range lines {
		pos, ok := index[line.OrderID]
		if !ok {
			pos = len(detail.Orders)
			index[line.OrderID] = pos
			detail.Orders = append(detail.Orders, OrderDetail{
				OrderID:     line.OrderID,
				Supplier:    SupplierRef{ID: line.SupplierID, Name: line.SupplierName},
				Status:      line.Status,
				DeliveredAt: line.DeliveredAt,
				Items:       []ItemDetail{},
			})
		}
		detail.Orders[pos].Items = append(detail.Orders[pos].Items, ItemDetail{
			ID:           line.ItemID,
			ProductID:    line.ProductID,
			ProductName:  line.ProductName,
			Unit:         line.Unit,
			QtyRequested: line.QtyRequested,
			QtyFinal:     line.QtyFinal,
			Note:         line.Note,
			Alternatives: alternatives(ranked[line.ProductID], line.SupplierID),
		})
	}
	return detail
}

func alternatives(ranked []sourcing.RankedSupplier, assigned types.ID) []SupplierRef {
	out := []SupplierRef{}
	for _, candidate := range ranked {
		if !candidate.Active || candidate.SupplierID == assigned {
			continue
		}
		out = append(out, SupplierRef{ID: candidate.SupplierID, Name: candidate.Name})
	}
	return out
}
