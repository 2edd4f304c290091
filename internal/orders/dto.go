package orders

import (
	"time"

	"github.com/procurebot/procurement-backend/pkg/enums"
	"github.com/procurebot/procurement-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// SupplierOrders groups the pending items addressed to one supplier.
type SupplierOrders struct {
	SupplierID   types.ID     `json:"supplier_id"`
	SupplierName string       `json:"supplier_name"`
	Items        []ActiveItem `json:"items"`
}

// ActiveItem is one pending order line. Qty is the reconciled quantity.
type ActiveItem struct {
	OrderItemID   types.ID        `json:"order_item_id"`
	OrderID       types.ID        `json:"order_id"`
	RequisitionID types.ID        `json:"requisition_id"`
	ProductID     types.ID        `json:"product_id"`
	Name          string          `json:"name"`
	Unit          string          `json:"unit"`
	Qty           decimal.Decimal `json:"qty"`
	QtyRequested  decimal.Decimal `json:"qty_requested"`
	Note          *string         `json:"note,omitempty"`
	OrderedAt     time.Time       `json:"ordered_at"`
}

// DeliveryResult reports a bulk delivery acknowledgement.
type DeliveryResult struct {
	SupplierID  types.ID   `json:"supplier_id"`
	Affected    int64      `json:"affected"`
	OrderIDs    []types.ID `json:"order_ids"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// AdjustItemInput reconciles the final quantity of an order line.
type AdjustItemInput struct {
	QtyFinal decimal.Decimal
	Note     *string
}

// OrderItemDTO is the transport shape of an order line.
type OrderItemDTO struct {
	ID           types.ID          `json:"id"`
	OrderID      types.ID          `json:"order_id"`
	ProductID    types.ID          `json:"product_id"`
	QtyRequested decimal.Decimal   `json:"qty_requested"`
	QtyFinal     decimal.Decimal   `json:"qty_final"`
	Note         *string           `json:"note,omitempty"`
	OrderStatus  enums.OrderStatus `json:"order_status"`
}

func groupBySupplier(lines []PendingLine) []SupplierOrders {
	groups := make([]SupplierOrders, 0)
	index := make(map[types.ID]int)
	for _, line := range lines {
		pos, ok := index[line.SupplierID]
		if !ok {
			pos = len(groups)
			index[line.SupplierID] = pos
			groups = append(groups, SupplierOrders{
				SupplierID:   line.SupplierID,
				SupplierName: line.SupplierName,
				Items:        []ActiveItem{},
			})
		}
		groups[pos].Items = append(groups[pos].Items, ActiveItem{
			OrderItemID:   line.OrderItemID,
			OrderID:       line.OrderID,
			RequisitionID: line.RequisitionID,
			ProductID:     line.ProductID,
			Name:          line.ProductName,
			Unit:          line.Unit,
			Qty:           line.QtyFinal,
			QtyRequested:  line.QtyRequested,
			Note:          line.Note,
			OrderedAt:     line.CreatedAt,
		})
	}
	return groups
}
