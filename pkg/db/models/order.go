package models

import (
	"time"

	"github.com/procurebot/procurement-backend/pkg/enums"
	"github.com/procurebot/procurement-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// Order groups the items of one requisition destined for one supplier.
type Order struct {
	ID            types.ID          `gorm:"column:id;primaryKey;autoIncrement:false"`
	RequisitionID types.ID          `gorm:"column:requisition_id;not null;uniqueIndex:ux_orders_requisition_supplier"`
	SupplierID    types.ID          `gorm:"column:supplier_id;not null;uniqueIndex:ux_orders_requisition_supplier"`
	Status        enums.OrderStatus `gorm:"column:status;not null"`
	DeliveredAt   *time.Time        `gorm:"column:delivered_at"`
	Items         []OrderItem       `gorm:"foreignKey:OrderID"`
	Supplier      *Supplier         `gorm:"foreignKey:SupplierID"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
}

// OrderItem is the per-supplier copy of a requested line. QtyFinal starts at
// QtyRequested and may be reconciled by an admin while the order is pending.
type OrderItem struct {
	ID           types.ID        `gorm:"column:id;primaryKey;autoIncrement:false"`
	OrderID      types.ID        `gorm:"column:order_id;not null"`
	ProductID    types.ID        `gorm:"column:product_id;not null"`
	QtyRequested decimal.Decimal `gorm:"column:qty_requested;type:numeric(18,4);not null"`
	QtyFinal     decimal.Decimal `gorm:"column:qty_final;type:numeric(18,4);not null"`
	Note         *string         `gorm:"column:note"`
}
