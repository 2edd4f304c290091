package models

import (
	"time"

	"github.com/procurebot/procurement-backend/pkg/enums"
	"github.com/procurebot/procurement-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// Requisition is one staff submission.
type Requisition struct {
	ID        types.ID                `gorm:"column:id;primaryKey;autoIncrement:false"`
	UserID    string                  `gorm:"column:user_id;not null"`
	Status    enums.RequisitionStatus `gorm:"column:status;not null"`
	Items     []RequisitionItem       `gorm:"foreignKey:RequisitionID"`
	Orders    []Order                 `gorm:"foreignKey:RequisitionID"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
}

// RequisitionItem is a requested product line, immutable after submission.
type RequisitionItem struct {
	ID            types.ID        `gorm:"column:id;primaryKey;autoIncrement:false"`
	RequisitionID types.ID        `gorm:"column:requisition_id;not null"`
	ProductID     types.ID        `gorm:"column:product_id;not null"`
	QtyRequested  decimal.Decimal `gorm:"column:qty_requested;type:numeric(18,4);not null"`
}
