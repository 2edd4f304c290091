package models

import (
	"time"

	"github.com/procurebot/procurement-backend/pkg/types"
)

// ProductSupplier ranks a supplier for a product. The lowest SortOrder is the
// primary supplier; rankings are kept dense (1..N).
type ProductSupplier struct {
	ProductID  types.ID  `gorm:"column:product_id;primaryKey;autoIncrement:false"`
	SupplierID types.ID  `gorm:"column:supplier_id;primaryKey;autoIncrement:false"`
	SortOrder  int       `gorm:"column:sort_order;not null"`
	Supplier   *Supplier `gorm:"foreignKey:SupplierID"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
