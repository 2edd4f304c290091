package models

import (
	"time"

	"github.com/procurebot/procurement-backend/pkg/types"
)

// Product is an orderable catalog item.
type Product struct {
	ID        types.ID          `gorm:"column:id;primaryKey;autoIncrement:false"`
	Name      string            `gorm:"column:name;not null;uniqueIndex:ux_products_name"`
	Unit      string            `gorm:"column:unit;not null"`
	Category  string            `gorm:"column:category;not null"`
	Active    bool              `gorm:"column:active;not null"`
	Suppliers []ProductSupplier `gorm:"foreignKey:ProductID"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
