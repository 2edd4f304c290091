package models

import (
	"time"

	"github.com/procurebot/procurement-backend/pkg/types"
)

// Supplier is an external vendor that fulfils orders.
type Supplier struct {
	ID          types.ID  `gorm:"column:id;primaryKey;autoIncrement:false"`
	Name        string    `gorm:"column:name;not null;uniqueIndex:ux_suppliers_name"`
	ContactNote *string   `gorm:"column:contact_note"`
	Active      bool      `gorm:"column:active;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
