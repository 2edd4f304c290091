package models

import (
	"time"

	"github.com/procurebot/procurement-backend/pkg/enums"
)

// User is a Telegram principal seen by the backend.
type User struct {
	TGUserID  string         `gorm:"column:tg_user_id;primaryKey"`
	Name      string         `gorm:"column:name;not null"`
	Role      enums.UserRole `gorm:"column:role;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
