package users

import (
	"context"

	"github.com/procurebot/procurement-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert inserts the user or refreshes name and role when it already exists.
func (r *Repository) Upsert(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tg_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "role", "updated_at"}),
		}).
		Create(user).Error
}

// FindByID loads a user by Telegram id.
func (r *Repository) FindByID(ctx context.Context, tgUserID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "tg_user_id = ?", tgUserID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
