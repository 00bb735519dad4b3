package repositories

import (
	"CopyTradeBot/internal/models"
	"context"
	"errors"

	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new instance of NotificationRepository
func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n == nil {
		return errors.New("notification cannot be nil")
	}
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *NotificationRepository) FindByUser(ctx context.Context, userID uint) ([]models.Notification, error) {
	var items []models.Notification
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&items).Error
	return items, err
}

func (r *NotificationRepository) FindByType(ctx context.Context, kind string) ([]models.Notification, error) {
	var items []models.Notification
	err := r.db.WithContext(ctx).Where("type = ?", kind).Order("id ASC").Find(&items).Error
	return items, err
}
