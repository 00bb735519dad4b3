package repositories

import (
	"CopyTradeBot/internal/models"
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a new instance of SettingRepository
func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get returns the stored value and whether the key exists.
func (r *SettingRepository) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, errors.New("invalid key")
	}
	var setting models.SystemSetting
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	if isNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return setting.Value, true, nil
}

func (r *SettingRepository) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("invalid key")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models.SystemSetting{Key: key, Value: value}).Error
}
