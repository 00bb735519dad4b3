package repositories

import (
	"CopyTradeBot/internal/models"
	"context"
	"errors"

	"gorm.io/gorm"
)

type FeeRepository struct {
	db *gorm.DB
}

// NewFeeRepository creates a new instance of FeeRepository
func NewFeeRepository(db *gorm.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

func (r *FeeRepository) Create(ctx context.Context, fee *models.Fee) error {
	if fee == nil {
		return errors.New("fee cannot be nil")
	}
	return r.db.WithContext(ctx).Omit("Position").Create(fee).Error
}

func (r *FeeRepository) FindByUser(ctx context.Context, userID uint) ([]models.Fee, error) {
	var fees []models.Fee
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&fees).Error
	return fees, err
}

// MarkSettled moves calculated fees to settled and returns how many changed.
func (r *FeeRepository) MarkSettled(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&models.Fee{}).
		Where("id IN ? AND status = ?", ids, models.FeeStatusCalculated).
		Update("status", models.FeeStatusSettled)
	return res.RowsAffected, res.Error
}
