package repositories

import (
	"CopyTradeBot/internal/models"
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TransferRepository struct {
	db *gorm.DB
}

// NewTransferRepository creates a new instance of TransferRepository
func NewTransferRepository(db *gorm.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// InsertIgnoreDuplicate stores a transfer unless its tx id is already known.
// It reports whether a new row was written.
func (r *TransferRepository) InsertIgnoreDuplicate(ctx context.Context, transfer *models.TransferRecord) (bool, error) {
	if transfer == nil {
		return false, errors.New("transfer cannot be nil")
	}
	if transfer.TxID == "" {
		return false, errors.New("transfer tx id is required")
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_id"}},
		DoNothing: true,
	}).Create(transfer)
	return res.RowsAffected == 1, res.Error
}

// SumByType totals a user's transfers of one type within [start, end].
func (r *TransferRepository) SumByType(ctx context.Context, userID uint, transferType string, start, end time.Time) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&models.TransferRecord{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND type = ? AND occurred_at >= ? AND occurred_at <= ?", userID, transferType, start, end).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Decimal, nil
}

// GetTransfersByTimeRange retrieves a user's transfers within a time range
func (r *TransferRepository) GetTransfersByTimeRange(ctx context.Context, userID uint, start, end time.Time) ([]models.TransferRecord, error) {
	var transfers []models.TransferRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND occurred_at BETWEEN ? AND ?", userID, start, end).
		Order("occurred_at ASC").
		Find(&transfers).Error
	return transfers, err
}
