package repositories

import (
	"CopyTradeBot/internal/models"
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BalanceRepository struct {
	db *gorm.DB
}

// NewBalanceRepository creates a new instance of BalanceRepository
func NewBalanceRepository(db *gorm.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Upsert writes the day's total balance for a user, replacing any earlier value.
func (r *BalanceRepository) Upsert(ctx context.Context, userID uint, date string, total decimal.Decimal) error {
	if userID == 0 || date == "" {
		return errors.New("invalid user or date")
	}
	snapshot := &models.BalanceSnapshot{
		UserID:       userID,
		SnapshotDate: date,
		TotalBalance: total,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "snapshot_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_balance", "updated_at"}),
	}).Create(snapshot).Error
}

// FindByDate returns the user's snapshot for a day, or nil, nil.
func (r *BalanceRepository) FindByDate(ctx context.Context, userID uint, date string) (*models.BalanceSnapshot, error) {
	var snapshot models.BalanceSnapshot
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND snapshot_date = ?", userID, date).
		First(&snapshot).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// FindInRange returns a user's snapshots between two inclusive YYYY-MM-DD dates, oldest first.
func (r *BalanceRepository) FindInRange(ctx context.Context, userID uint, startDate, endDate string) ([]models.BalanceSnapshot, error) {
	var snapshots []models.BalanceSnapshot
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND snapshot_date >= ? AND snapshot_date <= ?", userID, startDate, endDate).
		Order("snapshot_date ASC").
		Find(&snapshots).Error
	return snapshots, err
}
