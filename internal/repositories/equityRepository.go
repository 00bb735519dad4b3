package repositories

import (
	"CopyTradeBot/internal/models"
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EquityRepository struct {
	db *gorm.DB
}

// NewEquityRepository creates a new instance of EquityRepository
func NewEquityRepository(db *gorm.DB) *EquityRepository {
	return &EquityRepository{db: db}
}

func (r *EquityRepository) SetStartEquity(ctx context.Context, userID uint, quarter string, equity decimal.Decimal) error {
	return r.upsertColumn(ctx, &models.QuarterEquitySnapshot{UserID: userID, Quarter: quarter, StartEquity: &equity}, "start_equity")
}

func (r *EquityRepository) SetEndEquity(ctx context.Context, userID uint, quarter string, equity decimal.Decimal) error {
	return r.upsertColumn(ctx, &models.QuarterEquitySnapshot{UserID: userID, Quarter: quarter, EndEquity: &equity}, "end_equity")
}

func (r *EquityRepository) upsertColumn(ctx context.Context, row *models.QuarterEquitySnapshot, column string) error {
	if row.UserID == 0 || row.Quarter == "" {
		return errors.New("invalid user or quarter")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "quarter"}},
		DoUpdates: clause.AssignmentColumns([]string{column, "updated_at"}),
	}).Create(row).Error
}

// Find returns the user's snapshot for a quarter, or nil, nil.
func (r *EquityRepository) Find(ctx context.Context, userID uint, quarter string) (*models.QuarterEquitySnapshot, error) {
	var row models.QuarterEquitySnapshot
	err := r.db.WithContext(ctx).Where("user_id = ? AND quarter = ?", userID, quarter).First(&row).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
