package repositories

import (
	"CopyTradeBot/internal/models"
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PositionRepository struct {
	db *gorm.DB
}

// NewPositionRepository creates a new instance of PositionRepository
func NewPositionRepository(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Create adds a new Position record to the database
func (r *PositionRepository) Create(ctx context.Context, position *models.Position) error {
	if position == nil {
		return errors.New("position cannot be nil")
	}
	return r.db.WithContext(ctx).Create(position).Error
}

// FindOldestOpen returns the first-opened open lot for a user and symbol, or nil, nil.
func (r *PositionRepository) FindOldestOpen(ctx context.Context, userID uint, symbol string) (*models.Position, error) {
	if symbol == "" {
		return nil, errors.New("invalid symbol")
	}
	var position models.Position
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ? AND status = ?", userID, symbol, models.PositionStatusOpen).
		Order("opened_at ASC, id ASC").
		First(&position).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &position, nil
}

// MarkClosed persists the exit fields of a position that is still open.
// It reports false if another writer closed it first.
func (r *PositionRepository) MarkClosed(ctx context.Context, position *models.Position) (bool, error) {
	if position == nil || position.ID == 0 {
		return false, errors.New("position must be persisted")
	}
	res := r.db.WithContext(ctx).Model(&models.Position{}).
		Where("id = ? AND status = ?", position.ID, models.PositionStatusOpen).
		Updates(map[string]interface{}{
			"exit_price":    position.ExitPrice,
			"exit_quantity": position.ExitQuantity,
			"realized_pnl":  position.RealizedPnL,
			"status":        models.PositionStatusClosed,
			"closed_at":     position.ClosedAt,
		})
	return res.RowsAffected == 1, res.Error
}

// FindOpenPositions retrieves all open positions for a user
func (r *PositionRepository) FindOpenPositions(ctx context.Context, userID uint) ([]models.Position, error) {
	var positions []models.Position
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.PositionStatusOpen).
		Order("opened_at ASC, id ASC").
		Find(&positions).Error
	return positions, err
}

// FindByGroup returns every lot opened for one trade episode.
func (r *PositionRepository) FindByGroup(ctx context.Context, groupID string) ([]models.Position, error) {
	var positions []models.Position
	err := r.db.WithContext(ctx).Where("position_group_id = ?", groupID).Order("id ASC").Find(&positions).Error
	return positions, err
}

// GetTotalPnL sums realized PnL for a user's positions closed within a time range
func (r *PositionRepository) GetTotalPnL(ctx context.Context, userID uint, start, end time.Time) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&models.Position{}).
		Select("COALESCE(SUM(realized_pnl), 0)").
		Where("user_id = ? AND status = ? AND closed_at BETWEEN ? AND ?", userID, models.PositionStatusClosed, start, end).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Decimal, nil
}
