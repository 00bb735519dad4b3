package repositories

import (
	"CopyTradeBot/internal/models"
	"context"
	"errors"

	"gorm.io/gorm"
)

type LeaderTradeRepository struct {
	db *gorm.DB
}

// NewLeaderTradeRepository creates a new instance of LeaderTradeRepository
func NewLeaderTradeRepository(db *gorm.DB) *LeaderTradeRepository {
	return &LeaderTradeRepository{db: db}
}

func (r *LeaderTradeRepository) Create(ctx context.Context, trade *models.LeaderTrade) error {
	if trade == nil {
		return errors.New("leader trade cannot be nil")
	}
	return r.db.WithContext(ctx).Create(trade).Error
}

// FindByExchangeOrderID returns nil, nil when the order has never been seen.
func (r *LeaderTradeRepository) FindByExchangeOrderID(ctx context.Context, orderID string) (*models.LeaderTrade, error) {
	if orderID == "" {
		return nil, errors.New("invalid order id")
	}
	var trade models.LeaderTrade
	err := r.db.WithContext(ctx).Where("exchange_order_id = ?", orderID).First(&trade).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

// UpdateProgress writes the fill progress and status of an existing trade.
func (r *LeaderTradeRepository) UpdateProgress(ctx context.Context, trade *models.LeaderTrade) error {
	if trade == nil || trade.ID == 0 {
		return errors.New("leader trade must be persisted")
	}
	return r.db.WithContext(ctx).Model(trade).Updates(map[string]interface{}{
		"avg_fill_price":  trade.AvgFillPrice,
		"filled_quantity": trade.FilledQuantity,
		"status":          trade.Status,
		"raw_snapshot":    trade.RawSnapshot,
	}).Error
}

func (r *LeaderTradeRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.LeaderTrade{}).Count(&n).Error
	return n, err
}

// ListRecent returns the newest trades first.
func (r *LeaderTradeRepository) ListRecent(ctx context.Context, limit int) ([]models.LeaderTrade, error) {
	if limit <= 0 {
		limit = 50
	}
	var trades []models.LeaderTrade
	err := r.db.WithContext(ctx).Order("detected_at DESC, id DESC").Limit(limit).Find(&trades).Error
	return trades, err
}
