package repositories

import (
	"CopyTradeBot/internal/models"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type PendingTradeRepository struct {
	db *gorm.DB
}

// NewPendingTradeRepository creates a new instance of PendingTradeRepository
func NewPendingTradeRepository(db *gorm.DB) *PendingTradeRepository {
	return &PendingTradeRepository{db: db}
}

func (r *PendingTradeRepository) Create(ctx context.Context, trade *models.PendingTrade) error {
	if trade == nil {
		return errors.New("pending trade cannot be nil")
	}
	return r.db.WithContext(ctx).Create(trade).Error
}

// FindByID returns nil, nil when the pending trade does not exist.
func (r *PendingTradeRepository) FindByID(ctx context.Context, id uint) (*models.PendingTrade, error) {
	if id == 0 {
		return nil, errors.New("invalid id")
	}
	var trade models.PendingTrade
	err := r.db.WithContext(ctx).First(&trade, id).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

// ListExpired returns pending trades whose approval window has passed.
func (r *PendingTradeRepository) ListExpired(ctx context.Context, now time.Time) ([]models.PendingTrade, error) {
	var trades []models.PendingTrade
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", models.PendingTradeStatusPending, now).
		Order("expires_at ASC, id ASC").
		Find(&trades).Error
	return trades, err
}

// Transition moves a trade from one status to another only if it is still in
// the expected status. It reports whether this call made the change.
func (r *PendingTradeRepository) Transition(ctx context.Context, id uint, from, to string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.PendingTrade{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":   to,
			"acted_at": at,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *PendingTradeRepository) AttachFollowerTrade(ctx context.Context, id, followerTradeID uint) error {
	return r.db.WithContext(ctx).Model(&models.PendingTrade{}).
		Where("id = ?", id).
		Update("follower_trade_id", followerTradeID).Error
}
