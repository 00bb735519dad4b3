package repositories

import (
	"CopyTradeBot/internal/models"
	"context"
	"errors"

	"gorm.io/gorm"
)

type FollowerTradeRepository struct {
	db *gorm.DB
}

// NewFollowerTradeRepository creates a new instance of FollowerTradeRepository
func NewFollowerTradeRepository(db *gorm.DB) *FollowerTradeRepository {
	return &FollowerTradeRepository{db: db}
}

func (r *FollowerTradeRepository) Create(ctx context.Context, trade *models.FollowerTrade) error {
	if trade == nil {
		return errors.New("follower trade cannot be nil")
	}
	return r.db.WithContext(ctx).Omit("LeaderTrade").Create(trade).Error
}

func (r *FollowerTradeRepository) FindByLeaderTrade(ctx context.Context, leaderTradeID uint) ([]models.FollowerTrade, error) {
	var trades []models.FollowerTrade
	err := r.db.WithContext(ctx).
		Where("leader_trade_id = ?", leaderTradeID).
		Order("id ASC").
		Find(&trades).Error
	return trades, err
}

func (r *FollowerTradeRepository) FindByFollower(ctx context.Context, followerID uint, limit int) ([]models.FollowerTrade, error) {
	if limit <= 0 {
		limit = 100
	}
	var trades []models.FollowerTrade
	err := r.db.WithContext(ctx).
		Where("follower_id = ?", followerID).
		Order("id DESC").
		Limit(limit).
		Find(&trades).Error
	return trades, err
}

func (r *FollowerTradeRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.FollowerTrade{}).Count(&n).Error
	return n, err
}

// FollowerTradeStats is the outcome breakdown for one follower.
type FollowerTradeStats struct {
	FollowerID uint
	Filled     int64
	Failed     int64
	Skipped    int64
}

// SuccessRatio is filled / (filled + failed); skips are not attempts.
func (s FollowerTradeStats) SuccessRatio() float64 {
	attempts := s.Filled + s.Failed
	if attempts == 0 {
		return 0
	}
	return float64(s.Filled) / float64(attempts)
}

// StatsByFollower aggregates trade outcomes per follower.
func (r *FollowerTradeRepository) StatsByFollower(ctx context.Context) ([]FollowerTradeStats, error) {
	type row struct {
		FollowerID uint
		Status     string
		N          int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&models.FollowerTrade{}).
		Select("follower_id, status, COUNT(*) AS n").
		Group("follower_id, status").
		Order("follower_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	var stats []FollowerTradeStats
	index := make(map[uint]int)
	for _, row := range rows {
		i, ok := index[row.FollowerID]
		if !ok {
			stats = append(stats, FollowerTradeStats{FollowerID: row.FollowerID})
			i = len(stats) - 1
			index[row.FollowerID] = i
		}
		switch row.Status {
		case models.FollowerTradeStatusFilled:
			stats[i].Filled += row.N
		case models.FollowerTradeStatusFailed:
			stats[i].Failed += row.N
		case models.FollowerTradeStatusSkipped:
			stats[i].Skipped += row.N
		}
	}
	return stats, nil
}
