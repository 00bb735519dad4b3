// Package pending runs the manual-approval lifecycle of pending trades.
package pending

import (
	"CopyTradeBot/internal/metrics"
	"CopyTradeBot/internal/models"
	"CopyTradeBot/internal/operations/notify"
	"CopyTradeBot/internal/repositories"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNotFound   = errors.New("pending trade not found")
	ErrNotPending = errors.New("pending trade already acted on")
	ErrBusy       = errors.New("pending trade action in progress")
)

// Executor places the follower order for an approved trade.
type Executor interface {
	ExecutePending(ctx context.Context, trade *models.PendingTrade) (*models.FollowerTrade, error)
}

type Service struct {
	repo     *repositories.PendingTradeRepository
	executor Executor
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time

	inFlight sync.Map
}

func NewService(repo *repositories.PendingTradeRepository, executor Executor, notifier notify.Notifier, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		executor: executor,
		notifier: notifier,
		logger:   logger.With(zap.String("component", "pending")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Sweep expires every pending trade past its window and notifies the owner.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.repo.ListExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list expired: %w", err)
	}

	count := 0
	for i := range expired {
		pt := &expired[i]
		ok, err := s.repo.Transition(ctx, pt.ID, models.PendingTradeStatusPending, models.PendingTradeStatusExpired, now)
		if err != nil {
			s.logger.Error("expire failed", zap.Uint("pending_id", pt.ID), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		count++
		metrics.PendingExpired.Inc()

		err = s.notifier.Notify(ctx, pt.FollowerID, models.NotificationTypePendingExpired,
			fmt.Sprintf("%s %s expired", pt.Side, pt.Symbol),
			"The approval window passed before you acted, so the trade was not copied.",
			map[string]any{"pending_trade_id": pt.ID, "symbol": pt.Symbol, "side": pt.Side})
		if err != nil {
			s.logger.Warn("notify expired failed", zap.Uint("pending_id", pt.ID), zap.Error(err))
		}
	}
	return count, nil
}

func (s *Service) lock(id uint) (func(), error) {
	key := fmt.Sprintf("pending_%d", id)
	if _, loaded := s.inFlight.LoadOrStore(key, true); loaded {
		return nil, ErrBusy
	}
	return func() { s.inFlight.Delete(key) }, nil
}

// load returns the trade if it belongs to followerID. A zero followerID
// skips the ownership check.
func (s *Service) load(ctx context.Context, id, followerID uint) (*models.PendingTrade, error) {
	pt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if pt == nil || (followerID != 0 && pt.FollowerID != followerID) {
		return nil, ErrNotFound
	}
	if pt.Status != models.PendingTradeStatusPending {
		return nil, ErrNotPending
	}
	return pt, nil
}

// Approve claims the trade and executes it with the normal copy contract.
func (s *Service) Approve(ctx context.Context, id, followerID uint) (*models.FollowerTrade, error) {
	unlock, err := s.lock(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	pt, err := s.load(ctx, id, followerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !now.Before(pt.ExpiresAt) {
		if _, err := s.repo.Transition(ctx, pt.ID, models.PendingTradeStatusPending, models.PendingTradeStatusExpired, now); err != nil {
			return nil, err
		}
		return nil, ErrNotPending
	}

	ok, err := s.repo.Transition(ctx, pt.ID, models.PendingTradeStatusPending, models.PendingTradeStatusApproved, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotPending
	}

	trade, execErr := s.executor.ExecutePending(ctx, pt)
	if trade != nil && trade.ID != 0 {
		if err := s.repo.AttachFollowerTrade(ctx, pt.ID, trade.ID); err != nil {
			s.logger.Error("attach follower trade failed", zap.Uint("pending_id", pt.ID), zap.Error(err))
		}
	}
	return trade, execErr
}

func (s *Service) Reject(ctx context.Context, id, followerID uint) error {
	unlock, err := s.lock(id)
	if err != nil {
		return err
	}
	defer unlock()

	pt, err := s.load(ctx, id, followerID)
	if err != nil {
		return err
	}
	ok, err := s.repo.Transition(ctx, pt.ID, models.PendingTradeStatusPending, models.PendingTradeStatusRejected, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotPending
	}
	return nil
}
