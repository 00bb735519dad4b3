package copier

import (
	"CopyTradeBot/internal/models"
	"context"
	"errors"
	"fmt"
	"time"
)

// queueForApproval parks a fill for a manual-approval follower. Sells are
// only queued when the follower holds a lot to close.
func (c *Copier) queueForApproval(ctx context.Context, follower *models.User, fill Fill) error {
	if fill.Side == models.SideSell {
		lot, err := c.Ledger.OldestOpen(ctx, follower.ID, fill.Symbol)
		if err != nil {
			return fmt.Errorf("find open position: %w", err)
		}
		if lot == nil {
			return nil
		}
	}

	expiresAt := c.now().Add(c.cfg.ApprovalWindow)
	pending := &models.PendingTrade{
		LeaderTradeID:   fill.LeaderTradeID,
		FollowerID:      follower.ID,
		Symbol:          fill.Symbol,
		Side:            fill.Side,
		LeaderPrice:     fill.Price,
		LeaderQuantity:  fill.Quantity,
		PositionGroupID: fill.PositionGroupID,
		Status:          models.PendingTradeStatusPending,
		ExpiresAt:       expiresAt,
	}
	if err := c.Pending.Create(ctx, pending); err != nil {
		return fmt.Errorf("create pending trade: %w", err)
	}

	return c.Notifier.Notify(ctx, follower.ID, models.NotificationTypePendingTrade,
		fmt.Sprintf("Approve %s %s", fill.Side, fill.Symbol),
		fmt.Sprintf("The leader %s %s at %s. Approve before %s to copy it.",
			pastTense(fill.Side), fill.Symbol, fill.Price.String(), expiresAt.Format(time.RFC3339)),
		map[string]any{
			"pending_trade_id": pending.ID,
			"symbol":           fill.Symbol,
			"side":             fill.Side,
			"expires_at":       expiresAt.Format(time.RFC3339),
		})
}

// ExecutePending runs an approved pending trade through the normal sizing
// and retry path. The placement outlives a cancelled caller so the trade
// row and lot always match what reached the exchange.
func (c *Copier) ExecutePending(ctx context.Context, pending *models.PendingTrade) (*models.FollowerTrade, error) {
	ctx = context.WithoutCancel(ctx)

	follower, err := c.Users.FindByID(ctx, pending.FollowerID)
	if err != nil {
		return nil, fmt.Errorf("load follower %d: %w", pending.FollowerID, err)
	}
	if follower == nil {
		return nil, errors.New("follower not found")
	}

	fill := Fill{
		LeaderTradeID:   pending.LeaderTradeID,
		Symbol:          pending.Symbol,
		Side:            pending.Side,
		Price:           pending.LeaderPrice,
		Quantity:        pending.LeaderQuantity,
		PositionGroupID: pending.PositionGroupID,
	}
	if fill.Side == models.SideSell {
		return c.CopySell(ctx, follower, fill)
	}
	return c.CopyBuy(ctx, follower, fill)
}

func pastTense(side string) string {
	if side == models.SideSell {
		return "sold"
	}
	return "bought"
}
