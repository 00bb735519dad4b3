package watcher

import (
	"CopyTradeBot/internal/exchange"
	"CopyTradeBot/internal/models"
	"CopyTradeBot/internal/operations/position"
	"CopyTradeBot/internal/repositories"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Tracker upserts leader orders into LeaderTrade rows and keeps the leader's
// own ledger in step with its fills.
type Tracker struct {
	trades   *repositories.LeaderTradeRepository
	ledger   *position.Ledger
	leaderID uint
	logger   *zap.Logger
	now      func() time.Time
}

func NewTracker(trades *repositories.LeaderTradeRepository, ledger *position.Ledger, leaderID uint, logger *zap.Logger) *Tracker {
	return &Tracker{
		trades:   trades,
		ledger:   ledger,
		leaderID: leaderID,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// leaderStatus maps a normalized exchange status onto the LeaderTrade lifecycle.
func leaderStatus(o exchange.Order) string {
	switch {
	case o.Status == exchange.OrderStatusClosed:
		return models.LeaderTradeStatusClosed
	case o.Status == exchange.OrderStatusOpen && o.Filled.IsPositive():
		return models.LeaderTradeStatusOpen
	default:
		return models.LeaderTradeStatusDetected
	}
}

// Track records an order observation. It reports true when this observation
// is the one that turns the trade into a usable fill, which happens at most
// once per order.
func (t *Tracker) Track(ctx context.Context, o exchange.Order) (*models.LeaderTrade, bool, error) {
	if o.ID == "" {
		return nil, false, fmt.Errorf("order without id for %s", o.Symbol)
	}
	existing, err := t.trades.FindByExchangeOrderID(ctx, o.ID)
	if err != nil {
		return nil, false, fmt.Errorf("find leader trade %s: %w", o.ID, err)
	}

	if existing == nil {
		trade, err := t.insert(ctx, o)
		if err != nil {
			return nil, false, err
		}
		return trade, trade.IsFilled(), nil
	}

	wasClosed := existing.Status == models.LeaderTradeStatusClosed
	next := leaderStatus(o)
	if models.LeaderStatusRank(next) < models.LeaderStatusRank(existing.Status) {
		// stale replay of an earlier state
		return existing, false, nil
	}
	existing.Status = next
	if o.Average.IsPositive() {
		existing.AvgFillPrice = o.Average
	}
	if o.Filled.IsPositive() {
		existing.FilledQuantity = o.Filled
	}
	if len(o.Raw) > 0 {
		existing.RawSnapshot = datatypes.JSON(o.Raw)
	}
	if err := t.trades.UpdateProgress(ctx, existing); err != nil {
		return nil, false, fmt.Errorf("update leader trade %s: %w", o.ID, err)
	}
	return existing, !wasClosed && existing.IsFilled(), nil
}

// Backfill inserts an order that has never been seen and leaves known
// orders untouched. It returns nil when the order already exists.
func (t *Tracker) Backfill(ctx context.Context, o exchange.Order) (*models.LeaderTrade, error) {
	if o.ID == "" {
		return nil, fmt.Errorf("order without id for %s", o.Symbol)
	}
	existing, err := t.trades.FindByExchangeOrderID(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("find leader trade %s: %w", o.ID, err)
	}
	if existing != nil {
		return nil, nil
	}
	return t.insert(ctx, o)
}

func (t *Tracker) insert(ctx context.Context, o exchange.Order) (*models.LeaderTrade, error) {
	detectedAt := t.now()
	trade := &models.LeaderTrade{
		ExchangeOrderID: o.ID,
		Symbol:          o.Symbol,
		Side:            string(o.Side),
		OrderType:       o.Type,
		Quantity:        o.Amount,
		LimitPrice:      o.Price,
		AvgFillPrice:    o.Average,
		FilledQuantity:  o.Filled,
		Status:          leaderStatus(o),
		PositionGroupID: fmt.Sprintf("%s_%d", o.Symbol, detectedAt.UnixMilli()),
		RawSnapshot:     datatypes.JSON(o.Raw),
		DetectedAt:      detectedAt,
	}
	if err := t.trades.Create(ctx, trade); err != nil {
		return nil, fmt.Errorf("create leader trade %s: %w", o.ID, err)
	}
	return trade, nil
}

// ApplyLeaderFill opens a leader lot for a buy or closes the oldest one for
// a sell.
func (t *Tracker) ApplyLeaderFill(ctx context.Context, trade *models.LeaderTrade) error {
	switch trade.Side {
	case models.SideBuy:
		_, err := t.ledger.OpenPosition(ctx, t.leaderID, trade.Symbol, trade.AvgFillPrice, trade.FilledQuantity, trade.PositionGroupID)
		return err
	case models.SideSell:
		res, err := t.ledger.ClosePosition(ctx, t.leaderID, trade.Symbol, trade.AvgFillPrice, trade.FilledQuantity)
		if err != nil {
			return err
		}
		if !res.Closed {
			t.logger.Info("leader sell without open position", zap.String("symbol", trade.Symbol), zap.String("order_id", trade.ExchangeOrderID))
		}
		return nil
	default:
		return fmt.Errorf("unknown side %q", trade.Side)
	}
}
