// Package copier replicates leader fills onto follower accounts.
package copier

import (
	"CopyTradeBot/config"
	"CopyTradeBot/internal/exchange"
	"CopyTradeBot/internal/metrics"
	"CopyTradeBot/internal/models"
	"CopyTradeBot/internal/operations/credentials"
	"CopyTradeBot/internal/operations/notify"
	"CopyTradeBot/internal/operations/position"
	"CopyTradeBot/internal/repositories"
	"CopyTradeBot/internal/services/fees"
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// Fill is one leader execution to replicate.
type Fill struct {
	LeaderTradeID   uint
	Symbol          string
	Side            string
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	PositionGroupID string
}

func FillFromLeaderTrade(t *models.LeaderTrade) Fill {
	return Fill{
		LeaderTradeID:   t.ID,
		Symbol:          t.Symbol,
		Side:            t.Side,
		Price:           t.AvgFillPrice,
		Quantity:        t.FilledQuantity,
		PositionGroupID: t.PositionGroupID,
	}
}

type Deps struct {
	Users       *repositories.UserRepository
	Trades      *repositories.FollowerTradeRepository
	Pending     *repositories.PendingTradeRepository
	Ledger      *position.Ledger
	Fees        *fees.Recorder
	Credentials credentials.Source
	Opener      exchange.Opener
	Notifier    notify.Notifier
}

type Copier struct {
	Deps
	cfg    config.CopyConfig
	quote  string
	logger *zap.Logger
	now    func() time.Time
}

func New(deps Deps, cfg config.CopyConfig, quoteCurrency string, logger *zap.Logger) *Copier {
	return &Copier{
		Deps:   deps,
		cfg:    cfg,
		quote:  quoteCurrency,
		logger: logger.With(zap.String("component", "copier")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Propagate fans a fill out to every eligible follower. Each follower is
// handled independently; failures are logged and never abort siblings.
// In-flight placements are not cancelled when ctx ends.
func (c *Copier) Propagate(ctx context.Context, fill Fill) error {
	ctx = context.WithoutCancel(ctx)

	followers, err := c.Users.ListEligibleFollowers(ctx)
	if err != nil {
		return fmt.Errorf("list followers: %w", err)
	}
	if len(followers) == 0 {
		return nil
	}

	workers := c.cfg.MaxWorkers
	if workers <= 0 || workers > len(followers) {
		workers = len(followers)
	}
	p := pool.New().WithMaxGoroutines(workers)
	for i := range followers {
		follower := followers[i]
		p.Go(func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("follower copy panicked",
						zap.Uint("follower_id", follower.ID), zap.Any("panic", r))
				}
			}()
			c.propagateTo(ctx, &follower, fill)
		})
	}
	p.Wait()
	return nil
}

func (c *Copier) propagateTo(ctx context.Context, follower *models.User, fill Fill) {
	log := c.logger.With(
		zap.Uint("follower_id", follower.ID),
		zap.String("symbol", fill.Symbol),
		zap.String("side", fill.Side),
		zap.String("position_group", fill.PositionGroupID),
	)

	var err error
	switch {
	case follower.ManualApproval():
		err = c.queueForApproval(ctx, follower, fill)
	case fill.Side == models.SideBuy:
		_, err = c.CopyBuy(ctx, follower, fill)
	case fill.Side == models.SideSell:
		_, err = c.CopySell(ctx, follower, fill)
	default:
		err = fmt.Errorf("unknown side %q", fill.Side)
	}
	if err != nil {
		log.Warn("copy failed", zap.Error(err))
	}
}

// SizeNotional is min(free × ratio%, maxTrade). A nil or non-positive
// maxTrade means no cap.
func SizeNotional(free, ratioPercent decimal.Decimal, maxTrade *decimal.Decimal) decimal.Decimal {
	notional := free.Mul(ratioPercent).Div(hundred)
	if maxTrade != nil && maxTrade.IsPositive() {
		notional = decimal.Min(notional, *maxTrade)
	}
	return notional
}

func (c *Copier) ratioFor(follower *models.User) decimal.Decimal {
	if follower.CopyRatio != nil && follower.CopyRatio.IsPositive() {
		return *follower.CopyRatio
	}
	return c.cfg.DefaultRatio
}

// CopyBuy sizes and places a follower market buy, then opens a lot tagged
// with the leader's position group. It records exactly one FollowerTrade.
func (c *Copier) CopyBuy(ctx context.Context, follower *models.User, fill Fill) (*models.FollowerTrade, error) {
	ratio := c.ratioFor(follower)
	trade := &models.FollowerTrade{
		LeaderTradeID: fill.LeaderTradeID,
		FollowerID:    follower.ID,
		Symbol:        fill.Symbol,
		Side:          models.SideBuy,
		RatioUsed:     ratio,
	}
	if !fill.Price.IsPositive() {
		return c.recordFailure(ctx, follower, trade, fmt.Errorf("leader fill price %s is not positive", fill.Price))
	}

	var (
		skipped bool
		qty     decimal.Decimal
		result  exchange.OrderResult
	)
	err := c.withFollowerClient(ctx, follower, func(client exchange.Client) error {
		balance, err := client.FetchBalance(ctx, c.quote)
		if err != nil {
			return fmt.Errorf("fetch balance: %w", err)
		}
		notional := SizeNotional(balance.Free, ratio, follower.MaxTradeUSD)
		if notional.LessThan(c.cfg.MinNotional) {
			skipped = true
			return nil
		}
		qty = notional.Div(fill.Price)
		result, err = c.placeWithRetry(ctx, client, fill.Symbol, exchange.SideBuy, qty)
		return err
	})
	if err != nil {
		return c.recordFailure(ctx, follower, trade, err)
	}
	if skipped {
		trade.Status = models.FollowerTradeStatusSkipped
		return trade, c.record(ctx, trade)
	}

	price, filled := fillOrFallback(result, fill.Price, qty)
	c.markFilled(trade, result, price, filled)
	if err := c.record(ctx, trade); err != nil {
		return trade, err
	}
	if _, err := c.Ledger.OpenPosition(ctx, follower.ID, fill.Symbol, price, filled, fill.PositionGroupID); err != nil {
		return trade, fmt.Errorf("open follower position: %w", err)
	}
	return trade, nil
}

// CopySell closes the follower's oldest lot for the symbol. A follower with
// no open lot is skipped without a FollowerTrade row.
func (c *Copier) CopySell(ctx context.Context, follower *models.User, fill Fill) (*models.FollowerTrade, error) {
	lot, err := c.Ledger.OldestOpen(ctx, follower.ID, fill.Symbol)
	if err != nil {
		return nil, fmt.Errorf("find open position: %w", err)
	}
	if lot == nil {
		return nil, nil
	}

	trade := &models.FollowerTrade{
		LeaderTradeID: fill.LeaderTradeID,
		FollowerID:    follower.ID,
		Symbol:        fill.Symbol,
		Side:          models.SideSell,
		Quantity:      lot.EntryQuantity,
		RatioUsed:     c.ratioFor(follower),
	}

	var result exchange.OrderResult
	err = c.withFollowerClient(ctx, follower, func(client exchange.Client) error {
		var err error
		result, err = c.placeWithRetry(ctx, client, fill.Symbol, exchange.SideSell, lot.EntryQuantity)
		return err
	})
	if err != nil {
		return c.recordFailure(ctx, follower, trade, err)
	}

	price, filled := fillOrFallback(result, fill.Price, lot.EntryQuantity)
	c.markFilled(trade, result, price, filled)
	if err := c.record(ctx, trade); err != nil {
		return trade, err
	}

	closed, err := c.Ledger.ClosePosition(ctx, follower.ID, fill.Symbol, price, filled)
	if err != nil {
		return trade, fmt.Errorf("close follower position: %w", err)
	}
	if closed.Closed && closed.RealizedPnL.IsPositive() {
		if _, err := c.Fees.RecordForClose(ctx, follower.ID, closed.Position.ID, closed.RealizedPnL); err != nil {
			return trade, err
		}
	}
	return trade, nil
}

func (c *Copier) withFollowerClient(ctx context.Context, follower *models.User, fn func(exchange.Client) error) error {
	creds, err := c.Credentials.Credentials(ctx, follower)
	if err != nil {
		return err
	}
	return exchange.WithClient(ctx, c.Opener, creds, fn)
}

// fillOrFallback prefers the exchange-reported fill and falls back to the
// leader's price and the requested quantity.
func fillOrFallback(result exchange.OrderResult, leaderPrice, requested decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	price, qty := result.Average, result.Filled
	if !price.IsPositive() {
		price = leaderPrice
	}
	if !qty.IsPositive() {
		qty = requested
	}
	return price, qty
}

func (c *Copier) markFilled(trade *models.FollowerTrade, result exchange.OrderResult, price, qty decimal.Decimal) {
	trade.Status = models.FollowerTradeStatusFilled
	trade.AvgFillPrice = price
	trade.Quantity = qty
	if result.ID != "" {
		id := result.ID
		trade.ExchangeOrderID = &id
	}
}

func (c *Copier) record(ctx context.Context, trade *models.FollowerTrade) error {
	metrics.FollowerTrades.WithLabelValues(trade.Side, trade.Status).Inc()
	if err := c.Trades.Create(ctx, trade); err != nil {
		return fmt.Errorf("record follower trade: %w", err)
	}
	return nil
}

// recordFailure stores a failed row and trips the auth breaker when the
// follower's credentials were rejected.
func (c *Copier) recordFailure(ctx context.Context, follower *models.User, trade *models.FollowerTrade, cause error) (*models.FollowerTrade, error) {
	msg := cause.Error()
	trade.Status = models.FollowerTradeStatusFailed
	trade.ErrorMessage = &msg
	if err := c.record(ctx, trade); err != nil {
		c.logger.Error("failed to record failed trade", zap.Uint("follower_id", follower.ID), zap.Error(err))
	}

	if exchange.IsAuthError(cause) {
		c.disableFollower(ctx, follower, msg)
	}
	return trade, cause
}

func (c *Copier) disableFollower(ctx context.Context, follower *models.User, reason string) {
	if err := c.Users.DisableCopy(ctx, follower.ID); err != nil {
		c.logger.Error("failed to disable follower", zap.Uint("follower_id", follower.ID), zap.Error(err))
		return
	}
	metrics.CopyDisabled.Inc()
	c.logger.Warn("copying disabled after auth failure", zap.Uint("follower_id", follower.ID), zap.String("reason", reason))

	err := c.Notifier.Notify(ctx, follower.ID, models.NotificationTypeCopyDisabled,
		"Copy trading paused",
		"Your exchange API key was rejected. Update your key and re-enable copying.",
		map[string]any{"reason": reason})
	if err != nil {
		c.logger.Warn("notify failed", zap.Uint("follower_id", follower.ID), zap.Error(err))
	}
}
