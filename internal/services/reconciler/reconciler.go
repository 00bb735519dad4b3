// Package reconciler backfills leader activity missed while the worker was
// down. It never copies to followers.
package reconciler

import (
	"CopyTradeBot/config"
	"CopyTradeBot/internal/exchange"
	"CopyTradeBot/internal/metrics"
	"CopyTradeBot/internal/models"
	"CopyTradeBot/internal/operations/credentials"
	"CopyTradeBot/internal/services/watcher"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type Summary struct {
	Seen       int
	Inserted   int
	Ledgered   int
	ClosedSkip bool
}

type Reconciler struct {
	leader  *models.User
	creds   credentials.Source
	opener  exchange.Opener
	tracker *watcher.Tracker
	cfg     config.ReconcilerConfig
	logger  *zap.Logger
	now     func() time.Time
}

func New(leader *models.User, creds credentials.Source, opener exchange.Opener, tracker *watcher.Tracker, cfg config.ReconcilerConfig, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		leader:  leader,
		creds:   creds,
		opener:  opener,
		tracker: tracker,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "reconciler")),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run polls open orders and recently closed orders once. A failed closed
// order fetch is logged and the pass continues with what was fetched. The
// returned error is for logging; callers keep running.
func (r *Reconciler) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	creds, err := r.creds.Credentials(ctx, r.leader)
	if err != nil {
		r.logger.Error("reconcile aborted", zap.Error(err))
		return summary, fmt.Errorf("leader credentials: %w", err)
	}

	err = exchange.WithClient(ctx, r.opener, creds, func(client exchange.Client) error {
		open, err := client.FetchOpenOrders(ctx, r.cfg.OrderLimit)
		if err != nil {
			return fmt.Errorf("fetch open orders: %w", err)
		}

		since := r.now().Add(-r.cfg.Lookback)
		closed, err := client.FetchClosedOrders(ctx, since, r.cfg.OrderLimit)
		if err != nil {
			r.logger.Warn("fetch closed orders failed, continuing with open orders", zap.Error(err))
			summary.ClosedSkip = true
		}

		for _, o := range append(open, closed...) {
			summary.Seen++
			r.reconcileOrder(ctx, o, &summary)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("reconcile failed", zap.Error(err))
		return summary, err
	}

	r.logger.Info("reconcile complete",
		zap.Int("seen", summary.Seen),
		zap.Int("inserted", summary.Inserted),
		zap.Int("ledgered", summary.Ledgered))
	return summary, nil
}

func (r *Reconciler) reconcileOrder(ctx context.Context, o exchange.Order, summary *Summary) {
	trade, err := r.tracker.Backfill(ctx, o)
	if err != nil {
		r.logger.Error("backfill failed", zap.String("order_id", o.ID), zap.Error(err))
		return
	}
	if trade == nil {
		return
	}
	summary.Inserted++
	if !trade.IsFilled() {
		return
	}

	r.logger.Warn("missed leader fill backfilled, not copied to followers",
		zap.String("order_id", trade.ExchangeOrderID),
		zap.String("symbol", trade.Symbol),
		zap.String("side", trade.Side))
	metrics.LeaderFills.WithLabelValues(trade.Side, "reconcile").Inc()
	if err := r.tracker.ApplyLeaderFill(ctx, trade); err != nil {
		r.logger.Error("leader ledger update failed", zap.String("order_id", trade.ExchangeOrderID), zap.Error(err))
		return
	}
	summary.Ledgered++
}
