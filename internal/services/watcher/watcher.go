// Package watcher follows the leader's order stream and reacts to each fill
// exactly once.
package watcher

import (
	"CopyTradeBot/config"
	"CopyTradeBot/internal/exchange"
	"CopyTradeBot/internal/metrics"
	"CopyTradeBot/internal/models"
	"CopyTradeBot/internal/operations/credentials"
	"CopyTradeBot/internal/services/copier"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type state int

const (
	stateConnecting state = iota
	stateStreaming
	stateBackoff
)

func (s state) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateStreaming:
		return "streaming"
	default:
		return "backoff"
	}
}

// Propagator replicates a leader fill to followers.
type Propagator interface {
	Propagate(ctx context.Context, fill copier.Fill) error
}

type Watcher struct {
	leader  *models.User
	creds   credentials.Source
	opener  exchange.Opener
	tracker *Tracker
	copier  Propagator
	cfg     config.WatcherConfig
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	cancel  context.CancelFunc
	stream  exchange.OrderStream
	stopped bool
}

func New(leader *models.User, creds credentials.Source, opener exchange.Opener, tracker *Tracker, propagator Propagator, cfg config.WatcherConfig, logger *zap.Logger) *Watcher {
	return &Watcher{
		leader:  leader,
		creds:   creds,
		opener:  opener,
		tracker: tracker,
		copier:  propagator,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "watcher")),
		sleep:   sleepCtx,
	}
}

// nextReconnectDelay doubles prev within [floor, ceiling].
func nextReconnectDelay(prev, floor, ceiling time.Duration) time.Duration {
	if prev < floor {
		return floor
	}
	next := prev * 2
	if next > ceiling {
		return ceiling
	}
	return next
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Start blocks until Stop is called or ctx ends. Stream failures never
// escape; they move the loop into backoff.
func (w *Watcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.cancel = cancel
	w.mu.Unlock()

	var (
		st     = stateConnecting
		delay  = w.cfg.BackoffFloor
		client exchange.Client
		stream exchange.OrderStream
	)

	for {
		if ctx.Err() != nil {
			return nil
		}

		switch st {
		case stateConnecting:
			var err error
			client, stream, err = w.connect(ctx)
			if err != nil {
				w.logger.Warn("leader stream connect failed", zap.Error(err), zap.Duration("retry_in", delay))
				st = stateBackoff
				continue
			}
			w.setStream(stream)
			metrics.WatcherConnected.Set(1)
			delay = w.cfg.BackoffFloor
			st = stateStreaming
			w.logger.Info("leader stream connected")

		case stateStreaming:
			err := w.consume(ctx, stream)
			w.teardown(client, stream)
			client, stream = nil, nil
			metrics.WatcherConnected.Set(0)
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Warn("leader stream dropped", zap.Error(err), zap.Duration("retry_in", delay))
			st = stateBackoff

		case stateBackoff:
			metrics.WatcherReconnects.Inc()
			if err := w.sleep(ctx, delay); err != nil {
				return nil
			}
			delay = nextReconnectDelay(delay, w.cfg.BackoffFloor, w.cfg.BackoffCeiling)
			st = stateConnecting
		}
	}
}

// Stop closes the live subscription, ignoring teardown errors, and ends Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	if w.stream != nil {
		_ = w.stream.Close()
	}
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *Watcher) setStream(stream exchange.OrderStream) {
	w.mu.Lock()
	w.stream = stream
	w.mu.Unlock()
}

func (w *Watcher) connect(ctx context.Context) (exchange.Client, exchange.OrderStream, error) {
	creds, err := w.creds.Credentials(ctx, w.leader)
	if err != nil {
		return nil, nil, err
	}
	client, err := w.opener.Open(ctx, creds)
	if err != nil {
		return nil, nil, err
	}
	stream, err := client.StreamOrders(ctx)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return client, stream, nil
}

func (w *Watcher) teardown(client exchange.Client, stream exchange.OrderStream) {
	w.setStream(nil)
	if stream != nil {
		_ = stream.Close()
	}
	if client != nil {
		_ = client.Close()
	}
}

func (w *Watcher) consume(ctx context.Context, stream exchange.OrderStream) error {
	for {
		batch, err := stream.Next(ctx)
		if err != nil {
			return err
		}
		w.HandleBatch(ctx, batch)
	}
}

// HandleBatch processes orders sequentially so one fill's propagation
// completes before the next order is looked at. A batch already read
// from the stream is finished even if ctx is cancelled meanwhile, so a
// recorded fill always has its lot and its follower copies.
func (w *Watcher) HandleBatch(ctx context.Context, orders []exchange.Order) {
	ctx = context.WithoutCancel(ctx)
	for _, o := range orders {
		trade, filled, err := w.tracker.Track(ctx, o)
		if err != nil {
			w.logger.Error("track leader order failed", zap.String("order_id", o.ID), zap.Error(err))
			continue
		}
		if filled {
			w.handleFill(ctx, trade)
		}
	}
}

func (w *Watcher) handleFill(ctx context.Context, trade *models.LeaderTrade) {
	log := w.logger.With(
		zap.String("order_id", trade.ExchangeOrderID),
		zap.String("symbol", trade.Symbol),
		zap.String("side", trade.Side),
		zap.String("position_group", trade.PositionGroupID),
	)
	metrics.LeaderFills.WithLabelValues(trade.Side, "stream").Inc()
	log.Info("leader fill",
		zap.String("price", trade.AvgFillPrice.String()),
		zap.String("quantity", trade.FilledQuantity.String()))

	if err := w.tracker.ApplyLeaderFill(ctx, trade); err != nil {
		log.Error("leader ledger update failed", zap.Error(err))
	}
	if err := w.copier.Propagate(ctx, copier.FillFromLeaderTrade(trade)); err != nil {
		log.Error("propagation failed", zap.Error(err))
	}
}
