package watcher

import (
	"CopyTradeBot/config"
	"CopyTradeBot/internal/exchange"
	"CopyTradeBot/internal/models"
	"CopyTradeBot/internal/operations/position"
	"CopyTradeBot/internal/repositories"
	"CopyTradeBot/internal/services/copier"
	"CopyTradeBot/internal/testsupport"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var dec = testsupport.Dec

type recordingPropagator struct {
	mu      sync.Mutex
	fills   []copier.Fill
	ctxErrs []error
}

func (r *recordingPropagator) Propagate(ctx context.Context, fill copier.Fill) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fills = append(r.fills, fill)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	return nil
}

func (r *recordingPropagator) Fills() []copier.Fill {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]copier.Fill(nil), r.fills...)
}

type fixture struct {
	watcher    *Watcher
	exchange   *testsupport.FakeExchange
	leader     *models.User
	trades     *repositories.LeaderTradeRepository
	positions  *repositories.PositionRepository
	propagator *recordingPropagator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testsupport.NewDB(t)
	leader := testsupport.MustCreate(t, db, testsupport.NewUser("leader@example.com", models.UserRoleLeader))
	trades := repositories.NewLeaderTradeRepository(db)
	positions := repositories.NewPositionRepository(db)
	tracker := NewTracker(trades, position.NewLedger(positions), leader.ID, zap.NewNop())
	ex := testsupport.NewFakeExchange()
	prop := &recordingPropagator{}
	w := New(leader, testsupport.PlainCredentials{}, ex, tracker, prop, config.WatcherConfig{
		BackoffFloor:   5 * time.Second,
		BackoffCeiling: 60 * time.Second,
	}, zap.NewNop())
	return &fixture{watcher: w, exchange: ex, leader: leader, trades: trades, positions: positions, propagator: prop}
}

func order(id string, status exchange.OrderStatus, filled, avg string) exchange.Order {
	return exchange.Order{
		ID:      id,
		Symbol:  "BTCUSDT",
		Side:    exchange.SideBuy,
		Type:    "market",
		Amount:  dec("0.5"),
		Average: dec(avg),
		Filled:  dec(filled),
		Status:  status,
		Raw:     []byte(`{"id":"` + id + `"}`),
	}
}

func TestHandleBatchDeduplicatesReplays(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	batches := [][]exchange.Order{
		{order("1", exchange.OrderStatusOpen, "0", "0")},
		{order("1", exchange.OrderStatusOpen, "0.2", "30000")},
		{order("1", exchange.OrderStatusClosed, "0.5", "30010"), order("2", exchange.OrderStatusOpen, "0", "0")},
		{order("1", exchange.OrderStatusClosed, "0.5", "30010")},
		{order("1", exchange.OrderStatusOpen, "0.2", "30000")},
	}
	var statuses []string
	for _, batch := range batches {
		f.watcher.HandleBatch(ctx, batch)
		trade, err := f.trades.FindByExchangeOrderID(ctx, "1")
		require.NoError(t, err)
		statuses = append(statuses, trade.Status)
	}

	count, err := f.trades.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	require.Equal(t, []string{
		models.LeaderTradeStatusDetected,
		models.LeaderTradeStatusOpen,
		models.LeaderTradeStatusClosed,
		models.LeaderTradeStatusClosed,
		models.LeaderTradeStatusClosed,
	}, statuses)

	fills := f.propagator.Fills()
	require.Len(t, fills, 1)
	require.True(t, fills[0].Price.Equal(dec("30010")))
	require.True(t, fills[0].Quantity.Equal(dec("0.5")))

	open, err := f.positions.FindOpenPositions(ctx, f.leader.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, fills[0].PositionGroupID, open[0].PositionGroupID)
}

func TestHandleBatchImmediateFillOnFirstSight(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.watcher.HandleBatch(ctx, []exchange.Order{order("9", exchange.OrderStatusClosed, "0.5", "100")})
	f.watcher.HandleBatch(ctx, []exchange.Order{order("9", exchange.OrderStatusClosed, "0.5", "100")})

	fills := f.propagator.Fills()
	require.Len(t, fills, 1)
	require.Regexp(t, `^BTCUSDT_\d+$`, fills[0].PositionGroupID)
}

func TestHandleBatchSellClosesLeaderLot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.watcher.HandleBatch(ctx, []exchange.Order{order("b", exchange.OrderStatusClosed, "1", "100")})
	sell := order("s", exchange.OrderStatusClosed, "1", "120")
	sell.Side = exchange.SideSell
	f.watcher.HandleBatch(ctx, []exchange.Order{sell})

	open, err := f.positions.FindOpenPositions(ctx, f.leader.ID)
	require.NoError(t, err)
	require.Empty(t, open)
	require.Len(t, f.propagator.Fills(), 2)
}

func TestHandleBatchFinishesFillAfterShutdown(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.watcher.HandleBatch(ctx, []exchange.Order{order("late", exchange.OrderStatusClosed, "0.5", "100")})

	trade, err := f.trades.FindByExchangeOrderID(context.Background(), "late")
	require.NoError(t, err)
	require.NotNil(t, trade)
	require.Equal(t, models.LeaderTradeStatusClosed, trade.Status)

	open, err := f.positions.FindOpenPositions(context.Background(), f.leader.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)

	require.Len(t, f.propagator.Fills(), 1)
	f.propagator.mu.Lock()
	defer f.propagator.mu.Unlock()
	require.Equal(t, []error{nil}, f.propagator.ctxErrs)
}

func TestNextReconnectDelay(t *testing.T) {
	floor, ceiling := 5*time.Second, 60*time.Second
	tests := []struct {
		prev, want time.Duration
	}{
		{0, floor},
		{5 * time.Second, 10 * time.Second},
		{10 * time.Second, 20 * time.Second},
		{20 * time.Second, 40 * time.Second},
		{40 * time.Second, 60 * time.Second},
		{60 * time.Second, 60 * time.Second},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, nextReconnectDelay(tt.prev, floor, ceiling), "prev %s", tt.prev)
	}
}

func TestStartReconnectsAndStops(t *testing.T) {
	f := newFixture(t)
	acct := f.exchange.Account(testsupport.KeyFor(f.leader.Email))
	acct.StreamOpenErrors = []error{errors.New("dial tcp: connection refused"), errors.New("dial tcp: timeout")}
	dropping := testsupport.NewFakeStream(errors.New("websocket: close 1006"),
		[]exchange.Order{order("42", exchange.OrderStatusClosed, "0.5", "100")})
	live := testsupport.NewFakeStream(nil)
	acct.Streams = []*testsupport.FakeStream{dropping, live}

	var mu sync.Mutex
	var delays []time.Duration
	f.watcher.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return ctx.Err()
	}

	done := make(chan error, 1)
	go func() { done <- f.watcher.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		return len(f.propagator.Fills()) == 1 && acct.StreamOpenCount() == 4
	}, 2*time.Second, 5*time.Millisecond)

	f.watcher.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}

	require.True(t, live.IsClosed())
	mu.Lock()
	defer mu.Unlock()
	// the delay resets to the floor after the third attempt connects
	require.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second, 5 * time.Second}, delays)
}
