package reconciler

import (
	"CopyTradeBot/config"
	"CopyTradeBot/internal/exchange"
	"CopyTradeBot/internal/models"
	"CopyTradeBot/internal/operations/position"
	"CopyTradeBot/internal/repositories"
	"CopyTradeBot/internal/services/watcher"
	"CopyTradeBot/internal/testsupport"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var dec = testsupport.Dec

func filledOrder(id string, side exchange.Side) exchange.Order {
	return exchange.Order{
		ID:      id,
		Symbol:  "ETHUSDT",
		Side:    side,
		Type:    "market",
		Amount:  dec("1"),
		Average: dec("2000"),
		Filled:  dec("1"),
		Status:  exchange.OrderStatusClosed,
	}
}

func TestRunBackfillsLeaderOnly(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	leader := testsupport.MustCreate(t, db, testsupport.NewUser("leader@example.com", models.UserRoleLeader))
	follower := testsupport.MustCreate(t, db, testsupport.NewUser("f@example.com", models.UserRoleFollower))

	trades := repositories.NewLeaderTradeRepository(db)
	positions := repositories.NewPositionRepository(db)
	followerTrades := repositories.NewFollowerTradeRepository(db)
	tracker := watcher.NewTracker(trades, position.NewLedger(positions), leader.ID, zap.NewNop())

	ex := testsupport.NewFakeExchange()
	acct := ex.Account(testsupport.KeyFor(leader.Email))
	acct.OpenOrders = []exchange.Order{{ID: "open-1", Symbol: "ETHUSDT", Side: exchange.SideBuy, Type: "limit", Amount: dec("1"), Status: exchange.OrderStatusOpen}}
	acct.ClosedOrders = []exchange.Order{filledOrder("closed-1", exchange.SideBuy)}

	r := New(leader, testsupport.PlainCredentials{}, ex, tracker, config.ReconcilerConfig{Lookback: 24 * time.Hour, OrderLimit: 100}, zap.NewNop())

	summary, err := r.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Inserted)
	require.Equal(t, 1, summary.Ledgered)

	open, err := positions.FindOpenPositions(ctx, leader.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)

	n, err := followerTrades.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	followerPositions, err := positions.FindOpenPositions(ctx, follower.ID)
	require.NoError(t, err)
	require.Empty(t, followerPositions)
	require.Equal(t, 1, acct.CloseCount())

	// a second pass sees only known orders
	summary, err = r.Run(ctx)
	require.NoError(t, err)
	require.Zero(t, summary.Inserted)
	open, err = positions.FindOpenPositions(ctx, leader.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)
}

func TestRunContinuesWhenClosedOrdersFail(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	leader := testsupport.MustCreate(t, db, testsupport.NewUser("leader@example.com", models.UserRoleLeader))
	trades := repositories.NewLeaderTradeRepository(db)
	tracker := watcher.NewTracker(trades, position.NewLedger(repositories.NewPositionRepository(db)), leader.ID, zap.NewNop())

	ex := testsupport.NewFakeExchange()
	acct := ex.Account(testsupport.KeyFor(leader.Email))
	acct.OpenOrders = []exchange.Order{{ID: "open-2", Symbol: "ETHUSDT", Side: exchange.SideBuy, Type: "limit", Amount: dec("1"), Status: exchange.OrderStatusOpen}}
	acct.ClosedOrdersErr = errors.New("not supported for symbol")

	r := New(leader, testsupport.PlainCredentials{}, ex, tracker, config.ReconcilerConfig{Lookback: 24 * time.Hour, OrderLimit: 100}, zap.NewNop())
	summary, err := r.Run(ctx)
	require.NoError(t, err)
	require.True(t, summary.ClosedSkip)
	require.Equal(t, 1, summary.Inserted)
}

func TestRunReleasesClientOnFailure(t *testing.T) {
	db := testsupport.NewDB(t)
	leader := testsupport.MustCreate(t, db, testsupport.NewUser("leader@example.com", models.UserRoleLeader))
	tracker := watcher.NewTracker(repositories.NewLeaderTradeRepository(db), position.NewLedger(repositories.NewPositionRepository(db)), leader.ID, zap.NewNop())

	ex := testsupport.NewFakeExchange()
	acct := ex.Account(testsupport.KeyFor(leader.Email))
	acct.OpenOrdersErr = errors.New("503 service unavailable")

	r := New(leader, testsupport.PlainCredentials{}, ex, tracker, config.ReconcilerConfig{Lookback: 24 * time.Hour, OrderLimit: 100}, zap.NewNop())
	_, err := r.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, 1, acct.CloseCount())
}
