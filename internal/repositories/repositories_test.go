package repositories_test

import (
	"CopyTradeBot/internal/models"
	"CopyTradeBot/internal/repositories"
	"CopyTradeBot/internal/testsupport"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var dec = testsupport.Dec

func leaderTrade(t *testing.T, db *gorm.DB, orderID string, detected time.Time) *models.LeaderTrade {
	t.Helper()
	trade := &models.LeaderTrade{
		ExchangeOrderID: orderID,
		Symbol:          "BTCUSDT",
		Side:            models.SideBuy,
		OrderType:       "market",
		Quantity:        dec("0.1"),
		Status:          models.LeaderTradeStatusClosed,
		PositionGroupID: "BTCUSDT_" + orderID,
		DetectedAt:      detected,
	}
	require.NoError(t, repositories.NewLeaderTradeRepository(db).Create(context.Background(), trade))
	return trade
}

func TestFollowerTradeStats(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	repo := repositories.NewFollowerTradeRepository(db)
	lt := leaderTrade(t, db, "1", time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC))

	outcomes := map[uint][]string{
		2: {models.FollowerTradeStatusFilled, models.FollowerTradeStatusFilled, models.FollowerTradeStatusFailed, models.FollowerTradeStatusSkipped},
		3: {models.FollowerTradeStatusSkipped},
	}
	for follower, statuses := range outcomes {
		for _, status := range statuses {
			require.NoError(t, repo.Create(ctx, &models.FollowerTrade{
				LeaderTradeID: lt.ID,
				FollowerID:    follower,
				Symbol:        "BTCUSDT",
				Side:          models.SideBuy,
				Status:        status,
			}))
		}
	}

	stats, err := repo.StatsByFollower(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	require.Equal(t, repositories.FollowerTradeStats{FollowerID: 2, Filled: 2, Failed: 1, Skipped: 1}, stats[0])
	require.InDelta(t, 2.0/3.0, stats[0].SuccessRatio(), 1e-9)
	require.Zero(t, stats[1].SuccessRatio())

	recent, err := repo.FindByFollower(ctx, 2, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	require.Greater(t, recent[0].ID, recent[1].ID)
}

func TestLeaderTradeListRecent(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	base := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	leaderTrade(t, db, "a", base)
	leaderTrade(t, db, "b", base.Add(time.Hour))
	leaderTrade(t, db, "c", base.Add(2*time.Hour))

	repo := repositories.NewLeaderTradeRepository(db)
	recent, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "c", recent[0].ExchangeOrderID)
	require.Equal(t, "b", recent[1].ExchangeOrderID)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func TestPositionGroupAndRealizedPnL(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	repo := repositories.NewPositionRepository(db)
	opened := time.Date(2025, time.May, 1, 10, 0, 0, 0, time.UTC)
	closed := time.Date(2025, time.May, 2, 10, 0, 0, 0, time.UTC)

	for i, pnl := range []string{"20", "-5"} {
		p := &models.Position{
			UserID:          4,
			Symbol:          "ETHUSDT",
			Side:            models.SideBuy,
			EntryPrice:      dec("2000"),
			EntryQuantity:   dec("1"),
			Status:          models.PositionStatusOpen,
			PositionGroupID: "ETHUSDT_1",
			OpenedAt:        opened.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(ctx, p))
		p.ExitPrice = dec("2000").Add(dec(pnl))
		p.ExitQuantity = dec("1")
		p.RealizedPnL = dec(pnl)
		p.ClosedAt = &closed
		ok, err := repo.MarkClosed(ctx, p)
		require.NoError(t, err)
		require.True(t, ok)
	}

	group, err := repo.FindByGroup(ctx, "ETHUSDT_1")
	require.NoError(t, err)
	require.Len(t, group, 2)

	total, err := repo.GetTotalPnL(ctx, 4, opened, closed.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, total.Equal(dec("15")), "total %s", total)

	total, err = repo.GetTotalPnL(ctx, 4, closed.Add(time.Hour), closed.Add(2*time.Hour))
	require.NoError(t, err)
	require.True(t, total.IsZero())
}

func TestFeeMarkSettledOnlyOnce(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	positions := repositories.NewPositionRepository(db)
	fees := repositories.NewFeeRepository(db)

	p := &models.Position{
		UserID:        5,
		Symbol:        "BTCUSDT",
		Side:          models.SideBuy,
		EntryPrice:    dec("100"),
		EntryQuantity: dec("1"),
		Status:        models.PositionStatusOpen,
		OpenedAt:      time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, positions.Create(ctx, p))
	fee := &models.Fee{
		UserID:     5,
		PositionID: p.ID,
		Profit:     dec("20"),
		FeePercent: dec("10"),
		FeeAmount:  dec("2"),
		Status:     models.FeeStatusCalculated,
	}
	require.NoError(t, fees.Create(ctx, fee))

	n, err := fees.MarkSettled(ctx, []uint{fee.ID})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	n, err = fees.MarkSettled(ctx, []uint{fee.ID})
	require.NoError(t, err)
	require.Zero(t, n)

	rows, err := fees.FindByUser(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, models.FeeStatusSettled, rows[0].Status)
}

func TestInvoiceLifecycle(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	repo := repositories.NewInvoiceRepository(db)

	newInvoice := func(quarter, token, total string) *models.Invoice {
		return &models.Invoice{
			FollowerID:     6,
			Quarter:        quarter,
			PeriodStart:    "2025-01-01",
			PeriodEnd:      "2025-03-31",
			AverageBalance: dec("1000"),
			BaseFee:        dec("50"),
			BracketFee:     dec("0"),
			BracketLabel:   "none",
			StartEquity:    dec("1000"),
			EndEquity:      dec("900"),
			NetDeposits:    dec("0"),
			NetWithdrawals: dec("0"),
			QuarterProfit:  dec("-100"),
			TotalAmount:    dec(total),
			Status:         models.InvoiceStatusPending,
			PaymentToken:   token,
		}
	}

	q1 := newInvoice("2025-Q1", "tok-1", "50")
	created, err := repo.CreateForQuarter(ctx, q1)
	require.NoError(t, err)
	require.True(t, created)
	created, err = repo.CreateForQuarter(ctx, newInvoice("2025-Q1", "tok-dup", "50"))
	require.NoError(t, err)
	require.False(t, created)

	q2 := newInvoice("2025-Q2", "tok-2", "75")
	_, err = repo.CreateForQuarter(ctx, q2)
	require.NoError(t, err)

	due, err := repo.TotalDue(ctx, 6)
	require.NoError(t, err)
	require.True(t, due.Equal(dec("125")), "due %s", due)

	found, err := repo.FindByToken(ctx, "tok-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, q1.ID, found.ID)
	missing, err := repo.FindByToken(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)

	paidAt := time.Date(2025, time.April, 3, 0, 0, 0, 0, time.UTC)
	ok, err := repo.MarkPaid(ctx, q1.ID, "internal_transfer", paidAt)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.MarkPaid(ctx, q1.ID, "internal_transfer", paidAt)
	require.NoError(t, err)
	require.False(t, ok)

	n, err := repo.MarkOverdue(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	due, err = repo.TotalDue(ctx, 6)
	require.NoError(t, err)
	require.True(t, due.Equal(dec("75")), "due %s", due)
}
