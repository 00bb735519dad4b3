package copier

import (
	"CopyTradeBot/config"
	"CopyTradeBot/internal/exchange"
	"CopyTradeBot/internal/models"
	"CopyTradeBot/internal/operations/notify"
	"CopyTradeBot/internal/operations/position"
	"CopyTradeBot/internal/repositories"
	"CopyTradeBot/internal/services/fees"
	"CopyTradeBot/internal/testsupport"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var dec = testsupport.Dec

type harness struct {
	db            *gorm.DB
	exchange      *testsupport.FakeExchange
	copier        *Copier
	users         *repositories.UserRepository
	trades        *repositories.FollowerTradeRepository
	positions     *repositories.PositionRepository
	fees          *repositories.FeeRepository
	pending       *repositories.PendingTradeRepository
	notifications *repositories.NotificationRepository
	ledger        *position.Ledger
}

func testCopyConfig() config.CopyConfig {
	return config.CopyConfig{
		DefaultRatio:          decimal.NewFromInt(10),
		MinNotional:           decimal.NewFromInt(1),
		MaxAttempts:           3,
		RetryBaseDelay:        time.Millisecond,
		MaxWorkers:            4,
		ApprovalWindow:        10 * time.Minute,
		PerformanceFeePercent: decimal.NewFromInt(10),
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testsupport.NewDB(t)
	h := &harness{
		db:            db,
		exchange:      testsupport.NewFakeExchange(),
		users:         repositories.NewUserRepository(db),
		trades:        repositories.NewFollowerTradeRepository(db),
		positions:     repositories.NewPositionRepository(db),
		fees:          repositories.NewFeeRepository(db),
		pending:       repositories.NewPendingTradeRepository(db),
		notifications: repositories.NewNotificationRepository(db),
	}
	h.ledger = position.NewLedger(h.positions)
	cfg := testCopyConfig()
	h.copier = New(Deps{
		Users:       h.users,
		Trades:      h.trades,
		Pending:     h.pending,
		Ledger:      h.ledger,
		Fees:        fees.NewRecorder(h.fees, cfg.PerformanceFeePercent),
		Credentials: testsupport.PlainCredentials{},
		Opener:      h.exchange,
		Notifier:    notify.NewStore(h.notifications),
	}, cfg, "USDT", zap.NewNop())
	return h
}

func (h *harness) follower(t *testing.T, email string) (*models.User, *testsupport.FakeAccount) {
	t.Helper()
	user := testsupport.MustCreate(t, h.db, testsupport.NewUser(email, models.UserRoleFollower))
	return user, h.exchange.Account(testsupport.KeyFor(email))
}

func (h *harness) leaderTrade(t *testing.T, side, price, qty string) Fill {
	t.Helper()
	lt := &models.LeaderTrade{
		ExchangeOrderID: "L-" + side + "-" + price,
		Symbol:          "BTCUSDT",
		Side:            side,
		OrderType:       "market",
		Quantity:        dec(qty),
		AvgFillPrice:    dec(price),
		FilledQuantity:  dec(qty),
		Status:          models.LeaderTradeStatusClosed,
		PositionGroupID: "BTCUSDT_1700000000000",
		DetectedAt:      time.Now().UTC(),
	}
	require.NoError(t, h.db.Create(lt).Error)
	return FillFromLeaderTrade(lt)
}

func TestCopyBuySizesFromFreeBalance(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	follower, acct := h.follower(t, "f1@example.com")
	acct.Balance = exchange.Balance{Free: dec("1000"), Total: dec("1000")}
	acct.FillPrice = dec("50000")
	fill := h.leaderTrade(t, models.SideBuy, "50000", "1")

	trade, err := h.copier.CopyBuy(ctx, follower, fill)
	require.NoError(t, err)
	require.Equal(t, models.FollowerTradeStatusFilled, trade.Status)

	placed := acct.PlacedOrders()
	require.Len(t, placed, 1)
	require.Equal(t, exchange.SideBuy, placed[0].Side)
	require.True(t, placed[0].Quantity.Equal(dec("0.002")), "qty %s", placed[0].Quantity)

	open, err := h.positions.FindOpenPositions(ctx, follower.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, fill.PositionGroupID, open[0].PositionGroupID)
	require.True(t, open[0].EntryQuantity.Equal(dec("0.002")))
	require.Equal(t, 1, acct.CloseCount())
}

func TestCopyBuyRespectsMaxTrade(t *testing.T) {
	h := newHarness(t)
	user := testsupport.NewUser("capped@example.com", models.UserRoleFollower)
	user.CopyRatio = testsupport.DecPtr("50")
	user.MaxTradeUSD = testsupport.DecPtr("100")
	follower := testsupport.MustCreate(t, h.db, user)
	acct := h.exchange.Account(testsupport.KeyFor(user.Email))
	acct.Balance = exchange.Balance{Free: dec("10000")}
	fill := h.leaderTrade(t, models.SideBuy, "50000", "1")

	_, err := h.copier.CopyBuy(context.Background(), follower, fill)
	require.NoError(t, err)
	placed := acct.PlacedOrders()
	require.Len(t, placed, 1)
	require.True(t, placed[0].Quantity.Equal(dec("0.002")), "qty %s", placed[0].Quantity)
}

func TestCopyBuySkipsBelowFloor(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	follower, acct := h.follower(t, "small@example.com")
	acct.Balance = exchange.Balance{Free: dec("5")}
	fill := h.leaderTrade(t, models.SideBuy, "50000", "1")

	trade, err := h.copier.CopyBuy(ctx, follower, fill)
	require.NoError(t, err)
	require.Equal(t, models.FollowerTradeStatusSkipped, trade.Status)
	require.Empty(t, acct.PlacedOrders())
	require.Zero(t, acct.Attempts)

	rows, err := h.trades.FindByLeaderTrade(ctx, fill.LeaderTradeID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, models.FollowerTradeStatusSkipped, rows[0].Status)
}

func TestCopyBuyRetriesRateLimit(t *testing.T) {
	h := newHarness(t)
	follower, acct := h.follower(t, "retry@example.com")
	acct.Balance = exchange.Balance{Free: dec("1000")}
	acct.PlaceErrors = []error{
		errors.New("<APIError> code=-1003, msg=429 Too many requests"),
		errors.New("read tcp: connection reset by peer"),
	}
	fill := h.leaderTrade(t, models.SideBuy, "50000", "1")

	trade, err := h.copier.CopyBuy(context.Background(), follower, fill)
	require.NoError(t, err)
	require.Equal(t, models.FollowerTradeStatusFilled, trade.Status)
	require.Equal(t, 3, acct.Attempts)
	require.Len(t, acct.PlacedOrders(), 1)
}

func TestCopyBuyGivesUpAfterThreeAttempts(t *testing.T) {
	h := newHarness(t)
	follower, acct := h.follower(t, "exhaust@example.com")
	acct.Balance = exchange.Balance{Free: dec("1000")}
	acct.PlaceErrors = []error{
		errors.New("HTTP 429 Too Many Requests (one)"),
		errors.New("HTTP 429 Too Many Requests (two)"),
		errors.New("HTTP 429 Too Many Requests (three)"),
		errors.New("HTTP 429 Too Many Requests (four)"),
	}
	fill := h.leaderTrade(t, models.SideBuy, "50000", "1")

	trade, err := h.copier.CopyBuy(context.Background(), follower, fill)
	require.ErrorContains(t, err, "(three)")
	require.Equal(t, models.FollowerTradeStatusFailed, trade.Status)
	require.Equal(t, 3, acct.Attempts)
}

func TestCopyBuyDoesNotRetryBusinessErrors(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	follower, acct := h.follower(t, "biz@example.com")
	acct.Balance = exchange.Balance{Free: dec("1000")}
	acct.PlaceErrors = []error{errors.New("insufficient balance for requested action")}
	fill := h.leaderTrade(t, models.SideBuy, "50000", "1")

	trade, err := h.copier.CopyBuy(ctx, follower, fill)
	require.Error(t, err)
	require.Equal(t, 1, acct.Attempts)
	require.Equal(t, models.FollowerTradeStatusFailed, trade.Status)
	require.NotNil(t, trade.ErrorMessage)
	require.Contains(t, *trade.ErrorMessage, "insufficient balance")

	stored, err := h.users.FindByID(ctx, follower.ID)
	require.NoError(t, err)
	require.True(t, stored.CopyEnabled)
}

func TestBusinessRejectionWithDigitsKeepsFollowerEnabled(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	follower, acct := h.follower(t, "digits@example.com")
	acct.Balance = exchange.Balance{Free: dec("1403.2")}
	acct.PlaceErrors = []error{fmt.Errorf("create order: %w", &common.APIError{
		Code:    -2010,
		Message: "Account has insufficient balance for requested action. balance 1403.2",
	})}
	fill := h.leaderTrade(t, models.SideBuy, "14290.5", "0.0004012")

	trade, err := h.copier.CopyBuy(ctx, follower, fill)
	require.Error(t, err)
	require.Equal(t, 1, acct.Attempts)
	require.Equal(t, models.FollowerTradeStatusFailed, trade.Status)

	stored, err := h.users.FindByID(ctx, follower.ID)
	require.NoError(t, err)
	require.True(t, stored.CopyEnabled)

	notes, err := h.notifications.FindByType(ctx, models.NotificationTypeCopyDisabled)
	require.NoError(t, err)
	require.Empty(t, notes)
}

func TestAuthFailureDisablesFollower(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	follower, acct := h.follower(t, "revoked@example.com")
	acct.Balance = exchange.Balance{Free: dec("1000")}
	acct.PlaceErrors = []error{errors.New("<APIError> code=-2015, msg=Invalid API-key, IP, or permissions for action.")}
	fill := h.leaderTrade(t, models.SideBuy, "50000", "1")

	_, err := h.copier.CopyBuy(ctx, follower, fill)
	require.Error(t, err)
	require.Equal(t, 1, acct.Attempts)

	stored, err := h.users.FindByID(ctx, follower.ID)
	require.NoError(t, err)
	require.False(t, stored.CopyEnabled)

	notes, err := h.notifications.FindByUser(ctx, follower.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, models.NotificationTypeCopyDisabled, notes[0].Type)
}

func TestCopySellWithoutPositionIsSilent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	follower, acct := h.follower(t, "late@example.com")
	fill := h.leaderTrade(t, models.SideSell, "60000", "1")

	trade, err := h.copier.CopySell(ctx, follower, fill)
	require.NoError(t, err)
	require.Nil(t, trade)
	require.Empty(t, acct.PlacedOrders())

	rows, err := h.trades.FindByLeaderTrade(ctx, fill.LeaderTradeID)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestCopySellClosesLotAndRecordsFee(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	follower, acct := h.follower(t, "seller@example.com")
	_, err := h.ledger.OpenPosition(ctx, follower.ID, "BTCUSDT", dec("100"), dec("1"), "g1")
	require.NoError(t, err)
	acct.FillPrice = dec("120")
	fill := h.leaderTrade(t, models.SideSell, "121", "2")

	trade, err := h.copier.CopySell(ctx, follower, fill)
	require.NoError(t, err)
	require.Equal(t, models.FollowerTradeStatusFilled, trade.Status)

	placed := acct.PlacedOrders()
	require.Len(t, placed, 1)
	require.Equal(t, exchange.SideSell, placed[0].Side)
	require.True(t, placed[0].Quantity.Equal(dec("1")))

	open, err := h.positions.FindOpenPositions(ctx, follower.ID)
	require.NoError(t, err)
	require.Empty(t, open)

	charged, err := h.fees.FindByUser(ctx, follower.ID)
	require.NoError(t, err)
	require.Len(t, charged, 1)
	require.True(t, charged[0].Profit.Equal(dec("20")), "profit %s", charged[0].Profit)
	require.True(t, charged[0].FeeAmount.Equal(dec("2")), "fee %s", charged[0].FeeAmount)
}

func TestCopySellAtLossRecordsNoFee(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	follower, acct := h.follower(t, "loser@example.com")
	_, err := h.ledger.OpenPosition(ctx, follower.ID, "BTCUSDT", dec("100"), dec("1"), "g1")
	require.NoError(t, err)
	acct.FillPrice = dec("90")
	fill := h.leaderTrade(t, models.SideSell, "90", "1")

	_, err = h.copier.CopySell(ctx, follower, fill)
	require.NoError(t, err)

	charged, err := h.fees.FindByUser(ctx, follower.ID)
	require.NoError(t, err)
	require.Empty(t, charged)
}

func TestPropagateIsolatesFollowerFailures(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	brokenUser, broken := h.follower(t, "broken@example.com")
	broken.BalanceErr = errors.New("exchange exploded")
	healthy, ok := h.follower(t, "healthy@example.com")
	ok.Balance = exchange.Balance{Free: dec("1000")}
	fill := h.leaderTrade(t, models.SideBuy, "50000", "1")

	require.NoError(t, h.copier.Propagate(ctx, fill))

	rows, err := h.trades.FindByLeaderTrade(ctx, fill.LeaderTradeID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byFollower := map[uint]string{}
	for _, row := range rows {
		byFollower[row.FollowerID] = row.Status
	}
	require.Equal(t, models.FollowerTradeStatusFilled, byFollower[healthy.ID])
	require.Equal(t, models.FollowerTradeStatusFailed, byFollower[brokenUser.ID])
}

func TestPropagateSkipsDisabledFollowers(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	follower, acct := h.follower(t, "off@example.com")
	require.NoError(t, h.users.DisableCopy(ctx, follower.ID))
	acct.Balance = exchange.Balance{Free: dec("1000")}
	fill := h.leaderTrade(t, models.SideBuy, "50000", "1")

	require.NoError(t, h.copier.Propagate(ctx, fill))
	require.Empty(t, acct.PlacedOrders())
}

func TestPropagateQueuesManualApproval(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := testsupport.NewUser("manual@example.com", models.UserRoleFollower)
	user.ApprovalMode = models.ApprovalModeManual
	follower := testsupport.MustCreate(t, h.db, user)
	acct := h.exchange.Account(testsupport.KeyFor(user.Email))
	acct.Balance = exchange.Balance{Free: dec("1000")}
	fill := h.leaderTrade(t, models.SideBuy, "50000", "1")

	require.NoError(t, h.copier.Propagate(ctx, fill))
	require.Empty(t, acct.PlacedOrders())

	var pending []models.PendingTrade
	require.NoError(t, h.db.Where("follower_id = ?", follower.ID).Find(&pending).Error)
	require.Len(t, pending, 1)
	require.Equal(t, models.PendingTradeStatusPending, pending[0].Status)
	require.WithinDuration(t, time.Now().Add(10*time.Minute), pending[0].ExpiresAt, time.Minute)

	notes, err := h.notifications.FindByUser(ctx, follower.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, models.NotificationTypePendingTrade, notes[0].Type)

	trade, err := h.copier.ExecutePending(ctx, &pending[0])
	require.NoError(t, err)
	require.Equal(t, models.FollowerTradeStatusFilled, trade.Status)
	require.Len(t, acct.PlacedOrders(), 1)
}

func TestExecutePendingOutlivesCancelledCaller(t *testing.T) {
	h := newHarness(t)
	follower, acct := h.follower(t, "approver@example.com")
	acct.Balance = exchange.Balance{Free: dec("1000")}
	acct.PlaceErrors = []error{errors.New("HTTP 429 Too Many Requests")}
	fill := h.leaderTrade(t, models.SideBuy, "50000", "1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	trade, err := h.copier.ExecutePending(ctx, &models.PendingTrade{
		LeaderTradeID:   fill.LeaderTradeID,
		FollowerID:      follower.ID,
		Symbol:          fill.Symbol,
		Side:            fill.Side,
		LeaderPrice:     fill.Price,
		LeaderQuantity:  fill.Quantity,
		PositionGroupID: fill.PositionGroupID,
		Status:          models.PendingTradeStatusApproved,
	})
	require.NoError(t, err)
	require.Equal(t, models.FollowerTradeStatusFilled, trade.Status)
	require.Equal(t, 2, acct.Attempts)

	rows, err := h.trades.FindByLeaderTrade(context.Background(), fill.LeaderTradeID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	open, err := h.positions.FindOpenPositions(context.Background(), follower.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)
}

func TestRetryBackOffSchedule(t *testing.T) {
	b := newRetryBackOff(time.Second)
	b.Reset()
	require.Equal(t, time.Second, b.NextBackOff())
	require.Equal(t, 2*time.Second, b.NextBackOff())
	require.Equal(t, 4*time.Second, b.NextBackOff())
}

func TestSizeNotional(t *testing.T) {
	require.True(t, SizeNotional(dec("1000"), dec("10"), nil).Equal(dec("100")))
	require.True(t, SizeNotional(dec("1000"), dec("10"), testsupport.DecPtr("40")).Equal(dec("40")))
	require.True(t, SizeNotional(dec("1000"), dec("10"), testsupport.DecPtr("0")).Equal(dec("100")))
}
