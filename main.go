package main

import (
	"CopyTradeBot/config"
	"CopyTradeBot/internal/database"
	"CopyTradeBot/internal/handlers"
	"CopyTradeBot/internal/logger"
	"CopyTradeBot/internal/operations/binance"
	"CopyTradeBot/internal/operations/credentials"
	"CopyTradeBot/internal/operations/notify"
	"CopyTradeBot/internal/operations/position"
	"CopyTradeBot/internal/repositories"
	"CopyTradeBot/internal/services/copier"
	"CopyTradeBot/internal/services/fees"
	"CopyTradeBot/internal/services/pending"
	"CopyTradeBot/internal/services/reconciler"
	"CopyTradeBot/internal/services/scheduler"
	"CopyTradeBot/internal/services/watcher"
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer func() { _ = zl.Sync() }()

	// Setup database
	db, err := database.Open(cfg.Database)
	if err != nil {
		zl.Fatal("database connect failed", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db); err != nil {
			zl.Warn("database close failed", zap.Error(err))
		}
	}()
	if err := database.Migrate(db); err != nil {
		zl.Fatal("database migrate failed", zap.Error(err))
	}

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	leaderTradeRepo := repositories.NewLeaderTradeRepository(db)
	followerTradeRepo := repositories.NewFollowerTradeRepository(db)
	pendingRepo := repositories.NewPendingTradeRepository(db)
	positionRepo := repositories.NewPositionRepository(db)
	feeRepo := repositories.NewFeeRepository(db)
	balanceRepo := repositories.NewBalanceRepository(db)
	equityRepo := repositories.NewEquityRepository(db)
	transferRepo := repositories.NewTransferRepository(db)
	invoiceRepo := repositories.NewInvoiceRepository(db)
	settingRepo := repositories.NewSettingRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)

	creds, err := credentials.NewStore(cfg.Security.CredentialKey, cfg.Security.CredentialCacheTTL)
	if err != nil {
		zl.Fatal("credential store init failed", zap.Error(err))
	}
	opener := binance.NewOpener(cfg.Exchange, zl)
	notifier := notify.NewStore(notificationRepo)
	ledger := position.NewLedger(positionRepo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	leader, err := userRepo.FindLeader(ctx)
	if err != nil {
		zl.Fatal("leader lookup failed", zap.Error(err))
	}
	if leader == nil {
		zl.Fatal("no leader account configured")
	}
	if _, err := creds.Credentials(ctx, leader); err != nil {
		zl.Fatal("leader credentials unavailable", zap.Uint("leader_id", leader.ID), zap.Error(err))
	}
	zl.Info("leader account loaded", zap.Uint("leader_id", leader.ID))

	cp := copier.New(copier.Deps{
		Users:       userRepo,
		Trades:      followerTradeRepo,
		Pending:     pendingRepo,
		Ledger:      ledger,
		Fees:        fees.NewRecorder(feeRepo, cfg.Copy.PerformanceFeePercent),
		Credentials: creds,
		Opener:      opener,
		Notifier:    notifier,
	}, cfg.Copy, cfg.Exchange.QuoteCurrency, zl)

	tracker := watcher.NewTracker(leaderTradeRepo, ledger, leader.ID, zl)

	// Backfill whatever the leader did while the worker was down
	summary, err := reconciler.New(leader, creds, opener, tracker, cfg.Reconciler, zl).Run(ctx)
	if err != nil {
		zl.Error("startup reconcile failed", zap.Error(err))
	} else {
		zl.Info("startup reconcile done",
			zap.Int("seen", summary.Seen),
			zap.Int("inserted", summary.Inserted),
			zap.Int("ledgered", summary.Ledgered))
	}

	pendingService := pending.NewService(pendingRepo, cp, notifier, zl)

	sched := scheduler.New(scheduler.Deps{
		Users:       userRepo,
		Balances:    balanceRepo,
		Equity:      equityRepo,
		Transfers:   transferRepo,
		Invoices:    invoiceRepo,
		Settings:    settingRepo,
		Credentials: creds,
		Opener:      opener,
		Notifier:    notifier,
		Mailer:      notify.NewMailer(cfg.Mail, zl),
		FeeEngine:   fees.NewEngine(cfg.Billing.BaseFee),
		Pending:     pendingService,
	}, cfg.Scheduler, cfg.Billing, cfg.Exchange.QuoteCurrency, zl)

	runner := scheduler.NewRunner(zl, ctx)
	if err := sched.Register(runner); err != nil {
		zl.Fatal("scheduler register failed", zap.Error(err))
	}
	if err := sched.Heartbeat(ctx); err != nil {
		zl.Warn("initial heartbeat failed", zap.Error(err))
	}
	runner.Start()

	ops := handlers.NewOpsHandler(settingRepo, handlers.NewPendingHandler(pendingService, zl), zl)
	w := watcher.New(leader, creds, opener, tracker, cp, cfg.Watcher, zl)

	var wg conc.WaitGroup
	if cfg.Ops.HTTPAddr != "" {
		wg.Go(func() {
			if err := handlers.Serve(ctx, cfg.Ops.HTTPAddr, ops.Router(), zl); err != nil {
				zl.Error("ops server failed", zap.Error(err))
			}
		})
	}
	wg.Go(func() {
		if err := w.Start(ctx); err != nil {
			zl.Error("watcher exited", zap.Error(err))
		}
	})

	zl.Info("copy worker running")
	<-ctx.Done()
	zl.Info("shutting down")

	w.Stop()
	runner.Stop()
	wg.Wait()
	zl.Info("shutdown complete")
}
