// Package scheduler drives the periodic worker jobs: heartbeat, balance
// snapshots, transfer tracking, invoicing and the pending-trade sweep.
package scheduler

import (
	"CopyTradeBot/config"
	"CopyTradeBot/internal/exchange"
	"CopyTradeBot/internal/metrics"
	"CopyTradeBot/internal/models"
	"CopyTradeBot/internal/operations/credentials"
	"CopyTradeBot/internal/operations/notify"
	"CopyTradeBot/internal/repositories"
	"CopyTradeBot/internal/services/fees"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Sweeper expires overdue pending trades.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type Deps struct {
	Users       *repositories.UserRepository
	Balances    *repositories.BalanceRepository
	Equity      *repositories.EquityRepository
	Transfers   *repositories.TransferRepository
	Invoices    *repositories.InvoiceRepository
	Settings    *repositories.SettingRepository
	Credentials credentials.Source
	Opener      exchange.Opener
	Notifier    notify.Notifier
	Mailer      notify.Mailer
	FeeEngine   *fees.Engine
	Pending     Sweeper
}

type Scheduler struct {
	Deps
	cfg     config.SchedulerConfig
	billing config.BillingConfig
	quote   string
	logger  *zap.Logger
	now     func() time.Time
}

func New(deps Deps, cfg config.SchedulerConfig, billing config.BillingConfig, quoteCurrency string, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		Deps:    deps,
		cfg:     cfg,
		billing: billing,
		quote:   quoteCurrency,
		logger:  logger.With(zap.String("component", "scheduler")),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Register adds the heartbeat, the daily job check and the pending sweep.
// Each entry runs on its own cadence and never waits on the others.
func (s *Scheduler) Register(r *Runner) error {
	if _, err := r.Add(s.cfg.HeartbeatSpec, func(ctx context.Context) {
		s.runJob(ctx, "heartbeat", s.Heartbeat)
	}); err != nil {
		return fmt.Errorf("register heartbeat: %w", err)
	}
	if _, err := r.Add(s.cfg.JobsSpec, s.RunJobs); err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}
	if _, err := r.Add(s.cfg.PendingSweepSpec, func(ctx context.Context) {
		s.runJob(ctx, "pending_sweep", func(ctx context.Context) error {
			_, err := s.Pending.Sweep(ctx)
			return err
		})
	}); err != nil {
		return fmt.Errorf("register pending sweep: %w", err)
	}
	return nil
}

// RunJobs runs the three daily jobs; one failing does not stop the rest.
func (s *Scheduler) RunJobs(ctx context.Context) {
	s.runJob(ctx, "balance_snapshot", s.RunBalanceSnapshot)
	s.runJob(ctx, "transfer_tracker", s.RunTransferTracker)
	s.runJob(ctx, "invoice_generator", s.RunInvoiceGenerator)
}

func (s *Scheduler) runJob(ctx context.Context, name string, job func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.JobRuns.WithLabelValues(name, "panic").Inc()
			s.logger.Error("job panicked", zap.String("job", name), zap.Any("panic", r))
		}
	}()
	if err := job(ctx); err != nil {
		metrics.JobRuns.WithLabelValues(name, "error").Inc()
		s.logger.Error("job failed", zap.String("job", name), zap.Error(err))
		return
	}
	metrics.JobRuns.WithLabelValues(name, "ok").Inc()
}

// Heartbeat stamps the worker's liveness for the dashboard and /healthz.
func (s *Scheduler) Heartbeat(ctx context.Context) error {
	now := s.now()
	if err := s.Settings.Set(ctx, models.SettingWorkerHeartbeat, now.Format(time.RFC3339)); err != nil {
		return err
	}
	metrics.Heartbeat.Set(float64(now.Unix()))
	return nil
}

// ranToday reports whether a daily marker already holds today's date.
func (s *Scheduler) ranToday(ctx context.Context, key, today string) (bool, error) {
	last, ok, err := s.Settings.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	return ok && last == today, nil
}

func (s *Scheduler) withClient(ctx context.Context, user *models.User, fn func(exchange.Client) error) error {
	creds, err := s.Credentials.Credentials(ctx, user)
	if err != nil {
		return err
	}
	return exchange.WithClient(ctx, s.Opener, creds, fn)
}
