package scheduler

import (
	"CopyTradeBot/internal/models"
	"CopyTradeBot/internal/operations/notify"
	"CopyTradeBot/internal/services/fees"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var minInvoiceTotal = decimal.RequireFromString("0.01")

// RunInvoiceGenerator bills the quarter that just ended. It only acts on
// the first day of a quarter and once per quarter.
func (s *Scheduler) RunInvoiceGenerator(ctx context.Context) error {
	now := s.now()
	if !fees.IsFirstDayOfQuarter(now) {
		return nil
	}
	target := fees.QuarterOf(now).Previous()

	last, ok, err := s.Settings.Get(ctx, models.SettingInvoiceQuarter)
	if err != nil {
		return fmt.Errorf("read invoice marker: %w", err)
	}
	if ok && last == target.Label() {
		return nil
	}

	followers, err := s.Users.ListFollowers(ctx)
	if err != nil {
		return fmt.Errorf("list followers: %w", err)
	}

	var failed []error
	for i := range followers {
		follower := &followers[i]
		if err := s.invoiceFollower(ctx, follower, target); err != nil {
			s.logger.Error("invoice failed",
				zap.Uint("follower_id", follower.ID),
				zap.String("quarter", target.Label()),
				zap.Error(err))
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		// marker stays unset so the next tick retries the failures
		return fmt.Errorf("%d invoices failed: %w", len(failed), errors.Join(failed...))
	}
	return s.Settings.Set(ctx, models.SettingInvoiceQuarter, target.Label())
}

func (s *Scheduler) invoiceFollower(ctx context.Context, follower *models.User, q fees.Quarter) error {
	snapshots, err := s.Balances.FindInRange(ctx, follower.ID, q.StartDate(), q.EndDate())
	if err != nil {
		return fmt.Errorf("load snapshots: %w", err)
	}
	if len(snapshots) == 0 {
		return nil
	}
	exists, err := s.Invoices.Exists(ctx, follower.ID, q.Label())
	if err != nil || exists {
		return err
	}

	sum := decimal.Zero
	for _, snap := range snapshots {
		sum = sum.Add(snap.TotalBalance)
	}
	average := sum.Div(decimal.NewFromInt(int64(len(snapshots))))

	startEquity := snapshots[0].TotalBalance
	endEquity := snapshots[len(snapshots)-1].TotalBalance
	equity, err := s.Equity.Find(ctx, follower.ID, q.Label())
	if err != nil {
		return fmt.Errorf("load equity: %w", err)
	}
	if equity != nil && equity.StartEquity != nil {
		startEquity = *equity.StartEquity
	}
	if equity != nil && equity.EndEquity != nil {
		endEquity = *equity.EndEquity
	}

	deposits, err := s.Transfers.SumByType(ctx, follower.ID, models.TransferTypeDeposit, q.Start(), q.End())
	if err != nil {
		return fmt.Errorf("sum deposits: %w", err)
	}
	withdrawals, err := s.Transfers.SumByType(ctx, follower.ID, models.TransferTypeWithdrawal, q.Start(), q.End())
	if err != nil {
		return fmt.Errorf("sum withdrawals: %w", err)
	}

	fee := s.FeeEngine.ComputeQuarterFee(startEquity, endEquity, deposits, withdrawals)
	if fee.TotalFee.LessThan(minInvoiceTotal) {
		return nil
	}

	invoice := &models.Invoice{
		FollowerID:     follower.ID,
		Quarter:        q.Label(),
		PeriodStart:    q.StartDate(),
		PeriodEnd:      q.EndDate(),
		AverageBalance: average.Round(8),
		BaseFee:        fee.BaseFee,
		BracketFee:     fee.BracketFee,
		BracketLabel:   fee.BracketLabel,
		StartEquity:    startEquity,
		EndEquity:      endEquity,
		NetDeposits:    deposits,
		NetWithdrawals: withdrawals,
		QuarterProfit:  fee.Profit,
		TotalAmount:    fee.TotalFee,
		Status:         models.InvoiceStatusPending,
		PaymentToken:   uuid.NewString(),
	}
	created, err := s.Invoices.CreateForQuarter(ctx, invoice)
	if err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	if !created {
		return nil
	}

	s.deliverInvoice(ctx, follower, invoice)
	return nil
}

// deliverInvoice emails and notifies. Delivery failures are logged; the
// invoice stays pending for a later resend.
func (s *Scheduler) deliverInvoice(ctx context.Context, follower *models.User, invoice *models.Invoice) {
	log := s.logger.With(zap.Uint("follower_id", follower.ID), zap.String("quarter", invoice.Quarter))
	amount := invoice.TotalAmount.StringFixed(2)
	paymentURL := strings.TrimRight(s.billing.PaymentBaseURL, "/") + "/" + invoice.PaymentToken

	err := s.Mailer.SendInvoiceEmail(ctx, notify.InvoiceEmail{
		ToEmail:    follower.Email,
		ToName:     follower.Name,
		Quarter:    invoice.Quarter,
		Amount:     amount,
		PaymentURL: paymentURL,
	})
	switch {
	case errors.Is(err, notify.ErrNotDelivered):
		log.Info("invoice email not delivered, left pending")
	case err != nil:
		log.Warn("invoice email failed", zap.Error(err))
	default:
		if err := s.Invoices.MarkEmailed(ctx, invoice.ID); err != nil {
			log.Warn("mark emailed failed", zap.Error(err))
		}
	}

	err = s.Notifier.Notify(ctx, follower.ID, models.NotificationTypeInvoice,
		fmt.Sprintf("Invoice for %s", invoice.Quarter),
		fmt.Sprintf("Your maintenance fee for %s is %s USD.", invoice.Quarter, amount),
		map[string]any{
			"invoice_id":    invoice.ID,
			"quarter":       invoice.Quarter,
			"amount":        amount,
			"bracket_label": invoice.BracketLabel,
			"payment_url":   paymentURL,
		})
	if err != nil {
		log.Warn("invoice notification failed", zap.Error(err))
	}
	log.Info("invoice issued", zap.String("amount", amount), zap.String("bracket", invoice.BracketLabel))
}
