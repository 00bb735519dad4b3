package scheduler

import (
	"CopyTradeBot/internal/exchange"
	"CopyTradeBot/internal/models"
	"CopyTradeBot/internal/services/fees"
	"context"
	"fmt"

	"go.uber.org/zap"
)

// RunTransferTracker pulls recent deposits and withdrawals for every
// follower. Re-fetched records are dropped by the tx id constraint.
func (s *Scheduler) RunTransferTracker(ctx context.Context) error {
	now := s.now()
	today := fees.DayString(now)
	done, err := s.ranToday(ctx, models.SettingTransfersLastRun, today)
	if err != nil || done {
		return err
	}

	followers, err := s.Users.ListFollowers(ctx)
	if err != nil {
		return fmt.Errorf("list followers: %w", err)
	}
	since := now.AddDate(0, 0, -s.cfg.TransferLookbackDays)

	for i := range followers {
		follower := &followers[i]
		log := s.logger.With(zap.Uint("follower_id", follower.ID))

		var transfers []exchange.Transfer
		err := s.withClient(ctx, follower, func(client exchange.Client) error {
			deposits, err := client.FetchDeposits(ctx, since)
			if err != nil {
				return fmt.Errorf("deposits: %w", err)
			}
			withdrawals, err := client.FetchWithdrawals(ctx, since)
			if err != nil {
				return fmt.Errorf("withdrawals: %w", err)
			}
			transfers = append(deposits, withdrawals...)
			return nil
		})
		if err != nil {
			log.Warn("transfer fetch failed", zap.Error(err))
			continue
		}

		inserted := 0
		for _, t := range transfers {
			ok, err := s.Transfers.InsertIgnoreDuplicate(ctx, &models.TransferRecord{
				UserID:     follower.ID,
				TxID:       t.TxID,
				Type:       string(t.Kind),
				Currency:   t.Currency,
				Amount:     t.Amount,
				Status:     t.Status,
				OccurredAt: t.Timestamp,
			})
			if err != nil {
				log.Error("transfer write failed", zap.String("tx_id", t.TxID), zap.Error(err))
				continue
			}
			if ok {
				inserted++
			}
		}
		if inserted > 0 {
			log.Info("transfers recorded", zap.Int("count", inserted))
		}
	}

	return s.Settings.Set(ctx, models.SettingTransfersLastRun, today)
}
