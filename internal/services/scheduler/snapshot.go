package scheduler

import (
	"CopyTradeBot/internal/exchange"
	"CopyTradeBot/internal/models"
	"CopyTradeBot/internal/services/fees"
	"context"
	"fmt"

	"go.uber.org/zap"
)

// RunBalanceSnapshot stores one total balance per follower per day and
// captures quarter start and end equity on the boundary days.
func (s *Scheduler) RunBalanceSnapshot(ctx context.Context) error {
	now := s.now()
	today := fees.DayString(now)
	done, err := s.ranToday(ctx, models.SettingSnapshotLastRun, today)
	if err != nil || done {
		return err
	}

	followers, err := s.Users.ListEligibleFollowers(ctx)
	if err != nil {
		return fmt.Errorf("list followers: %w", err)
	}

	quarter := fees.QuarterOf(now).Label()
	firstDay := fees.IsFirstDayOfQuarter(now)
	lastDay := fees.IsLastDayOfQuarter(now)

	written := 0
	for i := range followers {
		follower := &followers[i]
		log := s.logger.With(zap.Uint("follower_id", follower.ID))

		var balance exchange.Balance
		err := s.withClient(ctx, follower, func(client exchange.Client) error {
			var err error
			balance, err = client.FetchBalance(ctx, s.quote)
			return err
		})
		if err != nil {
			log.Warn("balance fetch failed", zap.Error(err))
			continue
		}

		if err := s.Balances.Upsert(ctx, follower.ID, today, balance.Total); err != nil {
			log.Error("balance snapshot write failed", zap.Error(err))
			continue
		}
		written++
		if firstDay {
			if err := s.Equity.SetStartEquity(ctx, follower.ID, quarter, balance.Total); err != nil {
				log.Error("start equity write failed", zap.Error(err))
			}
		}
		if lastDay {
			if err := s.Equity.SetEndEquity(ctx, follower.ID, quarter, balance.Total); err != nil {
				log.Error("end equity write failed", zap.Error(err))
			}
		}
	}

	if len(followers) > 0 && written == 0 {
		// marker stays unset so the next tick retries the boundary capture
		return fmt.Errorf("no balance snapshots written for %s", today)
	}
	return s.Settings.Set(ctx, models.SettingSnapshotLastRun, today)
}
