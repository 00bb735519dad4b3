package copier

import (
	"CopyTradeBot/internal/exchange"
	"CopyTradeBot/internal/metrics"
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// newRetryBackOff doubles from base with no jitter: base, 2×base, 4×base.
func newRetryBackOff(base time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = base * 8
	return b
}

// placeWithRetry retries only transient failures. Anything else returns on
// the first attempt.
func (c *Copier) placeWithRetry(ctx context.Context, client exchange.Client, symbol string, side exchange.Side, qty decimal.Decimal) (exchange.OrderResult, error) {
	start := time.Now()
	defer func() {
		metrics.OrderLatency.WithLabelValues(string(side)).Observe(time.Since(start).Seconds())
	}()

	attempts := c.cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	return backoff.Retry(ctx, func() (exchange.OrderResult, error) {
		res, err := client.PlaceMarketOrder(ctx, symbol, side, qty)
		if err == nil {
			return res, nil
		}
		if !exchange.IsRetryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	},
		backoff.WithBackOff(newRetryBackOff(c.cfg.RetryBaseDelay)),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			metrics.OrderRetries.Inc()
			c.logger.Info("retrying order",
				zap.String("symbol", symbol),
				zap.String("side", string(side)),
				zap.Duration("next", next),
				zap.Error(err))
		}),
	)
}
