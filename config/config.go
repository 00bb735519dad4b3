package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Load reads an optional .env file and resolves every setting from the
// environment, falling back to defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	defaultRatio, err := envDecimal(v, "COPY_DEFAULT_RATIO")
	if err != nil {
		return nil, err
	}
	minNotional, err := envDecimal(v, "COPY_MIN_NOTIONAL")
	if err != nil {
		return nil, err
	}
	feePercent, err := envDecimal(v, "PERFORMANCE_FEE_PERCENT")
	if err != nil {
		return nil, err
	}
	baseFee, err := envDecimal(v, "BILLING_BASE_FEE")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Exchange: ExchangeConfig{
			QuoteCurrency: strings.ToUpper(v.GetString("QUOTE_CURRENCY")),
			Symbols:       getSymbols(v.GetString("TRADING_SYMBOLS")),
			Testnet:       v.GetBool("BINANCE_TESTNET"),
			RateLimit:     v.GetFloat64("EXCHANGE_RATE_LIMIT"),
			RateBurst:     v.GetInt("EXCHANGE_RATE_BURST"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			DBName:          v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Log: LogConfig{
			Level:    v.GetString("LOG_LEVEL"),
			Encoding: v.GetString("LOG_ENCODING"),
		},
		Copy: CopyConfig{
			DefaultRatio:          defaultRatio,
			MinNotional:           minNotional,
			MaxAttempts:           v.GetInt("COPY_MAX_ATTEMPTS"),
			RetryBaseDelay:        v.GetDuration("COPY_RETRY_BASE_DELAY"),
			MaxWorkers:            v.GetInt("COPY_MAX_WORKERS"),
			ApprovalWindow:        v.GetDuration("COPY_APPROVAL_WINDOW"),
			PerformanceFeePercent: feePercent,
		},
		Watcher: WatcherConfig{
			BackoffFloor:   v.GetDuration("WATCHER_BACKOFF_FLOOR"),
			BackoffCeiling: v.GetDuration("WATCHER_BACKOFF_CEILING"),
		},
		Reconciler: ReconcilerConfig{
			Lookback:   v.GetDuration("RECONCILE_LOOKBACK"),
			OrderLimit: v.GetInt("RECONCILE_ORDER_LIMIT"),
		},
		Scheduler: SchedulerConfig{
			HeartbeatSpec:        v.GetString("HEARTBEAT_SPEC"),
			JobsSpec:             v.GetString("JOBS_SPEC"),
			PendingSweepSpec:     v.GetString("PENDING_SWEEP_SPEC"),
			TransferLookbackDays: v.GetInt("TRANSFER_LOOKBACK_DAYS"),
		},
		Billing: BillingConfig{
			BaseFee:        baseFee,
			PaymentBaseURL: v.GetString("PAYMENT_BASE_URL"),
		},
		Mail: MailConfig{
			Provider:      strings.ToLower(v.GetString("EMAIL_SERVICE_PROVIDER")),
			MailgunDomain: v.GetString("MAILGUN_DOMAIN"),
			MailgunAPIKey: v.GetString("MAILGUN_PRIVATE_API_KEY"),
			SenderEmail:   v.GetString("SENDER_EMAIL"),
			SenderName:    v.GetString("SENDER_NAME"),
		},
		Security: SecurityConfig{
			CredentialKey:      v.GetString("CREDENTIAL_KEY"),
			CredentialCacheTTL: v.GetDuration("CREDENTIAL_CACHE_TTL"),
		},
		Ops: OpsConfig{
			HTTPAddr: v.GetString("OPS_HTTP_ADDR"),
		},
	}

	if cfg.Security.CredentialKey == "" {
		return nil, errors.New("CREDENTIAL_KEY is required")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("QUOTE_CURRENCY", "USDT")
	v.SetDefault("TRADING_SYMBOLS", "")
	v.SetDefault("BINANCE_TESTNET", false)
	v.SetDefault("EXCHANGE_RATE_LIMIT", 10)
	v.SetDefault("EXCHANGE_RATE_BURST", 20)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_ENCODING", "json")

	v.SetDefault("COPY_DEFAULT_RATIO", "10")
	v.SetDefault("COPY_MIN_NOTIONAL", "1")
	v.SetDefault("COPY_MAX_ATTEMPTS", 3)
	v.SetDefault("COPY_RETRY_BASE_DELAY", "1s")
	v.SetDefault("COPY_MAX_WORKERS", 8)
	v.SetDefault("COPY_APPROVAL_WINDOW", "10m")
	v.SetDefault("PERFORMANCE_FEE_PERCENT", "10")

	v.SetDefault("WATCHER_BACKOFF_FLOOR", "5s")
	v.SetDefault("WATCHER_BACKOFF_CEILING", "60s")

	v.SetDefault("RECONCILE_LOOKBACK", "24h")
	v.SetDefault("RECONCILE_ORDER_LIMIT", 100)

	v.SetDefault("HEARTBEAT_SPEC", "@every 15s")
	v.SetDefault("JOBS_SPEC", "@every 5m")
	v.SetDefault("PENDING_SWEEP_SPEC", "@every 30s")
	v.SetDefault("TRANSFER_LOOKBACK_DAYS", 30)

	v.SetDefault("BILLING_BASE_FEE", "50")
	v.SetDefault("PAYMENT_BASE_URL", "http://localhost:3000/pay")

	v.SetDefault("EMAIL_SERVICE_PROVIDER", "log")
	v.SetDefault("SENDER_NAME", "Copy Trading Desk")

	v.SetDefault("CREDENTIAL_CACHE_TTL", "10m")
	// Loopback only. The approval routes trust X-Follower-ID, which the
	// fronting proxy must set after authenticating the follower.
	v.SetDefault("OPS_HTTP_ADDR", "127.0.0.1:9090")
}

func envDecimal(v *viper.Viper, key string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// helper to get symbols
func getSymbols(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{"BTCUSDT", "ETHUSDT"} // Default pairs if none specified
	}
	var symbols []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}
