package config

import (
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Exchange   ExchangeConfig
	Database   DatabaseConfig
	Log        LogConfig
	Copy       CopyConfig
	Watcher    WatcherConfig
	Reconciler ReconcilerConfig
	Scheduler  SchedulerConfig
	Billing    BillingConfig
	Mail       MailConfig
	Security   SecurityConfig
	Ops        OpsConfig
}

type ExchangeConfig struct {
	QuoteCurrency string
	Symbols       []string
	Testnet       bool
	RateLimit     float64
	RateBurst     int
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level    string
	Encoding string
}

type CopyConfig struct {
	DefaultRatio          decimal.Decimal
	MinNotional           decimal.Decimal
	MaxAttempts           int
	RetryBaseDelay        time.Duration
	MaxWorkers            int
	ApprovalWindow        time.Duration
	PerformanceFeePercent decimal.Decimal
}

type WatcherConfig struct {
	BackoffFloor   time.Duration
	BackoffCeiling time.Duration
}

type ReconcilerConfig struct {
	Lookback   time.Duration
	OrderLimit int
}

type SchedulerConfig struct {
	HeartbeatSpec        string
	JobsSpec             string
	PendingSweepSpec     string
	TransferLookbackDays int
}

type BillingConfig struct {
	BaseFee        decimal.Decimal
	PaymentBaseURL string
}

type MailConfig struct {
	Provider      string
	MailgunDomain string
	MailgunAPIKey string
	SenderEmail   string
	SenderName    string
}

type SecurityConfig struct {
	CredentialKey      string
	CredentialCacheTTL time.Duration
}

type OpsConfig struct {
	HTTPAddr string
}
