package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Invoice struct {
	ID          uint   `gorm:"primaryKey"`
	FollowerID  uint   `gorm:"uniqueIndex:idx_invoice_follower_quarter;not null"`
	Quarter     string `gorm:"uniqueIndex:idx_invoice_follower_quarter;type:varchar(7);not null"`
	PeriodStart string `gorm:"type:varchar(10);not null"`
	PeriodEnd   string `gorm:"type:varchar(10);not null"`

	AverageBalance decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	BaseFee        decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	BracketFee     decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	BracketLabel   string

	StartEquity    decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	EndEquity      decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	NetDeposits    decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	NetWithdrawals decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	QuarterProfit  decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(20,8);not null"`

	Status       string `gorm:"index;not null"`
	PaymentToken string `gorm:"uniqueIndex;not null"`
	PaidAt       *time.Time
	PaidVia      *string

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

const (
	InvoiceStatusPending = "pending"
	InvoiceStatusEmailed = "emailed"
	InvoiceStatusPaid    = "paid"
	InvoiceStatusOverdue = "overdue"
)
