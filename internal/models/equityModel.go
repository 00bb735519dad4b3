package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type QuarterEquitySnapshot struct {
	ID             uint             `gorm:"primaryKey"`
	UserID         uint             `gorm:"uniqueIndex:idx_equity_user_quarter;not null"`
	Quarter        string           `gorm:"uniqueIndex:idx_equity_user_quarter;type:varchar(7);not null"`
	StartEquity    *decimal.Decimal `gorm:"type:numeric(30,10)"`
	EndEquity      *decimal.Decimal `gorm:"type:numeric(30,10)"`
	NetDeposits    decimal.Decimal  `gorm:"type:numeric(30,10);not null;default:0"`
	NetWithdrawals decimal.Decimal  `gorm:"type:numeric(30,10);not null;default:0"`
	Profit         *decimal.Decimal `gorm:"type:numeric(30,10)"`
	BracketLabel   string

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
