package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceSnapshot holds one total quote balance per user per UTC day.
type BalanceSnapshot struct {
	ID           uint            `gorm:"primaryKey"`
	UserID       uint            `gorm:"uniqueIndex:idx_balance_user_date;not null"`
	SnapshotDate string          `gorm:"uniqueIndex:idx_balance_user_date;type:varchar(10);not null"`
	TotalBalance decimal.Decimal `gorm:"type:numeric(30,10);not null"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
