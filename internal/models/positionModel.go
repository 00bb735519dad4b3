package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Position struct {
	ID     uint   `gorm:"primaryKey"`
	UserID uint   `gorm:"index:idx_positions_user_symbol_status;not null"`
	Symbol string `gorm:"index:idx_positions_user_symbol_status;not null"`
	Side   string `gorm:"not null"`

	EntryPrice    decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	EntryQuantity decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	ExitPrice     decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	ExitQuantity  decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	RealizedPnL   decimal.Decimal `gorm:"column:realized_pnl;type:numeric(30,10);not null;default:0"`

	Status          string `gorm:"index:idx_positions_user_symbol_status;not null"`
	PositionGroupID string `gorm:"index"`

	OpenedAt time.Time  `gorm:"index;not null"`
	ClosedAt *time.Time `gorm:"index"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

const (
	PositionStatusOpen   = "open"
	PositionStatusClosed = "closed"
)
