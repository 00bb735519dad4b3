package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type FollowerTrade struct {
	ID              uint            `gorm:"primaryKey"`
	LeaderTradeID   uint            `gorm:"index;not null"`
	FollowerID      uint            `gorm:"index;not null"`
	Symbol          string          `gorm:"index;not null"`
	Side            string          `gorm:"not null"`
	Quantity        decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	AvgFillPrice    decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	Status          string          `gorm:"index;not null"`
	RatioUsed       decimal.Decimal `gorm:"type:numeric(10,4);not null;default:0"`
	ExchangeOrderID *string
	ErrorMessage    *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"autoCreateTime"`

	LeaderTrade LeaderTrade `gorm:"foreignKey:LeaderTradeID"`
}

const (
	FollowerTradeStatusPending = "pending"
	FollowerTradeStatusFilled  = "filled"
	FollowerTradeStatusFailed  = "failed"
	FollowerTradeStatusSkipped = "skipped"
)
