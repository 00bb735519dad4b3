package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// LeaderTrade is one row per leader exchange order ever observed.
type LeaderTrade struct {
	ID              uint             `gorm:"primaryKey"`
	ExchangeOrderID string           `gorm:"uniqueIndex;not null"`
	Symbol          string           `gorm:"index;not null"`
	Side            string           `gorm:"not null"`
	OrderType       string           `gorm:"not null"`
	Quantity        decimal.Decimal  `gorm:"type:numeric(30,10);not null"`
	LimitPrice      *decimal.Decimal `gorm:"type:numeric(30,10)"`
	AvgFillPrice    decimal.Decimal  `gorm:"type:numeric(30,10);not null;default:0"`
	FilledQuantity  decimal.Decimal  `gorm:"type:numeric(30,10);not null;default:0"`
	Status          string           `gorm:"index;not null"`
	PositionGroupID string           `gorm:"index;not null"`
	RawSnapshot     datatypes.JSON   `gorm:"type:jsonb"`

	DetectedAt time.Time `gorm:"index;not null"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

const (
	LeaderTradeStatusDetected = "detected"
	LeaderTradeStatusOpen     = "open"
	LeaderTradeStatusClosed   = "closed"

	SideBuy  = "buy"
	SideSell = "sell"
)

// LeaderStatusRank orders statuses so updates can only move forward.
func LeaderStatusRank(status string) int {
	switch status {
	case LeaderTradeStatusOpen:
		return 1
	case LeaderTradeStatusClosed:
		return 2
	default:
		return 0
	}
}

// IsFilled reports whether the trade is closed with a usable fill.
func (t *LeaderTrade) IsFilled() bool {
	return t.Status == LeaderTradeStatusClosed &&
		t.FilledQuantity.IsPositive() &&
		t.AvgFillPrice.IsPositive()
}
