package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fee is a performance fee booked on a profitable follower close.
type Fee struct {
	ID         uint            `gorm:"primaryKey"`
	UserID     uint            `gorm:"index;not null"`
	PositionID uint            `gorm:"uniqueIndex;not null"`
	Profit     decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	FeePercent decimal.Decimal `gorm:"type:numeric(10,4);not null"`
	FeeAmount  decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Status     string          `gorm:"index;not null"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Position Position `gorm:"foreignKey:PositionID"`
}

const (
	FeeStatusCalculated = "calculated"
	FeeStatusSettled    = "settled"
)
