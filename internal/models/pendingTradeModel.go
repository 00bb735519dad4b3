package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PendingTrade is a leader fill waiting for a manual-approval follower to act.
type PendingTrade struct {
	ID              uint            `gorm:"primaryKey"`
	LeaderTradeID   uint            `gorm:"index;not null"`
	FollowerID      uint            `gorm:"index;not null"`
	Symbol          string          `gorm:"not null"`
	Side            string          `gorm:"not null"`
	LeaderPrice     decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	LeaderQuantity  decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	PositionGroupID string
	Status          string    `gorm:"index;not null"`
	ExpiresAt       time.Time `gorm:"index;not null"`
	ActedAt         *time.Time
	FollowerTradeID *uint

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

const (
	PendingTradeStatusPending  = "pending"
	PendingTradeStatusApproved = "approved"
	PendingTradeStatusRejected = "rejected"
	PendingTradeStatusExpired  = "expired"
)
