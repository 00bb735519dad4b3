package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferRecord is a deposit or withdrawal, unique by exchange tx id.
type TransferRecord struct {
	ID       uint            `gorm:"primaryKey"`
	UserID   uint            `gorm:"index;not null"`
	TxID     string          `gorm:"column:tx_id;uniqueIndex;not null"`
	Type     string          `gorm:"not null"`
	Currency string          `gorm:"not null"`
	Amount   decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Status   string

	OccurredAt time.Time `gorm:"index;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

const (
	TransferTypeDeposit    = "deposit"
	TransferTypeWithdrawal = "withdrawal"
)
