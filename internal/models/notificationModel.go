package models

import (
	"time"

	"gorm.io/datatypes"
)

type Notification struct {
	ID       uint           `gorm:"primaryKey"`
	UserID   uint           `gorm:"index;not null"`
	Type     string         `gorm:"index;not null"`
	Title    string         `gorm:"not null"`
	Message  string         `gorm:"type:text"`
	Metadata datatypes.JSON `gorm:"type:jsonb"`
	Read     bool           `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

const (
	NotificationTypeCopyFailed     = "copy_failed"
	NotificationTypeCopyDisabled   = "copy_disabled"
	NotificationTypePendingTrade   = "pending_trade"
	NotificationTypePendingExpired = "pending_trade_expired"
	NotificationTypeInvoice        = "invoice"
)
