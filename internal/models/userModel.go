package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID    uint   `gorm:"primaryKey"`
	Email string `gorm:"uniqueIndex;not null"`
	Name  string
	Role  string `gorm:"index;not null"`

	CopyEnabled  bool             `gorm:"not null;default:false"`
	CopyRatio    *decimal.Decimal `gorm:"type:numeric(10,4)"`
	MaxTradeUSD  *decimal.Decimal `gorm:"column:max_trade_usd;type:numeric(20,8)"`
	ApprovalMode string           `gorm:"not null;default:'auto'"`

	APIKeyEnc    string `gorm:"column:api_key_enc"`
	APISecretEnc string `gorm:"column:api_secret_enc"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

const (
	UserRoleLeader   = "leader"
	UserRoleFollower = "follower"
	UserRoleAdmin    = "admin"

	ApprovalModeAuto   = "auto"
	ApprovalModeManual = "manual"
)

// HasCredentials reports whether both encrypted halves of the API pair are set.
func (u *User) HasCredentials() bool {
	return u.APIKeyEnc != "" && u.APISecretEnc != ""
}

func (u *User) ManualApproval() bool {
	return u.ApprovalMode == ApprovalModeManual
}
