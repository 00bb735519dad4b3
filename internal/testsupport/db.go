// Package testsupport provides an on-disk sqlite database and an in-process
// exchange fake for package tests.
package testsupport

import (
	"CopyTradeBot/internal/database"
	"CopyTradeBot/internal/models"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated sqlite database private to the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "copytrade.db")
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// NewUser builds an unsaved user whose fake exchange account is keyed by
// "key-" + email.
func NewUser(email, role string) *models.User {
	return &models.User{
		Email:        email,
		Name:         email,
		Role:         role,
		CopyEnabled:  role == models.UserRoleFollower,
		ApprovalMode: models.ApprovalModeAuto,
		APIKeyEnc:    KeyFor(email),
		APISecretEnc: "secret-" + email,
	}
}

func KeyFor(email string) string {
	return "key-" + email
}

// MustCreate saves a user or fails the test.
func MustCreate(t testing.TB, db *gorm.DB, user *models.User) *models.User {
	t.Helper()
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", user.Email, err)
	}
	return user
}

// Dec parses a decimal literal or fails loudly.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// DecPtr is Dec returning a pointer, for nullable columns.
func DecPtr(s string) *decimal.Decimal {
	d := Dec(s)
	return &d
}
