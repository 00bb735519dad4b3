package repositories

import (
	"CopyTradeBot/internal/models"
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InvoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new instance of InvoiceRepository
func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Exists reports whether a follower was already invoiced for a quarter.
func (r *InvoiceRepository) Exists(ctx context.Context, followerID uint, quarter string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("follower_id = ? AND quarter = ?", followerID, quarter).
		Count(&n).Error
	return n > 0, err
}

// CreateForQuarter inserts the invoice and records the computed profit and
// bracket on the quarter's equity snapshot in one transaction. It returns
// false without touching the snapshot when the (follower, quarter) invoice
// already exists.
func (r *InvoiceRepository) CreateForQuarter(ctx context.Context, invoice *models.Invoice) (bool, error) {
	if invoice == nil {
		return false, errors.New("invoice cannot be nil")
	}
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "follower_id"}, {Name: "quarter"}},
			DoNothing: true,
		}).Create(invoice)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true

		profit := invoice.QuarterProfit
		equity := &models.QuarterEquitySnapshot{
			UserID:         invoice.FollowerID,
			Quarter:        invoice.Quarter,
			NetDeposits:    invoice.NetDeposits,
			NetWithdrawals: invoice.NetWithdrawals,
			Profit:         &profit,
			BracketLabel:   invoice.BracketLabel,
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "quarter"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"net_deposits",
				"net_withdrawals",
				"profit",
				"bracket_label",
				"updated_at",
			}),
		}).Create(equity).Error
	})
	return created, err
}

// FindByToken returns the invoice for a payment token, or nil, nil.
func (r *InvoiceRepository) FindByToken(ctx context.Context, token string) (*models.Invoice, error) {
	if token == "" {
		return nil, errors.New("invalid token")
	}
	var invoice models.Invoice
	err := r.db.WithContext(ctx).Where("payment_token = ?", token).First(&invoice).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *InvoiceRepository) FindByQuarter(ctx context.Context, quarter string) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).Where("quarter = ?", quarter).Order("follower_id ASC").Find(&invoices).Error
	return invoices, err
}

// MarkEmailed only advances pending invoices.
func (r *InvoiceRepository) MarkEmailed(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ? AND status = ?", id, models.InvoiceStatusPending).
		Update("status", models.InvoiceStatusEmailed).Error
}

// MarkPaid settles an unpaid invoice and reports whether it changed.
func (r *InvoiceRepository) MarkPaid(ctx context.Context, id uint, via string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ? AND status <> ?", id, models.InvoiceStatusPaid).
		Updates(map[string]interface{}{
			"status":   models.InvoiceStatusPaid,
			"paid_at":  at,
			"paid_via": via,
		})
	return res.RowsAffected == 1, res.Error
}

// MarkOverdue flags unpaid invoices created before the cutoff.
func (r *InvoiceRepository) MarkOverdue(ctx context.Context, createdBefore time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("status IN ? AND created_at < ?", []string{models.InvoiceStatusPending, models.InvoiceStatusEmailed}, createdBefore).
		Update("status", models.InvoiceStatusOverdue)
	return res.RowsAffected, res.Error
}

// TotalDue sums the outstanding amount for a follower.
func (r *InvoiceRepository) TotalDue(ctx context.Context, followerID uint) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Select("COALESCE(SUM(total_amount), 0)").
		Where("follower_id = ? AND status <> ?", followerID, models.InvoiceStatusPaid).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Decimal, nil
}
