package position

import (
	"CopyTradeBot/internal/models"
	"CopyTradeBot/internal/repositories"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidQuantity = errors.New("position: quantity and price must be positive")

// Ledger tracks per-user, per-symbol lots. Every buy opens a new lot and
// sells close the oldest open lot first.
type Ledger struct {
	positionRepo *repositories.PositionRepository
	now          func() time.Time
}

func NewLedger(positionRepo *repositories.PositionRepository) *Ledger {
	return &Ledger{
		positionRepo: positionRepo,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CloseResult describes the outcome of ClosePosition. Closed is false when the
// user had no open lot for the symbol.
type CloseResult struct {
	Closed        bool
	Position      *models.Position
	CloseQuantity decimal.Decimal
	RealizedPnL   decimal.Decimal
}

// OpenPosition always inserts a new open lot; it never merges with an
// existing one.
func (l *Ledger) OpenPosition(ctx context.Context, userID uint, symbol string, price, qty decimal.Decimal, groupID string) (*models.Position, error) {
	if !price.IsPositive() || !qty.IsPositive() {
		return nil, ErrInvalidQuantity
	}
	pos := &models.Position{
		UserID:          userID,
		Symbol:          symbol,
		Side:            models.SideBuy,
		EntryPrice:      price,
		EntryQuantity:   qty,
		Status:          models.PositionStatusOpen,
		PositionGroupID: groupID,
		OpenedAt:        l.now(),
	}
	if err := l.positionRepo.Create(ctx, pos); err != nil {
		return nil, fmt.Errorf("open position: %w", err)
	}
	return pos, nil
}

// OldestOpen returns the lot a sell would close, or nil.
func (l *Ledger) OldestOpen(ctx context.Context, userID uint, symbol string) (*models.Position, error) {
	return l.positionRepo.FindOldestOpen(ctx, userID, symbol)
}

// ClosePosition closes the oldest open lot. Exit quantity above the lot's
// entry quantity is discarded rather than spilling into the next lot.
func (l *Ledger) ClosePosition(ctx context.Context, userID uint, symbol string, exitPrice, exitQty decimal.Decimal) (CloseResult, error) {
	if !exitPrice.IsPositive() || !exitQty.IsPositive() {
		return CloseResult{}, ErrInvalidQuantity
	}
	pos, err := l.positionRepo.FindOldestOpen(ctx, userID, symbol)
	if err != nil {
		return CloseResult{}, fmt.Errorf("find open position: %w", err)
	}
	if pos == nil {
		return CloseResult{}, nil
	}

	closeQty := decimal.Min(exitQty, pos.EntryQuantity)
	pnl := CalculatePnL(pos.EntryPrice, exitPrice, closeQty)
	closedAt := l.now()

	pos.ExitPrice = exitPrice
	pos.ExitQuantity = closeQty
	pos.RealizedPnL = pnl
	pos.Status = models.PositionStatusClosed
	pos.ClosedAt = &closedAt

	ok, err := l.positionRepo.MarkClosed(ctx, pos)
	if err != nil {
		return CloseResult{}, fmt.Errorf("close position %d: %w", pos.ID, err)
	}
	if !ok {
		return CloseResult{}, fmt.Errorf("close position %d: already closed", pos.ID)
	}

	return CloseResult{
		Closed:        true,
		Position:      pos,
		CloseQuantity: closeQty,
		RealizedPnL:   pnl,
	}, nil
}

// CalculatePnL is the realized result of closing closeQty bought at entry.
func CalculatePnL(entryPrice, exitPrice, closeQty decimal.Decimal) decimal.Decimal {
	return exitPrice.Sub(entryPrice).Mul(closeQty)
}
