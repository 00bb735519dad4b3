package fees

import (
	"CopyTradeBot/internal/models"
	"CopyTradeBot/internal/repositories"
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Recorder books a performance fee when a follower closes a lot at a profit.
type Recorder struct {
	feeRepo *repositories.FeeRepository
	percent decimal.Decimal
}

func NewRecorder(feeRepo *repositories.FeeRepository, percent decimal.Decimal) *Recorder {
	return &Recorder{feeRepo: feeRepo, percent: percent}
}

// RecordForClose writes a calculated Fee for a profitable close. It returns
// nil, nil when the close was not profitable.
func (r *Recorder) RecordForClose(ctx context.Context, userID uint, positionID uint, profit decimal.Decimal) (*models.Fee, error) {
	if !profit.IsPositive() {
		return nil, nil
	}
	fee := &models.Fee{
		UserID:     userID,
		PositionID: positionID,
		Profit:     profit,
		FeePercent: r.percent,
		FeeAmount:  profit.Mul(r.percent).Div(hundred),
		Status:     models.FeeStatusCalculated,
	}
	if err := r.feeRepo.Create(ctx, fee); err != nil {
		return nil, fmt.Errorf("record fee for position %d: %w", positionID, err)
	}
	return fee, nil
}
