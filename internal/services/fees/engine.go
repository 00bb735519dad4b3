// Package fees holds the quarterly maintenance fee arithmetic and the
// per-close performance fee recorder.
package fees

import (
	"github.com/shopspring/decimal"
)

// Bracket maps profit in [Min, Max) to a flat fee. A nil Max is unbounded.
type Bracket struct {
	Label string
	Min   decimal.Decimal
	Max   *decimal.Decimal
	Fee   decimal.Decimal
}

func (b Bracket) contains(profit decimal.Decimal) bool {
	if profit.LessThan(b.Min) {
		return false
	}
	return b.Max == nil || profit.LessThan(*b.Max)
}

const NoBracketLabel = "none"

func bound(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// DefaultBrackets is the fixed USD bracket table, ordered by Min.
var DefaultBrackets = []Bracket{
	{Label: "0–1K", Min: decimal.NewFromInt(0), Max: bound(1000), Fee: decimal.NewFromInt(25)},
	{Label: "1K–5K", Min: decimal.NewFromInt(1000), Max: bound(5000), Fee: decimal.NewFromInt(100)},
	{Label: "5K–10K", Min: decimal.NewFromInt(5000), Max: bound(10000), Fee: decimal.NewFromInt(300)},
	{Label: "10K–25K", Min: decimal.NewFromInt(10000), Max: bound(25000), Fee: decimal.NewFromInt(750)},
	{Label: "25K+", Min: decimal.NewFromInt(25000), Fee: decimal.NewFromInt(1500)},
}

// QuarterFee is the breakdown of one follower's quarterly charge.
type QuarterFee struct {
	Profit       decimal.Decimal
	BaseFee      decimal.Decimal
	BracketFee   decimal.Decimal
	BracketLabel string
	TotalFee     decimal.Decimal
}

type Engine struct {
	baseFee  decimal.Decimal
	brackets []Bracket
}

func NewEngine(baseFee decimal.Decimal) *Engine {
	return &Engine{baseFee: baseFee, brackets: DefaultBrackets}
}

// QuarterProfit is end − start − deposits + withdrawals.
func QuarterProfit(startEquity, endEquity, netDeposits, netWithdrawals decimal.Decimal) decimal.Decimal {
	return endEquity.Sub(startEquity).Sub(netDeposits).Add(netWithdrawals)
}

// ComputeQuarterFee always charges the base fee and adds a bracket fee only
// for positive profit.
func (e *Engine) ComputeQuarterFee(startEquity, endEquity, netDeposits, netWithdrawals decimal.Decimal) QuarterFee {
	profit := QuarterProfit(startEquity, endEquity, netDeposits, netWithdrawals)
	out := QuarterFee{
		Profit:       profit,
		BaseFee:      e.baseFee,
		BracketFee:   decimal.Zero,
		BracketLabel: NoBracketLabel,
	}
	if profit.IsPositive() {
		for _, b := range e.brackets {
			if b.contains(profit) {
				out.BracketFee = b.Fee
				out.BracketLabel = b.Label
				break
			}
		}
	}
	out.TotalFee = out.BaseFee.Add(out.BracketFee)
	return out
}
