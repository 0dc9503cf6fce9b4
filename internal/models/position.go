package models

import (
	"time"

	"github.com/copytrade-ledger/internal/types"
	"github.com/shopspring/decimal"
)

// CopyPosition represents capital allocated to mirror one trader's trades
type CopyPosition struct {
	ID          string          `json:"id"`
	Trader      TraderRef       `json:"trader"`
	Amount      decimal.Decimal `json:"amount"`
	CopyRatio   decimal.Decimal `json:"copyRatio"`   // percent of the trader's size, (0,100]
	StopLoss    decimal.Decimal `json:"stopLoss"`    // percent, advisory
	TakeProfit  decimal.Decimal `json:"takeProfit"`  // percent, advisory
	MaxPerTrade decimal.Decimal `json:"maxPerTrade"` // zero means uncapped
	Active      bool            `json:"active"`
	Paused      bool            `json:"paused"`
	TotalProfit decimal.Decimal `json:"totalProfit"`
	StartDate   time.Time       `json:"startDate"`
}

// Status summarizes the Active/Paused flags
func (p *CopyPosition) Status() types.PositionStatus {
	if p.Paused || !p.Active {
		return types.PositionPaused
	}
	return types.PositionActive
}

// Trading reports whether the position currently mirrors trades and accrues P&L
func (p *CopyPosition) Trading() bool {
	return p.Active && !p.Paused
}

// CurrentValue is the amount that would be credited back on stop
func (p *CopyPosition) CurrentValue() decimal.Decimal {
	return p.Amount.Add(p.TotalProfit)
}

// ProfitPercent is TotalProfit relative to the allocated amount
func (p *CopyPosition) ProfitPercent() decimal.Decimal {
	if p.Amount.IsZero() {
		return decimal.Zero
	}
	return p.TotalProfit.Div(p.Amount).Mul(decimal.NewFromInt(100))
}
