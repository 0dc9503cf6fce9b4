package ledger

import (
	"github.com/copytrade-ledger/internal/models"
	"github.com/copytrade-ledger/internal/types"
	"github.com/shopspring/decimal"
)

type holdingAcc struct {
	holding models.Holding
	cost    decimal.Decimal
}

// ComputePortfolio derives the portfolio view from a wallet, its positions and
// manual trades. It has no side effects and depends only on its inputs:
//
//	totalValue   = balance + Σ amount + Σ totalProfit
//	totalReturn  = Σ totalProfit
//	activeCopies = count(active && !paused)
//
// Holdings are keyed by trader for copy positions and by asset for open manual
// trades, in first-seen order.
func ComputePortfolio(wallet models.Wallet, positions []models.CopyPosition, trades []models.Trade) models.Portfolio {
	invested := decimal.Zero
	totalProfit := decimal.Zero
	active := 0

	var keys []string
	acc := make(map[string]*holdingAcc)
	add := func(key string, h models.Holding, cost decimal.Decimal) {
		if existing, ok := acc[key]; ok {
			existing.holding.Quantity = existing.holding.Quantity.Add(h.Quantity)
			existing.holding.TotalValue = existing.holding.TotalValue.Add(h.TotalValue)
			existing.holding.PnL = existing.holding.PnL.Add(h.PnL)
			existing.cost = existing.cost.Add(cost)
			return
		}
		keys = append(keys, key)
		acc[key] = &holdingAcc{holding: h, cost: cost}
	}

	for i := range positions {
		p := &positions[i]
		invested = invested.Add(p.Amount)
		totalProfit = totalProfit.Add(p.TotalProfit)
		if p.Trading() {
			active++
		}

		add("trader:"+p.Trader.ID, models.Holding{
			Key:        p.Trader.ID,
			Asset:      p.Trader.DisplayName,
			Source:     types.SourceCopy,
			Quantity:   p.Amount,
			TotalValue: p.CurrentValue(),
			PnL:        p.TotalProfit,
		}, p.Amount)
	}

	for i := range trades {
		t := &trades[i]
		if t.Status != types.TradeOpen {
			continue
		}
		value := t.Amount.Mul(t.Price)
		pnl := value.Mul(t.ProfitPercent).Div(hundred)

		add("asset:"+t.Asset, models.Holding{
			Key:        t.Asset,
			Asset:      t.Asset,
			Source:     types.SourceManual,
			Quantity:   t.Amount,
			TotalValue: value.Add(pnl),
			PnL:        pnl,
		}, value)
	}

	holdings := make([]models.Holding, 0, len(keys))
	for _, key := range keys {
		a := acc[key]
		h := a.holding
		h.PnLPercent = decimal.Zero
		if !a.cost.IsZero() {
			h.PnLPercent = h.PnL.Div(a.cost).Mul(hundred)
		}
		holdings = append(holdings, h)
	}

	return models.Portfolio{
		TotalValue:       wallet.Balance.Add(invested).Add(totalProfit),
		TotalReturn:      totalProfit,
		InvestedAmount:   invested,
		AvailableBalance: wallet.Balance,
		ActiveCopies:     active,
		Holdings:         holdings,
	}
}

// RiskAssessment reports how a position's P&L compares to its thresholds
type RiskAssessment struct {
	TraderID          string          `json:"traderId"`
	ProfitPercent     decimal.Decimal `json:"profitPercent"`
	StopLossBreached  bool            `json:"stopLossBreached"`
	TakeProfitReached bool            `json:"takeProfitReached"`
}

// RiskStatus evaluates the stop-loss and take-profit thresholds of p.
// Thresholds are advisory: nothing is liquidated automatically. A zero
// threshold is treated as unset.
func RiskStatus(p models.CopyPosition) RiskAssessment {
	pct := p.ProfitPercent()
	return RiskAssessment{
		TraderID:          p.Trader.ID,
		ProfitPercent:     pct,
		StopLossBreached:  p.StopLoss.IsPositive() && pct.LessThanOrEqual(p.StopLoss.Neg()),
		TakeProfitReached: p.TakeProfit.IsPositive() && pct.GreaterThanOrEqual(p.TakeProfit),
	}
}
