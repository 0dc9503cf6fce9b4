package models

import (
	"github.com/copytrade-ledger/internal/types"
	"github.com/shopspring/decimal"
)

// Portfolio is derived from a wallet, its positions and open trades. It is
// recomputed on every read and never persisted.
type Portfolio struct {
	TotalValue       decimal.Decimal `json:"totalValue"`
	TotalReturn      decimal.Decimal `json:"totalReturn"`
	InvestedAmount   decimal.Decimal `json:"investedAmount"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	ActiveCopies     int             `json:"activeCopies"`
	Holdings         []Holding       `json:"holdings"`
}

// Holding aggregates the contribution of one trader or asset
type Holding struct {
	Key        string              `json:"key"`
	Asset      string              `json:"asset"`
	Source     types.HoldingSource `json:"source"`
	Quantity   decimal.Decimal     `json:"quantity"`
	TotalValue decimal.Decimal     `json:"totalValue"`
	PnL        decimal.Decimal     `json:"pnl"`
	PnLPercent decimal.Decimal     `json:"pnlPercent"`
}
