package models

import (
	"time"

	"github.com/copytrade-ledger/internal/types"
	"github.com/shopspring/decimal"
)

// Trade represents a manual trade that contributes to holdings while open
type Trade struct {
	ID            string            `json:"id"`
	Asset         string            `json:"asset"`
	Amount        decimal.Decimal   `json:"amount"`
	Price         decimal.Decimal   `json:"price"`
	ProfitPercent decimal.Decimal   `json:"profitPercent"`
	Status        types.TradeStatus `json:"status"`
	OpenedAt      time.Time         `json:"openedAt"`
}
