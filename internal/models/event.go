package models

import (
	"time"

	"github.com/copytrade-ledger/internal/types"
	"github.com/shopspring/decimal"
)

// Event describes one committed ledger transition. Amount is the value moved
// by the operation (deposit, withdrawal, allocation, credit or P&L delta) and
// Balance the wallet balance after it.
type Event struct {
	ID       string          `json:"id"`
	Account  string          `json:"account"`
	Kind     types.EventKind `json:"kind"`
	TraderID string          `json:"traderId,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	Balance  decimal.Decimal `json:"balance"`
	Revision uint64          `json:"revision"`
	At       time.Time       `json:"at"`
}
