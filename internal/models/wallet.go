// Package models provides data models for the copy-trade ledger.
package models

import (
	"github.com/shopspring/decimal"
)

// Wallet represents the connected account and its uncommitted balance
type Wallet struct {
	Connected bool            `json:"connected"`
	Address   string          `json:"address,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
}

// NewWallet creates a connected wallet with the given opening balance
func NewWallet(address string, balance decimal.Decimal) Wallet {
	return Wallet{
		Connected: true,
		Address:   address,
		Balance:   balance,
	}
}

// DisconnectedWallet returns the zero state used after disconnect
func DisconnectedWallet() Wallet {
	return Wallet{Balance: decimal.Zero}
}
