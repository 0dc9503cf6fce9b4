package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trader represents a trader in the directory. The ledger never owns this
// data; positions hold a TraderRef copied from it.
type Trader struct {
	ID          string          `json:"id" db:"id" yaml:"id"`
	Address     string          `json:"address" db:"address" yaml:"address"`
	Username    string          `json:"username" db:"username" yaml:"username"`
	DisplayName string          `json:"displayName" db:"display_name" yaml:"displayName"`
	Avatar      string          `json:"avatar,omitempty" db:"avatar" yaml:"avatar"`
	Verified    bool            `json:"verified" db:"verified" yaml:"verified"`
	Bio         string          `json:"bio,omitempty" db:"bio" yaml:"bio"`
	Stats       TraderStats     `json:"stats" db:"stats" yaml:"stats"`
	JoinedAt    time.Time       `json:"joinedAt" db:"joined_at" yaml:"joinedAt"`
	Tags        []string        `json:"tags,omitempty" db:"tags" yaml:"tags"`
	RiskScore   decimal.Decimal `json:"riskScore" db:"risk_score" yaml:"riskScore"`
}

// TraderStats holds historical performance figures for display
type TraderStats struct {
	TotalReturn  decimal.Decimal `json:"totalReturn" yaml:"totalReturn"`
	WinRate      decimal.Decimal `json:"winRate" yaml:"winRate"`
	TotalTrades  int             `json:"totalTrades" yaml:"totalTrades"`
	MaxDrawdown  decimal.Decimal `json:"maxDrawdown" yaml:"maxDrawdown"`
	SharpeRatio  decimal.Decimal `json:"sharpeRatio" yaml:"sharpeRatio"`
	Copiers      int             `json:"copiers" yaml:"copiers"`
	TotalVolume  decimal.Decimal `json:"totalVolume" yaml:"totalVolume"`
	AvgTradeSize decimal.Decimal `json:"avgTradeSize" yaml:"avgTradeSize"`
}

// TraderRef is the read-only reference to a trader stored on a position
type TraderRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar,omitempty"`
	Verified    bool   `json:"verified"`
}

// Ref returns the reference stored on copy positions
func (t *Trader) Ref() TraderRef {
	name := t.DisplayName
	if name == "" {
		name = t.Username
	}
	return TraderRef{
		ID:          t.ID,
		DisplayName: name,
		Avatar:      t.Avatar,
		Verified:    t.Verified,
	}
}
