// Package types provides common type definitions for the copy-trade ledger.
package types

import "errors"

// PositionStatus represents the trading state of a copy position
type PositionStatus string

const (
	// PositionActive represents a position that mirrors trades and accrues P&L
	PositionActive PositionStatus = "active"
	// PositionPaused represents a position whose trading and P&L are frozen
	PositionPaused PositionStatus = "paused"
)

// HoldingSource identifies where a portfolio holding comes from
type HoldingSource string

const (
	// SourceCopy represents capital allocated to a copy position
	SourceCopy HoldingSource = "copy"
	// SourceManual represents an open manual trade
	SourceManual HoldingSource = "manual"
)

// TradeStatus represents the lifecycle state of a manual trade
type TradeStatus string

const (
	// TradeOpen represents a trade that still contributes to holdings
	TradeOpen TradeStatus = "open"
	// TradeClosed represents a settled trade
	TradeClosed TradeStatus = "closed"
)

// EventKind identifies a ledger state change published to notification sinks
type EventKind string

const (
	EventConnected        EventKind = "connected"
	EventDisconnected     EventKind = "disconnected"
	EventDeposit          EventKind = "deposit"
	EventWithdraw         EventKind = "withdraw"
	EventPositionStarted  EventKind = "position_started"
	EventPositionReplaced EventKind = "position_replaced"
	EventPositionPaused   EventKind = "position_paused"
	EventPositionResumed  EventKind = "position_resumed"
	EventPositionStopped  EventKind = "position_stopped"
	EventPnLApplied       EventKind = "pnl_applied"
)

// StorageBackend selects the persistence implementation
type StorageBackend string

const (
	BackendMemory   StorageBackend = "memory"
	BackendSQLite   StorageBackend = "sqlite"
	BackendPostgres StorageBackend = "postgres"
	BackendRedis    StorageBackend = "redis"
)

// Error codes reported by the ledger and the services around it.
const (
	CodeInvalidAmount       = "INVALID_AMOUNT"
	CodeBelowMinimum        = "BELOW_MINIMUM"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeInvalidAddress      = "INVALID_ADDRESS"
	CodeDuplicatePosition   = "DUPLICATE_POSITION"
	CodePositionNotFound    = "POSITION_NOT_FOUND"
	CodeInvalidParameter    = "INVALID_PARAMETER"
	CodeWalletNotConnected  = "WALLET_NOT_CONNECTED"
	CodeTraderNotFound      = "TRADER_NOT_FOUND"
	CodeTradeNotFound       = "TRADE_NOT_FOUND"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Is reports whether target is a ServiceError with the same code, so that
// sentinel errors can be matched with errors.Is.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewServiceError creates a ServiceError with the given code and message
func NewServiceError(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// ErrorCode extracts the code of a ServiceError, or "" for any other error
func ErrorCode(err error) string {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
