package ledger

import (
	"fmt"

	"github.com/copytrade-ledger/internal/types"
	"github.com/shopspring/decimal"
)

// Sentinel errors for errors.Is matching. Operations return ServiceErrors
// carrying the same codes with call-specific messages and details.
var (
	ErrInvalidAmount       = &types.ServiceError{Code: types.CodeInvalidAmount, Message: "amount must be greater than zero"}
	ErrBelowMinimum        = &types.ServiceError{Code: types.CodeBelowMinimum, Message: "amount is below the minimum"}
	ErrInsufficientBalance = &types.ServiceError{Code: types.CodeInsufficientBalance, Message: "insufficient balance"}
	ErrInvalidAddress      = &types.ServiceError{Code: types.CodeInvalidAddress, Message: "invalid account address"}
	ErrDuplicatePosition   = &types.ServiceError{Code: types.CodeDuplicatePosition, Message: "trader is already being copied"}
	ErrPositionNotFound    = &types.ServiceError{Code: types.CodePositionNotFound, Message: "copy position not found"}
	ErrInvalidParameter    = &types.ServiceError{Code: types.CodeInvalidParameter, Message: "invalid parameter"}
)

func invalidAmount(field string, amount decimal.Decimal) error {
	return types.NewServiceError(types.CodeInvalidAmount,
		fmt.Sprintf("%s must be greater than zero", field),
		map[string]interface{}{"field": field, "amount": amount.String()})
}

func belowMinimum(operation string, amount, minimum decimal.Decimal) error {
	return types.NewServiceError(types.CodeBelowMinimum,
		fmt.Sprintf("minimum %s amount is %s", operation, minimum.String()),
		map[string]interface{}{"amount": amount.String(), "minimum": minimum.String()})
}

func insufficientBalance(amount, balance decimal.Decimal) error {
	return types.NewServiceError(types.CodeInsufficientBalance,
		fmt.Sprintf("insufficient balance: requested %s, available %s", amount.String(), balance.String()),
		map[string]interface{}{"requested": amount.String(), "available": balance.String()})
}

func invalidAddress(address string) error {
	return types.NewServiceError(types.CodeInvalidAddress,
		"address must start with G and be 56 characters long",
		map[string]interface{}{"address": address})
}

func duplicatePosition(traderID string) error {
	return types.NewServiceError(types.CodeDuplicatePosition,
		fmt.Sprintf("already copying trader %s", traderID),
		map[string]interface{}{"traderId": traderID})
}

func positionNotFound(traderID string) error {
	return types.NewServiceError(types.CodePositionNotFound,
		fmt.Sprintf("no copy position for trader %s", traderID),
		map[string]interface{}{"traderId": traderID})
}

func invalidParameter(param, reason string) error {
	return types.NewServiceError(types.CodeInvalidParameter,
		fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		map[string]interface{}{"parameter": param, "reason": reason})
}
