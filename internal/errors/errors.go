// Package errors categorizes domain and infrastructure errors and maps them
// to HTTP status codes.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/copytrade-ledger/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents malformed input (400)
	CategoryValidation ErrorCategory = "validation"
	// CategoryBusinessRule represents well-formed requests the ledger refuses (422)
	CategoryBusinessRule ErrorCategory = "business_rule"
	// CategoryNotFound represents missing resources (404)
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryConflict represents state conflicts (409)
	CategoryConflict ErrorCategory = "conflict"
	// CategoryRateLimit represents rate limit errors (429)
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategoryDatabase represents storage errors
	CategoryDatabase ErrorCategory = "database"
	// CategorySystem represents system errors (5xx)
	CategorySystem ErrorCategory = "system"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       types.CodeInvalidParameter,
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(retryAfter int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "rate limit exceeded",
		Details: map[string]interface{}{
			"retryAfter": retryAfter,
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("database error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewServiceUnavailableError creates a service unavailable error
func NewServiceUnavailableError(service string) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusServiceUnavailable,
		Code:       "SERVICE_UNAVAILABLE",
		Message:    fmt.Sprintf("service unavailable: %s", service),
		Details: map[string]interface{}{
			"service": service,
		},
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	var svcErr *types.ServiceError
	if stderrors.As(err, &svcErr) {
		return categorizeServiceError(svcErr)
	}

	return NewInternalError("unexpected error", err)
}

var codeCategories = map[string]struct {
	category ErrorCategory
	status   int
}{
	types.CodeInvalidAmount:       {CategoryValidation, http.StatusBadRequest},
	types.CodeInvalidAddress:      {CategoryValidation, http.StatusBadRequest},
	types.CodeInvalidParameter:    {CategoryValidation, http.StatusBadRequest},
	types.CodeBelowMinimum:        {CategoryBusinessRule, http.StatusUnprocessableEntity},
	types.CodeInsufficientBalance: {CategoryBusinessRule, http.StatusUnprocessableEntity},
	types.CodePositionNotFound:    {CategoryNotFound, http.StatusNotFound},
	types.CodeTraderNotFound:      {CategoryNotFound, http.StatusNotFound},
	types.CodeWalletNotConnected:  {CategoryNotFound, http.StatusNotFound},
	types.CodeTradeNotFound:       {CategoryNotFound, http.StatusNotFound},
	types.CodeDuplicatePosition:   {CategoryConflict, http.StatusConflict},
}

// categorizeServiceError categorizes a ServiceError
func categorizeServiceError(err *types.ServiceError) *CategorizedError {
	c, ok := codeCategories[err.Code]
	if !ok {
		c.category, c.status = CategorySystem, http.StatusInternalServerError
	}
	return &CategorizedError{
		Category:   c.category,
		StatusCode: c.status,
		Code:       err.Code,
		Message:    err.Message,
		Details:    err.Details,
		Cause:      err,
	}
}

// IsRetryable reports whether another attempt could succeed. Rejections of
// the request itself and cancellation are final; everything else is retried.
func IsRetryable(err error) bool {
	if err == nil || stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !IsUserError(err)
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}
