package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/copytrade-ledger/internal/errors"
	"github.com/copytrade-ledger/internal/logging"
	"github.com/copytrade-ledger/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// Common error codes
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	_ = json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondCategorized sends the response for a categorized error. Server-side
// failures are logged and reported without their cause.
func respondCategorized(w http.ResponseWriter, r *http.Request, catErr *apperrors.CategorizedError) {
	if catErr.StatusCode >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).WithError(catErr).Error("Request failed")
		respondError(w, catErr.StatusCode, catErr.Code, publicMessage(catErr), catErr.Details)
		return
	}
	respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
}

func publicMessage(catErr *apperrors.CategorizedError) string {
	if catErr.Code == ErrCodeInternalError {
		return "An internal error occurred"
	}
	return catErr.Message
}

// respondServiceError maps a service error to its HTTP response.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	respondCategorized(w, r, apperrors.Categorize(err))
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// respondInvalidBody reports a body that could not be decoded
func respondInvalidBody(w http.ResponseWriter, err error) {
	respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", map[string]interface{}{
		"reason": err.Error(),
	})
}
