package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"stockdesk/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONStatus writes a JSON response with an explicit status code.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// serviceError maps an application/core error to the right HTTP response.
// The message text is the error itself: the core errors are written for the
// operator, so passing them through keeps the reason visible at the edge.
func serviceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound    *core.NotFoundError
		stock       *core.InsufficientStockError
		exceedTotal *core.ExceedsOrderTotalError
		exceedRem   *core.ExceedsRemainingBalanceError
		fullyPaid   *core.AlreadyFullyPaidError
		hasPayments *core.OrderHasPaymentsError
		concurrent  *core.ConcurrentModificationError
		validation  validator.ValidationErrors
	)

	switch {
	case errors.As(err, &notFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.As(err, &stock):
		writeError(w, r, err.Error(), "INSUFFICIENT_STOCK", http.StatusConflict)
	case errors.As(err, &hasPayments):
		writeError(w, r, err.Error(), "ORDER_HAS_PAYMENTS", http.StatusConflict)
	case errors.As(err, &concurrent):
		writeError(w, r, err.Error(), "CONCURRENT_MODIFICATION", http.StatusConflict)
	case errors.As(err, &exceedTotal):
		writeError(w, r, err.Error(), "EXCEEDS_ORDER_TOTAL", http.StatusUnprocessableEntity)
	case errors.As(err, &exceedRem):
		writeError(w, r, err.Error(), "EXCEEDS_REMAINING_BALANCE", http.StatusUnprocessableEntity)
	case errors.As(err, &fullyPaid):
		writeError(w, r, err.Error(), "ALREADY_FULLY_PAID", http.StatusUnprocessableEntity)
	case errors.As(err, &validation):
		writeError(w, r, err.Error(), "VALIDATION_FAILED", http.StatusBadRequest)
	default:
		writeError(w, r, err.Error(), "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
