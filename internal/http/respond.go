package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/domain"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/pkg/logger"
)

const maxRequestBodySize = 1 << 20 // 1MB

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func respondValidationError(w http.ResponseWriter, details string) {
	respondJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "request validation failed",
		Code:    "validation_error",
		Details: details,
	})
}

// handleServiceError maps domain errors to HTTP responses. Gateway and signature
// failures get generic messages; the cause only goes to the log.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *domain.ValidationError

	switch {
	case errors.As(err, &vErr):
		respondValidationError(w, vErr.Message)
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrEmptyCart):
		respondError(w, http.StatusUnprocessableEntity, "empty_cart", domain.ErrEmptyCart.Error())
	case errors.Is(err, domain.ErrProductUnavailable):
		respondError(w, http.StatusConflict, "product_unavailable", err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		respondError(w, http.StatusPaymentRequired, "insufficient_balance", domain.ErrInsufficientBalance.Error())
	case errors.Is(err, domain.ErrInvalidSignature):
		respondError(w, http.StatusBadRequest, "invalid_signature", "payment verification failed")
	case errors.Is(err, domain.ErrOrderClosed):
		respondError(w, http.StatusConflict, "order_closed", domain.ErrOrderClosed.Error())
	case errors.Is(err, domain.ErrPaymentProvider):
		logger.FromContext(r.Context()).Error().Err(err).Msg("payment provider error")
		respondError(w, http.StatusBadGateway, "payment_provider_error", "payment provider unavailable, please retry later")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		logger.FromContext(r.Context()).Error().Err(err).Msg("unhandled service error")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}
