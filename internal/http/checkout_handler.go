package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/domain"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/metrics"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/service"
)

type CheckoutService interface {
	Checkout(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error)
}

type PaymentService interface {
	ConfirmPayment(ctx context.Context, req service.ConfirmPaymentRequest) (*domain.Order, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	payments PaymentService
	metrics  *metrics.Metrics
	timeout  time.Duration
}

func NewCheckoutHandler(checkout CheckoutService, payments PaymentService, m *metrics.Metrics, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		payments: payments,
		metrics:  m,
		timeout:  timeout,
	}
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CheckoutRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, validationDetails(err))
		return
	}

	res, err := h.checkout.Checkout(ctx, service.CheckoutRequest{
		UserID:          userID,
		ShippingAddress: req.ShippingAddress.toDomain(),
		PaymentMethod:   domain.PaymentMethod(req.PaymentMethod),
	})
	h.recordCheckout(req.PaymentMethod, err)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, CheckoutResponseDTO{
		Order:   res.Order,
		Payment: res.Intent,
	})
}

// POST /api/v1/payments/verify
func (h *CheckoutHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req VerifyPaymentRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, validationDetails(err))
		return
	}

	order, err := h.payments.ConfirmPayment(ctx, service.ConfirmPaymentRequest{
		UserID:           userID,
		OrderID:          req.OrderID,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
	})
	if h.metrics != nil {
		h.metrics.Confirmations.WithLabelValues(outcome(err)).Inc()
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func (h *CheckoutHandler) recordCheckout(method string, err error) {
	if h.metrics == nil {
		return
	}
	h.metrics.Checkouts.WithLabelValues(method, outcome(err)).Inc()
}

func outcome(err error) string {
	var vErr *domain.ValidationError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &vErr):
		return "invalid"
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, domain.ErrPaymentProvider):
		return "provider_error"
	default:
		return "error"
	}
}
