package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
	ErrInsufficientBalance = errors.New("insufficient coin balance")
	ErrInvalidSignature    = errors.New("invalid payment signature")
	ErrPaymentProvider     = errors.New("payment provider unavailable")
	ErrProductUnavailable  = errors.New("product is not available")
	ErrOrderClosed         = errors.New("order can no longer be confirmed")
	ErrIllegalTransition   = errors.New("illegal transition of order status")
)

// ValidationError describes malformed input. Message is safe to show to clients.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundf wraps ErrNotFound with a description of what was missing.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}
