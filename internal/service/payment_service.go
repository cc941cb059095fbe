package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/cache"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/domain"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/repository"
	"github.com/rs/zerolog"
)

type SignatureVerifier interface {
	Verify(gatewayOrderID, gatewayPaymentID, signature string) bool
}

type ConfirmPaymentRequest struct {
	UserID           string
	OrderID          string
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

type PaymentService struct {
	repos    Repositories
	verifier SignatureVerifier
	cache    cache.CartCache
	log      zerolog.Logger
	now      func() time.Time
}

func NewPaymentService(repos Repositories, verifier SignatureVerifier, c cache.CartCache, log zerolog.Logger) *PaymentService {
	return &PaymentService{
		repos:    repos,
		verifier: verifier,
		cache:    c,
		log:      log,
		now:      time.Now,
	}
}

// ConfirmPayment finalizes a gateway payment. Only the call that moves the order out of
// pending clears the cart and emits order.paid; repeated confirmations return the order as is.
func (s *PaymentService) ConfirmPayment(ctx context.Context, req ConfirmPaymentRequest) (*domain.Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	if !s.verifier.Verify(req.GatewayOrderID, req.GatewayPaymentID, req.Signature) {
		s.log.Warn().Str("order_id", req.OrderID).Str("user_id", req.UserID).Msg("payment signature mismatch")
		return nil, domain.ErrInvalidSignature
	}

	order, err := s.loadOwnedOrder(ctx, req.UserID, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != domain.PaymentMethodExternalGateway || order.ExternalOrderID != req.GatewayOrderID {
		s.log.Warn().Str("order_id", order.ID).Msg("gateway order id does not match order")
		return nil, domain.ErrInvalidSignature
	}

	switch {
	case order.Status == domain.OrderStatusProcessing:
		return order, nil
	case order.Status.IsTerminal():
		return nil, fmt.Errorf("%w: order %s is %s", domain.ErrOrderClosed, order.ID, order.Status)
	}

	moved, err := s.finalize(ctx, order, req.GatewayPaymentID)
	if err != nil {
		s.log.Error().Err(err).Str("order_id", order.ID).Msg("payment confirmation failed")
		return nil, fmt.Errorf("confirm payment: %w", err)
	}

	current, err := s.repos.Orders.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}
	if !moved && current.Status != domain.OrderStatusProcessing {
		return nil, fmt.Errorf("%w: order %s is %s", domain.ErrOrderClosed, current.ID, current.Status)
	}

	if moved {
		invalidateCache(s.cache, s.log, order.UserID)
		s.log.Info().Str("order_id", order.ID).Str("payment_id", req.GatewayPaymentID).Msg("payment confirmed")
	}
	return current, nil
}

func (s *PaymentService) finalize(ctx context.Context, order *domain.Order, paymentID string) (bool, error) {
	var moved bool
	err := s.repos.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		moved, err = s.repos.Orders.MarkProcessing(ctx, order.ID, paymentID)
		if err != nil || !moved {
			return err
		}

		if err := s.repos.Carts.ConsumeItems(ctx, order.UserID, orderedItems(order)); err != nil {
			return err
		}
		if err := s.repos.Users.AddOrderToHistory(ctx, order.UserID, order.ID); err != nil {
			return err
		}

		paid := *order
		paid.Status = domain.OrderStatusProcessing
		paid.ExternalPaymentID = paymentID
		event, err := newOrderOutboxEvent(&paid, domain.EventOrderPaid, s.now())
		if err != nil {
			return err
		}
		return s.repos.Outbox.InsertEvent(ctx, event)
	})
	if err != nil {
		return false, err
	}
	return moved, nil
}

func (s *PaymentService) loadOwnedOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	return loadOwnedOrder(ctx, s.repos.Orders, userID, orderID)
}

func loadOwnedOrder(ctx context.Context, orders repository.OrderRepository, userID, orderID string) (*domain.Order, error) {
	order, err := orders.GetOrder(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, domain.NotFoundf("order %s", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	// Someone else's order is reported as missing.
	if order.UserID != userID {
		return nil, domain.NotFoundf("order %s", orderID)
	}
	return order, nil
}

func (r ConfirmPaymentRequest) validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"order_id", r.OrderID},
		{"gateway_order_id", r.GatewayOrderID},
		{"gateway_payment_id", r.GatewayPaymentID},
		{"signature", r.Signature},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return domain.NewValidationError("%s is required", f.name)
		}
	}
	return nil
}
