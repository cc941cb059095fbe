package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/cache"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/domain"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/payment"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type CheckoutRequest struct {
	UserID          string
	ShippingAddress domain.ShippingAddress
	PaymentMethod   domain.PaymentMethod
}

// CheckoutResult carries the created order. Intent is set only for external-gateway checkouts.
type CheckoutResult struct {
	Order  *domain.Order
	Intent *payment.Intent
}

type Repositories struct {
	Carts    repository.CartRepository
	Products repository.ProductRepository
	Orders   repository.OrderRepository
	Users    repository.UserRepository
	Outbox   repository.OutboxRepository
	Tx       repository.Transactor
}

type CheckoutService struct {
	repos   Repositories
	gateway payment.Gateway
	cache   cache.CartCache
	log     zerolog.Logger
	now     func() time.Time
}

func NewCheckoutService(repos Repositories, gateway payment.Gateway, c cache.CartCache, log zerolog.Logger) *CheckoutService {
	return &CheckoutService{
		repos:   repos,
		gateway: gateway,
		cache:   c,
		log:     log,
		now:     time.Now,
	}
}

func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if !req.PaymentMethod.Valid() {
		return nil, domain.NewValidationError("payment_method must be %q or %q",
			domain.PaymentMethodExternalGateway, domain.PaymentMethodInternalCurrency)
	}
	if err := req.ShippingAddress.Validate(); err != nil {
		return nil, err
	}

	lines, err := s.loadCheckoutLines(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	order, err := s.buildOrder(req, lines)
	if err != nil {
		return nil, err
	}

	switch req.PaymentMethod {
	case domain.PaymentMethodInternalCurrency:
		return s.checkoutWithCoins(ctx, order)
	default:
		return s.checkoutWithGateway(ctx, order)
	}
}

// loadCheckoutLines resolves the cart, purging entries whose product is gone.
func (s *CheckoutService) loadCheckoutLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	cart, err := s.repos.Carts.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, domain.ErrEmptyCart
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	lines, stale, err := resolveLines(ctx, s.repos.Products, cart)
	if err != nil {
		return nil, err
	}

	if len(stale) > 0 {
		if err := s.repos.Carts.RemoveItems(ctx, userID, stale...); err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Strs("product_ids", stale).Msg("failed to purge stale cart entries")
		} else {
			s.log.Info().Str("user_id", userID).Strs("product_ids", stale).Msg("purged stale cart entries")
			invalidateCache(s.cache, s.log, userID)
		}
	}

	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	for _, line := range lines {
		if !line.Product.Available {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductUnavailable, line.Product.Name)
		}
	}
	return lines, nil
}

var (
	maxCoins = decimal.NewFromInt(math.MaxInt64)
	// price totals travel to the gateway in minor units
	maxPrice = decimal.NewFromInt(math.MaxInt64).Div(decimal.NewFromInt(100)).Floor()
)

func (s *CheckoutService) buildOrder(req CheckoutRequest, lines []domain.CartLine) (*domain.Order, error) {
	total := decimal.Zero
	coins := decimal.Zero
	items := make([]domain.OrderItem, 0, len(lines))

	for _, line := range lines {
		if line.Quantity < 1 || line.Quantity > domain.MaxItemQuantity {
			return nil, domain.NewValidationError("quantity of %s must be between 1 and %d, got %d",
				line.Product.ID, domain.MaxItemQuantity, line.Quantity)
		}

		qty := decimal.NewFromInt(int64(line.Quantity))
		total = total.Add(decimal.NewFromFloat(line.Product.Price).Mul(qty))
		coins = coins.Add(decimal.NewFromInt(line.Product.CoinPrice).Mul(qty))

		items = append(items, domain.OrderItem{
			ProductID:     line.Product.ID,
			ProductName:   line.Product.Name,
			Quantity:      line.Quantity,
			UnitPrice:     line.Product.Price,
			UnitCoinPrice: line.Product.CoinPrice,
		})
	}

	if coins.GreaterThan(maxCoins) || total.GreaterThan(maxPrice) {
		return nil, domain.NewValidationError("order total is too large")
	}

	now := s.now()
	return &domain.Order{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		Items:           items,
		TotalPrice:      total.Round(2).InexactFloat64(),
		TotalCoins:      coins.IntPart(),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// orderedItems lists what an order takes out of the cart.
func orderedItems(order *domain.Order) []domain.CartItem {
	items := make([]domain.CartItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, domain.CartItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return items
}

// checkoutWithCoins applies debit, order, cart clear, history and event atomically.
func (s *CheckoutService) checkoutWithCoins(ctx context.Context, order *domain.Order) (*CheckoutResult, error) {
	order.Status = domain.OrderStatusPlaced

	event, err := newOrderOutboxEvent(order, domain.EventOrderPlaced, order.CreatedAt)
	if err != nil {
		return nil, err
	}

	err = s.repos.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.repos.Users.DebitCoins(ctx, order.UserID, order.TotalCoins); err != nil {
			// A user without a balance record holds no coins.
			if errors.Is(err, repository.ErrUserNotFound) {
				return domain.ErrInsufficientBalance
			}
			return err
		}
		if err := s.repos.Orders.CreateOrder(ctx, order); err != nil {
			return err
		}
		if err := s.repos.Carts.ConsumeItems(ctx, order.UserID, orderedItems(order)); err != nil {
			return err
		}
		if err := s.repos.Users.AddOrderToHistory(ctx, order.UserID, order.ID); err != nil {
			return err
		}
		return s.repos.Outbox.InsertEvent(ctx, event)
	})
	if err != nil {
		if !errors.Is(err, domain.ErrInsufficientBalance) {
			s.log.Error().Err(err).Str("user_id", order.UserID).Msg("coin checkout failed")
		}
		return nil, fmt.Errorf("coin checkout: %w", err)
	}

	invalidateCache(s.cache, s.log, order.UserID)
	s.log.Info().Str("order_id", order.ID).Str("user_id", order.UserID).Int64("coins", order.TotalCoins).Msg("order placed")

	return &CheckoutResult{Order: order}, nil
}

// checkoutWithGateway records a pending order and asks the gateway for a payment intent.
// The cart is kept until the payment is confirmed.
func (s *CheckoutService) checkoutWithGateway(ctx context.Context, order *domain.Order) (*CheckoutResult, error) {
	order.Status = domain.OrderStatusPending
	if err := s.repos.Orders.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create pending order: %w", err)
	}

	intent, err := s.gateway.CreateIntent(ctx, order.ID, decimal.NewFromFloat(order.TotalPrice))
	if err != nil {
		s.log.Error().Err(err).Str("order_id", order.ID).Msg("payment intent request failed")
		return nil, fmt.Errorf("create payment intent for order %s: %w", order.ID, err)
	}

	if err := s.repos.Orders.SetExternalOrderID(ctx, order.ID, intent.GatewayOrderID); err != nil {
		return nil, fmt.Errorf("store gateway order id: %w", err)
	}
	order.ExternalOrderID = intent.GatewayOrderID

	s.log.Info().
		Str("order_id", order.ID).
		Str("gateway_order_id", intent.GatewayOrderID).
		Int64("amount", intent.Amount).
		Msg("payment intent created")

	return &CheckoutResult{Order: order, Intent: intent}, nil
}
