package service

import (
	"context"
	"fmt"
	"time"

	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/domain"
	"github.com/rs/zerolog"
)

type OrderService struct {
	repos Repositories
	ttl   time.Duration
	log   zerolog.Logger
	now   func() time.Time
}

// NewOrderService serves order history. Pending orders older than pendingTTL are expired by ExpirePending.
func NewOrderService(repos Repositories, pendingTTL time.Duration, log zerolog.Logger) *OrderService {
	return &OrderService{
		repos: repos,
		ttl:   pendingTTL,
		log:   log,
		now:   time.Now,
	}
}

func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	orders, err := s.repos.Orders.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	return loadOwnedOrder(ctx, s.repos.Orders, userID, orderID)
}

// ExpirePending moves up to limit stale pending orders to expired and returns how many it moved.
// An order confirmed concurrently keeps its new status.
func (s *OrderService) ExpirePending(ctx context.Context, limit int64) (int, error) {
	cutoff := s.now().Add(-s.ttl)
	orders, err := s.repos.Orders.ListPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("list stale pending orders: %w", err)
	}

	expired := 0
	for _, order := range orders {
		moved, err := s.expire(ctx, order)
		if err != nil {
			s.log.Error().Err(err).Str("order_id", order.ID).Msg("failed to expire order")
			continue
		}
		if moved {
			expired++
			s.log.Info().Str("order_id", order.ID).Time("created_at", order.CreatedAt).Msg("pending order expired")
		}
	}
	return expired, nil
}

func (s *OrderService) expire(ctx context.Context, order *domain.Order) (bool, error) {
	var moved bool
	err := s.repos.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		moved, err = s.repos.Orders.MarkExpired(ctx, order.ID)
		if err != nil || !moved {
			return err
		}

		closed := *order
		closed.Status = domain.OrderStatusExpired
		event, err := newOrderOutboxEvent(&closed, domain.EventOrderExpired, s.now())
		if err != nil {
			return err
		}
		return s.repos.Outbox.InsertEvent(ctx, event)
	})
	return moved, err
}
