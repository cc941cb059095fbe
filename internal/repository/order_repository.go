package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoOrderRepository struct {
	collection *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) OrderRepository {
	return &mongoOrderRepository{
		collection: db.Collection(ordersCollection),
	}
}

func (m *mongoOrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	if _, err := m.collection.InsertOne(ctx, order); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (m *mongoOrderRepository) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var order domain.Order

	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return &order, nil
}

func (m *mongoOrderRepository) ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return m.find(ctx, bson.M{"user_id": userID}, opts)
}

func (m *mongoOrderRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int64) ([]*domain.Order, error) {
	filter := bson.M{
		"status":     domain.OrderStatusPending,
		"created_at": bson.M{"$lt": cutoff},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(limit)
	return m.find(ctx, filter, opts)
}

func (m *mongoOrderRepository) SetExternalOrderID(ctx context.Context, id, externalOrderID string) error {
	update := bson.M{
		"$set": bson.M{
			"external_order_id": externalOrderID,
			"updated_at":        time.Now(),
		},
	}

	result, err := m.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("set external order id: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// MarkProcessing moves a pending order to processing. It reports false when the order
// was not pending, so callers can tell whether this call performed the transition.
func (m *mongoOrderRepository) MarkProcessing(ctx context.Context, id, externalPaymentID string) (bool, error) {
	return m.transition(ctx, id, domain.OrderStatusPending, domain.OrderStatusProcessing, bson.M{
		"external_payment_id": externalPaymentID,
	})
}

func (m *mongoOrderRepository) MarkExpired(ctx context.Context, id string) (bool, error) {
	return m.transition(ctx, id, domain.OrderStatusPending, domain.OrderStatusExpired, nil)
}

func (m *mongoOrderRepository) transition(ctx context.Context, id string, from, to domain.OrderStatus, fields bson.M) (bool, error) {
	if !domain.CanTransitionTo(from, to) {
		return false, domain.ErrIllegalTransition
	}

	set := bson.M{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range fields {
		set[k] = v
	}

	filter := bson.M{"_id": id, "status": from}
	result, err := m.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("update order status to %s: %w", to, err)
	}
	return result.ModifiedCount == 1, nil
}

func (m *mongoOrderRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.Order, error) {
	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := make([]*domain.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}
