package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoUserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{
		collection: db.Collection(usersCollection),
	}
}

func (m *mongoUserRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User

	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// DebitCoins subtracts amount from the user's balance. The balance never goes negative:
// the filter only matches when enough coins are available.
func (m *mongoUserRepository) DebitCoins(ctx context.Context, id string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("debit amount must not be negative: %d", amount)
	}

	filter := bson.M{
		"_id":   id,
		"coins": bson.M{"$gte": amount},
	}
	update := bson.M{"$inc": bson.M{"coins": -amount}}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to debit coins: %w", err)
	}
	if result.MatchedCount == 1 {
		return nil
	}

	if _, err := m.GetUser(ctx, id); err != nil {
		return err
	}
	return domain.ErrInsufficientBalance
}

// AddOrderToHistory appends orderID to the user's order history once.
func (m *mongoUserRepository) AddOrderToHistory(ctx context.Context, id, orderID string) error {
	update := bson.M{"$addToSet": bson.M{"orders": orderID}}

	_, err := m.collection.UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to append order history: %w", err)
	}
	return nil
}
