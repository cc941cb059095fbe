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

type mongoCartRepository struct {
	collection *mongo.Collection
}

func NewCartRepository(db *mongo.Database) CartRepository {
	return &mongoCartRepository{
		collection: db.Collection(cartsCollection),
	}
}

func (m *mongoCartRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&cart)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

// AddItem increments the quantity of an existing entry or appends a new one,
// creating the cart on first use.
func (m *mongoCartRepository) AddItem(ctx context.Context, userID string, item domain.CartItem) error {
	if item.Quantity > domain.MaxItemQuantity {
		return ErrQuantityLimit
	}

	incremented, err := m.incrementItem(ctx, userID, item)
	if err != nil || incremented {
		return err
	}

	now := time.Now()
	if item.AddedAt.IsZero() {
		item.AddedAt = now
	}

	// The $ne guard keeps a concurrent add of the same product from pushing a duplicate.
	filter := bson.M{
		"user_id":          userID,
		"items.product_id": bson.M{"$ne": item.ProductID},
	}
	update := bson.M{
		"$push":        bson.M{"items": item},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}

	_, err = m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err == nil {
		return nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to add new item: %w", err)
	}

	// Lost the race: the entry exists now.
	incremented, err = m.incrementItem(ctx, userID, item)
	if err != nil {
		return err
	}
	if !incremented {
		return fmt.Errorf("failed to add item %s: concurrent cart update", item.ProductID)
	}
	return nil
}

// incrementItem bumps an existing entry, never past domain.MaxItemQuantity.
func (m *mongoCartRepository) incrementItem(ctx context.Context, userID string, item domain.CartItem) (bool, error) {
	filter := bson.M{
		"user_id": userID,
		"items": bson.M{"$elemMatch": bson.M{
			"product_id": item.ProductID,
			"quantity":   bson.M{"$lte": domain.MaxItemQuantity - item.Quantity},
		}},
	}
	update := bson.M{
		"$inc": bson.M{"items.$.quantity": item.Quantity},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to update existing item: %w", err)
	}
	if result.MatchedCount > 0 {
		return true, nil
	}

	// Either the entry is missing or the increment would pass the cap.
	n, err := m.collection.CountDocuments(ctx, bson.M{"user_id": userID, "items.product_id": item.ProductID})
	if err != nil {
		return false, fmt.Errorf("failed to check existing item: %w", err)
	}
	if n > 0 {
		return false, ErrQuantityLimit
	}
	return false, nil
}

func (m *mongoCartRepository) UpdateItemQuantity(ctx context.Context, userID string, productID string, quantity int) error {
	if quantity > domain.MaxItemQuantity {
		return ErrQuantityLimit
	}

	filter := bson.M{
		"user_id":          userID,
		"items.product_id": productID,
	}

	update := bson.M{
		"$set": bson.M{
			"items.$[elem].quantity": quantity,
			"updated_at":             time.Now(),
		},
	}

	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.product_id": productID},
		},
	})

	result, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to update item quantity: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrItemNotFound
	}
	return nil
}

// RemoveItems pulls the given products from the cart. Absent entries and a missing
// cart are not errors.
func (m *mongoCartRepository) RemoveItems(ctx context.Context, userID string, productIDs ...string) error {
	if len(productIDs) == 0 {
		return nil
	}

	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"product_id": bson.M{"$in": productIDs}},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	if _, err := m.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to remove items: %w", err)
	}
	return nil
}

// ConsumeItems takes the given quantities out of the cart. Entries that reach zero are
// dropped and an emptied cart is deleted, so anything added after the items were read
// stays in the cart. A missing cart is a no-op.
func (m *mongoCartRepository) ConsumeItems(ctx context.Context, userID string, items []domain.CartItem) error {
	if len(items) == 0 {
		return nil
	}

	inc := bson.M{}
	filters := make([]interface{}, 0, len(items))
	for i, item := range items {
		ident := fmt.Sprintf("c%d", i)
		inc["items.$["+ident+"].quantity"] = -item.Quantity
		filters = append(filters, bson.M{ident + ".product_id": item.ProductID})
	}

	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$inc": inc,
		"$set": bson.M{"updated_at": time.Now()},
	}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{Filters: filters})

	result, err := m.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to consume cart items: %w", err)
	}
	if result.MatchedCount == 0 {
		return nil
	}

	pull := bson.M{"$pull": bson.M{"items": bson.M{"quantity": bson.M{"$lte": 0}}}}
	if _, err := m.collection.UpdateOne(ctx, filter, pull); err != nil {
		return fmt.Errorf("failed to drop consumed items: %w", err)
	}

	if _, err := m.collection.DeleteOne(ctx, bson.M{"user_id": userID, "items": bson.M{"$size": 0}}); err != nil {
		return fmt.Errorf("failed to delete empty cart: %w", err)
	}
	return nil
}
