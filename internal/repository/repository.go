package repository

import (
	"context"
	"errors"
	"time"

	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/domain"
)

const (
	cartsCollection    = "carts"
	productsCollection = "products"
	ordersCollection   = "orders"
	usersCollection    = "users"
	outboxCollection   = "outbox"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrQuantityLimit   = errors.New("item quantity limit exceeded")
)

// CartRepository defines the interface for cart data operations
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID string, item domain.CartItem) error
	UpdateItemQuantity(ctx context.Context, userID string, productID string, quantity int) error
	RemoveItems(ctx context.Context, userID string, productIDs ...string) error
	ConsumeItems(ctx context.Context, userID string, items []domain.CartItem) error
}

// ProductRepository is a read-only view of the product catalog.
type ProductRepository interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error)
	SetExternalOrderID(ctx context.Context, id, externalOrderID string) error
	MarkProcessing(ctx context.Context, id, externalPaymentID string) (bool, error)
	MarkExpired(ctx context.Context, id string) (bool, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int64) ([]*domain.Order, error)
}

type UserRepository interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	DebitCoins(ctx context.Context, id string, amount int64) error
	AddOrderToHistory(ctx context.Context, id, orderID string) error
}

type OutboxRepository interface {
	InsertEvent(ctx context.Context, event *domain.OutboxEvent) error
	GetUnprocessedEvents(ctx context.Context, limit int64) ([]*domain.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id string) error
}

// Transactor runs fn inside a multi-document transaction. Repositories called with the
// context passed to fn take part in it.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
