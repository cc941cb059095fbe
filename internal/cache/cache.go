package cache

import (
	"context"
	"errors"

	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/domain"
)

// CartCache is a read-through cache for carts. Every Delete bumps the user's version;
// Set writes only when the version still equals the one read before loading the cart.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Version(ctx context.Context, userID string) (int64, error)
	Set(ctx context.Context, userID string, cart *domain.Cart, version int64) error
	Delete(ctx context.Context, userID string) error
}

var (
	ErrCacheMiss      = errors.New("cache miss")
	ErrVersionChanged = errors.New("cart version changed")
)
