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
	"golang.org/x/sync/singleflight"
)

type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	cache    cache.CartCache
	log      zerolog.Logger
	sfg      singleflight.Group // Prevents cache stampede
}

func NewCartService(carts repository.CartRepository, products repository.ProductRepository, c cache.CartCache, log zerolog.Logger) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		cache:    c,
		log:      log,
	}
}

// GetCart returns the stored cart, or an empty one when the user has none.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("cache get failed")
		}

		// Read the version before the store so an invalidation racing this read
		// makes the fill below a no-op.
		version, verr := s.cache.Version(ctx, userID)

		cart, err = s.carts.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			now := time.Now()
			return &domain.Cart{UserID: userID, CreatedAt: now, UpdatedAt: now}, nil
		}
		if err != nil {
			return nil, err
		}

		if verr != nil {
			s.log.Warn().Err(verr).Str("user_id", userID).Msg("cache version read failed")
			return cart, nil
		}

		go func() {
			err := s.cache.Set(context.Background(), userID, cart, version)
			switch {
			case errors.Is(err, cache.ErrVersionChanged):
				s.log.Debug().Str("user_id", userID).Msg("cart changed while loading, cache fill skipped")
			case err != nil:
				s.log.Warn().Err(err).Str("user_id", userID).Msg("cache set failed")
			}
		}()

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	if err := validateItem(productID, quantity); err != nil {
		return err
	}

	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return domain.NotFoundf("product %s", productID)
		}
		return err
	}

	item := domain.CartItem{ProductID: productID, Quantity: quantity, AddedAt: time.Now()}
	err := s.carts.AddItem(ctx, userID, item)
	if errors.Is(err, repository.ErrQuantityLimit) {
		return quantityLimitError(productID)
	}
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Str("product_id", productID).Msg("add item failed")
		return err
	}

	invalidateCache(s.cache, s.log, userID)
	return nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if err := validateItem(productID, quantity); err != nil {
		return err
	}

	err := s.carts.UpdateItemQuantity(ctx, userID, productID, quantity)
	if errors.Is(err, repository.ErrItemNotFound) {
		return domain.NotFoundf("cart item %s", productID)
	}
	if errors.Is(err, repository.ErrQuantityLimit) {
		return quantityLimitError(productID)
	}
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Str("product_id", productID).Msg("update quantity failed")
		return err
	}

	invalidateCache(s.cache, s.log, userID)
	return nil
}

// RemoveItem is idempotent: removing an entry that is not in the cart succeeds.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) error {
	if strings.TrimSpace(productID) == "" {
		return domain.NewValidationError("product_id is required")
	}

	if err := s.carts.RemoveItems(ctx, userID, productID); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Str("product_id", productID).Msg("remove item failed")
		return err
	}

	invalidateCache(s.cache, s.log, userID)
	return nil
}

// ListItems resolves every entry against the catalog. Entries whose product no longer
// exists are left out.
func (s *CartService) ListItems(ctx context.Context, userID string) ([]domain.CartLine, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	lines, _, err := resolveLines(ctx, s.products, cart)
	return lines, err
}

func validateItem(productID string, quantity int) error {
	if strings.TrimSpace(productID) == "" {
		return domain.NewValidationError("product_id is required")
	}
	if quantity < 1 {
		return domain.NewValidationError("quantity must be a positive integer, got %d", quantity)
	}
	if quantity > domain.MaxItemQuantity {
		return quantityLimitError(productID)
	}
	return nil
}

func quantityLimitError(productID string) error {
	return domain.NewValidationError("quantity of %s may not exceed %d", productID, domain.MaxItemQuantity)
}

// resolveLines returns the resolvable entries of cart in cart order and the ids of the stale ones.
func resolveLines(ctx context.Context, products repository.ProductRepository, cart *domain.Cart) ([]domain.CartLine, []string, error) {
	lines := make([]domain.CartLine, 0, len(cart.Items))
	if len(cart.Items) == 0 {
		return lines, nil, nil
	}

	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}

	found, err := products.GetProducts(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve cart products: %w", err)
	}

	var stale []string
	for _, item := range cart.Items {
		product, ok := found[item.ProductID]
		if !ok {
			stale = append(stale, item.ProductID)
			continue
		}
		lines = append(lines, domain.CartLine{
			Product:  product,
			Quantity: item.Quantity,
			AddedAt:  item.AddedAt,
		})
	}
	return lines, stale, nil
}

func invalidateCache(c cache.CartCache, log zerolog.Logger, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Delete(ctx, userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("cache invalidate failed")
	}
}
