package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL       = 15 * time.Minute
	// longer than the largest jitter added to a cart entry
	versionTTLMargin = 10 * time.Minute
)

func NewRedisCache(client *redis.Client, baseTTL time.Duration) *RedisCache {
	if baseTTL <= 0 {
		baseTTL = defaultTTL
	}
	return &RedisCache{
		client:  client,
		baseTTL: baseTTL,
	}
}

// RedisCache stores carts as JSON under cart:<user id>. Entries expire after the base
// TTL plus up to four minutes of jitter so carts cached together do not expire together.
type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisCache) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

// setIfVersion writes the cart only while the version key still holds the expected value.
// A missing version key counts as 0.
var setIfVersion = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if not current then current = '0' end
if current ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

func (r *RedisCache) Version(ctx context.Context, userID string) (int64, error) {
	v, err := r.client.Get(ctx, versionKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get version failed: %w", err)
	}
	return v, nil
}

func (r *RedisCache) Set(ctx context.Context, userID string, cart *domain.Cart, version int64) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	ttl := r.baseTTL + jitter
	keys := []string{cacheKey(userID), versionKey(userID)}

	written, err := setIfVersion.Run(ctx, r.client, keys, strconv.FormatInt(version, 10), data, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	if written == 0 {
		return ErrVersionChanged
	}
	return nil
}

// Delete drops the cached cart and bumps the version. The version key outlives any
// cart entry so an in-flight fill cannot see it reset.
func (r *RedisCache) Delete(ctx context.Context, userID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, cacheKey(userID))
		pipe.Incr(ctx, versionKey(userID))
		pipe.Expire(ctx, versionKey(userID), r.baseTTL+versionTTLMargin)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

func versionKey(userID string) string {
	return fmt.Sprintf("cart:%s:version", userID)
}
