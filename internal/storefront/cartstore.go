package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cartTTL = 7 * 24 * time.Hour

// RedisCartStore keeps cart snapshots in Redis keyed by the pipeline's
// cart-key strategy. Both the Shopify and mock providers share it so cart
// state survives process restarts and is channel-scoped, not provider-scoped.
type RedisCartStore struct {
	redis *redis.Client
}

// NewRedisCartStore wraps a Redis client.
func NewRedisCartStore(client *redis.Client) *RedisCartStore {
	if client == nil {
		panic("storefront: redis client cannot be nil")
	}
	return &RedisCartStore{redis: client}
}

// Get loads the cart for a key. A missing cart returns an empty cart, not an
// error, so handlers can treat "never shopped" and "empty cart" identically.
func (s *RedisCartStore) Get(ctx context.Context, cartKey string) (*Cart, error) {
	data, err := s.redis.Get(ctx, cartKey).Bytes()
	if err == redis.Nil {
		return &Cart{Key: cartKey, Currency: "USD"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storefront: failed to load cart: %w", err)
	}

	var cart Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("storefront: failed to decode cart: %w", err)
	}
	cart.Key = cartKey
	return &cart, nil
}

// Save persists the cart under its key and refreshes the TTL.
func (s *RedisCartStore) Save(ctx context.Context, cart *Cart) error {
	cart.Subtotal = 0
	for _, item := range cart.Items {
		cart.Subtotal += item.Price * float64(item.Quantity)
	}

	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("storefront: failed to encode cart: %w", err)
	}
	if err := s.redis.Set(ctx, cart.Key, data, cartTTL).Err(); err != nil {
		return fmt.Errorf("storefront: failed to persist cart: %w", err)
	}
	return nil
}

// Clear removes the cart.
func (s *RedisCartStore) Clear(ctx context.Context, cartKey string) error {
	if err := s.redis.Del(ctx, cartKey).Err(); err != nil {
		return fmt.Errorf("storefront: failed to clear cart: %w", err)
	}
	return nil
}
