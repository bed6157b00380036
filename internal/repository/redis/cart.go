package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	apperrors "github.com/kryzelc/poybash-furniture-sub001/pkg/errors"
)

const (
	keyPrefix  = "cart:"
	maxRetries = 5
)

// ErrCartContention is returned when a cart keeps changing underneath an update.
var ErrCartContention = apperrors.Conflict("CART_MODIFIED", "cart was modified concurrently, please retry")

// CartRepository implements repository.CartRepository using Redis.
type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartRepository creates a new Redis-backed cart repository.
func NewCartRepository(client *redis.Client, ttl time.Duration) *CartRepository {
	return &CartRepository{
		client: client,
		ttl:    ttl,
	}
}

func cartKey(owner string) string {
	return keyPrefix + owner
}

func decodeCart(owner string, data []byte) (*domain.Cart, error) {
	if data == nil {
		return &domain.Cart{Owner: owner, Items: []domain.CartItem{}}, nil
	}
	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return &cart, nil
}

// Get retrieves the cart of owner. A missing key yields an empty cart.
func (r *CartRepository) Get(ctx context.Context, owner string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cartKey(owner)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis get cart: %w", err)
	}
	return decodeCart(owner, data)
}

// Update reads the cart under WATCH, applies fn and writes it back in a
// MULTI block, bumping Version. A concurrent write aborts the transaction
// and fn is re-run against the fresh cart.
func (r *CartRepository) Update(ctx context.Context, owner string, fn func(c *domain.Cart) error) (*domain.Cart, error) {
	key := cartKey(owner)
	var result *domain.Cart

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis get cart: %w", err)
		}
		cart, err := decodeCart(owner, data)
		if err != nil {
			return err
		}

		if err := fn(cart); err != nil {
			return err
		}
		cart.Owner = owner
		cart.Version++
		cart.UpdatedAt = time.Now().UTC()

		payload, err := json.Marshal(cart)
		if err != nil {
			return fmt.Errorf("marshal cart: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		result = cart
		return nil
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, ErrCartContention
}

// Delete removes the cart of owner.
func (r *CartRepository) Delete(ctx context.Context, owner string) error {
	if err := r.client.Del(ctx, cartKey(owner)).Err(); err != nil {
		return fmt.Errorf("redis del cart: %w", err)
	}
	return nil
}
