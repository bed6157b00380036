package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	"github.com/kryzelc/poybash-furniture-sub001/internal/repository"
	apperrors "github.com/kryzelc/poybash-furniture-sub001/pkg/errors"
)

// cloneOrder deep copies through JSON; orders carry nested slices and
// pointers at several levels.
func cloneOrder(o *domain.Order) (*domain.Order, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("clone order: %w", err)
	}
	var out domain.Order
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("clone order: %w", err)
	}
	return &out, nil
}

// OrderRepository keeps orders in memory. A single lock serialises all
// writers, which also serialises updates of one order.
type OrderRepository struct {
	mu     sync.Mutex
	seq    int64
	orders map[string]*domain.Order
}

// NewOrderRepository creates an empty in-memory order store.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[string]*domain.Order)}
}

func (r *OrderRepository) NextOrderNumber(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq, nil
}

func (r *OrderRepository) Create(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[o.ID]; exists {
		return apperrors.AlreadyExists("order", "id", o.ID)
	}
	o.Version = 1
	stored, err := cloneOrder(o)
	if err != nil {
		return err
	}
	r.orders[o.ID] = stored
	return nil
}

func (r *OrderRepository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cloneOrder(o)
}

func (r *OrderRepository) List(_ context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	r.mu.Lock()
	matched := make([]domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if filter.UserID != nil && !o.IsOwnedBy(*filter.UserID) {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		c, err := cloneOrder(o)
		if err != nil {
			r.mu.Unlock()
			return nil, 0, err
		}
		matched = append(matched, *c)
	}
	r.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, filter.Page, filter.PerPage)
}

func (r *OrderRepository) Update(ctx context.Context, id string, fn func(o *domain.Order) error) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	working, err := cloneOrder(stored)
	if err != nil {
		return nil, err
	}
	if err := fn(working); err != nil {
		return nil, err
	}
	working.Version = stored.Version + 1
	if working.UpdatedAt.IsZero() {
		working.UpdatedAt = time.Now().UTC()
	}

	saved, err := cloneOrder(working)
	if err != nil {
		return nil, err
	}
	r.orders[id] = saved
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.orders[id] = stored
	})
	return working, nil
}

// CartRepository keeps carts in memory for the memory store driver and
// tests.
type CartRepository struct {
	mu    sync.Mutex
	carts map[string]*domain.Cart
}

// NewCartRepository creates an empty in-memory cart store.
func NewCartRepository() *CartRepository {
	return &CartRepository{carts: make(map[string]*domain.Cart)}
}

func cloneCart(c *domain.Cart) *domain.Cart {
	out := *c
	out.Items = append([]domain.CartItem{}, c.Items...)
	return &out
}

func (r *CartRepository) Get(_ context.Context, owner string) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[owner]
	if !ok {
		return &domain.Cart{Owner: owner, Items: []domain.CartItem{}}, nil
	}
	return cloneCart(c), nil
}

func (r *CartRepository) Update(_ context.Context, owner string, fn func(c *domain.Cart) error) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	working := &domain.Cart{Owner: owner, Items: []domain.CartItem{}}
	if c, ok := r.carts[owner]; ok {
		working = cloneCart(c)
	}
	if err := fn(working); err != nil {
		return nil, err
	}
	working.Owner = owner
	working.Version++
	working.UpdatedAt = time.Now().UTC()
	r.carts[owner] = cloneCart(working)
	return working, nil
}

func (r *CartRepository) Delete(_ context.Context, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, owner)
	return nil
}
