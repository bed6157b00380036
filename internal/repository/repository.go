package repository

import (
	"context"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
)

// StockMutation edits a locked stock record in place. Returning a batch
// appends it to the record's provenance; returning an error aborts the
// update with nothing written.
type StockMutation func(stock *domain.WarehouseStock) (*domain.InventoryBatch, error)

// StockRepository persists the inventory ledger.
type StockRepository interface {
	// Get returns the stock record for key, or apperrors.ErrNotFound.
	Get(ctx context.Context, key domain.StockKey) (*domain.WarehouseStock, error)

	// ListByVariant returns every warehouse record of ref in warehouse priority order.
	ListByVariant(ctx context.Context, ref domain.VariantRef) ([]domain.WarehouseStock, error)

	// Ensure creates a zero record for key if none exists.
	Ensure(ctx context.Context, key domain.StockKey) error

	// Update loads the record for key under an exclusive lock, applies fn and
	// persists the result before returning. Concurrent updates of the same
	// key are serialised.
	Update(ctx context.Context, key domain.StockKey, fn StockMutation) (*domain.WarehouseStock, error)

	// ListBatches returns the provenance of key, oldest first.
	ListBatches(ctx context.Context, key domain.StockKey) ([]domain.InventoryBatch, error)
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	Category        *domain.Category
	Featured        *bool
	IncludeInactive bool
	Page            int
	PerPage         int
}

// ProductRepository persists catalog products together with their variants.
type ProductRepository interface {
	// Create inserts p and assigns its ID.
	Create(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)
}

// TaxonomyRepository persists vocabulary entries.
type TaxonomyRepository interface {
	Create(ctx context.Context, e *domain.TaxonomyEntry) error
	Update(ctx context.Context, e *domain.TaxonomyEntry) error
	Get(ctx context.Context, kind domain.TaxonomyKind, id int64) (*domain.TaxonomyEntry, error)
	List(ctx context.Context, kind domain.TaxonomyKind, includeInactive bool) ([]domain.TaxonomyEntry, error)

	// FindActiveByName matches names case-insensitively. It returns
	// apperrors.ErrNotFound when no active entry matches.
	FindActiveByName(ctx context.Context, kind domain.TaxonomyKind, name string) (*domain.TaxonomyEntry, error)
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	UserID  *string
	Status  *domain.OrderStatus
	Page    int
	PerPage int
}

// OrderRepository persists orders.
type OrderRepository interface {
	// NextOrderNumber returns the next value of the order sequence.
	NextOrderNumber(ctx context.Context) (int64, error)
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)

	// Update loads the order under an exclusive lock, applies fn and
	// persists the result. Concurrent updates of one order are serialised,
	// so fn always sees the latest committed state.
	Update(ctx context.Context, id string, fn func(o *domain.Order) error) (*domain.Order, error)
}

// CartRepository persists shopper carts.
type CartRepository interface {
	// Get returns the cart of owner, or an empty cart if none is stored.
	Get(ctx context.Context, owner string) (*domain.Cart, error)

	// Update applies fn to the stored cart and saves it with optimistic
	// versioning. fn may be retried on a concurrent write.
	Update(ctx context.Context, owner string, fn func(c *domain.Cart) error) (*domain.Cart, error)

	Delete(ctx context.Context, owner string) error
}
