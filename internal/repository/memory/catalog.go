package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	"github.com/kryzelc/poybash-furniture-sub001/internal/repository"
	apperrors "github.com/kryzelc/poybash-furniture-sub001/pkg/errors"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/pagination"
)

func cloneProduct(p *domain.Product) *domain.Product {
	out := *p
	out.Images = append([]string(nil), p.Images...)
	out.Variants = make([]domain.ProductVariant, len(p.Variants))
	for i, v := range p.Variants {
		if v.Size != nil {
			size := *v.Size
			v.Size = &size
		}
		if v.Dimensions != nil {
			dims := *v.Dimensions
			v.Dimensions = &dims
		}
		v.Stock = nil
		out.Variants[i] = v
	}
	return &out
}

// ProductRepository keeps products in a map keyed by id.
type ProductRepository struct {
	mu       sync.RWMutex
	nextID   int64
	products map[int64]*domain.Product
}

// NewProductRepository creates an empty in-memory product store.
func NewProductRepository() *ProductRepository {
	return &ProductRepository{products: make(map[int64]*domain.Product)}
}

func (r *ProductRepository) Create(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	p.ID = r.nextID
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	r.products[p.ID] = cloneProduct(p)
	return nil
}

func (r *ProductRepository) Update(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.products[p.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	r.products[p.ID] = cloneProduct(p)
	return nil
}

func (r *ProductRepository) GetByID(_ context.Context, id int64) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (r *ProductRepository) List(_ context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	r.mu.RLock()
	matched := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		if !filter.IncludeInactive && !p.Active {
			continue
		}
		if filter.Category != nil && p.Category != *filter.Category {
			continue
		}
		if filter.Featured != nil && p.Featured != *filter.Featured {
			continue
		}
		matched = append(matched, *cloneProduct(p))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return paginate(matched, filter.Page, filter.PerPage)
}

func paginate[T any](items []T, page, perPage int) ([]T, int, error) {
	params := pagination.Normalize(page, perPage)
	total := len(items)
	start := params.Offset()
	if start >= total {
		return []T{}, total, nil
	}
	end := start + params.PerPage
	if end > total {
		end = total
	}
	return items[start:end], total, nil
}

// TaxonomyRepository keeps vocabulary entries in memory.
type TaxonomyRepository struct {
	mu      sync.RWMutex
	nextID  int64
	entries map[int64]*domain.TaxonomyEntry
}

// NewTaxonomyRepository creates an empty in-memory taxonomy store.
func NewTaxonomyRepository() *TaxonomyRepository {
	return &TaxonomyRepository{entries: make(map[int64]*domain.TaxonomyEntry)}
}

func (r *TaxonomyRepository) Create(_ context.Context, e *domain.TaxonomyEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	e.ID = r.nextID
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	stored := *e
	r.entries[e.ID] = &stored
	return nil
}

func (r *TaxonomyRepository) Update(_ context.Context, e *domain.TaxonomyEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.entries[e.ID]
	if !ok || existing.Kind != e.Kind {
		return apperrors.ErrNotFound
	}
	e.CreatedAt = existing.CreatedAt
	e.UpdatedAt = time.Now().UTC()
	stored := *e
	r.entries[e.ID] = &stored
	return nil
}

func (r *TaxonomyRepository) Get(_ context.Context, kind domain.TaxonomyKind, id int64) (*domain.TaxonomyEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok || e.Kind != kind {
		return nil, apperrors.ErrNotFound
	}
	out := *e
	return &out, nil
}

func (r *TaxonomyRepository) List(_ context.Context, kind domain.TaxonomyKind, includeInactive bool) ([]domain.TaxonomyEntry, error) {
	r.mu.RLock()
	out := make([]domain.TaxonomyEntry, 0)
	for _, e := range r.entries {
		if e.Kind != kind || (!includeInactive && !e.Active) {
			continue
		}
		out = append(out, *e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *TaxonomyRepository) FindActiveByName(_ context.Context, kind domain.TaxonomyKind, name string) (*domain.TaxonomyEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.Kind == kind && e.Active && domain.SameName(e.Name, name) {
			out := *e
			return &out, nil
		}
	}
	return nil, apperrors.ErrNotFound
}
