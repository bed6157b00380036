package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	"github.com/kryzelc/poybash-furniture-sub001/internal/repository"
	apperrors "github.com/kryzelc/poybash-furniture-sub001/pkg/errors"
)

// VariantInput describes a variant to create or replace. A nil Active
// means active.
type VariantInput struct {
	Size       *string
	Color      string
	Price      int64
	Dimensions *domain.Dimensions
	Active     *bool
}

func (in VariantInput) isActive() bool {
	return in.Active == nil || *in.Active
}

// ProductInput holds the editable fields of a product.
type ProductInput struct {
	Name        string
	Description string
	BasePrice   int64
	Category    domain.Category
	SubCategory string
	Material    string
	Dimensions  domain.Dimensions
	Images      []string
	Featured    bool
	Variants    []VariantInput
}

// CatalogService implements product management on top of the taxonomy
// vocabularies and the inventory ledger.
type CatalogService struct {
	products repository.ProductRepository
	taxonomy *TaxonomyService
	ledger   *Ledger
	logger   *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(products repository.ProductRepository, taxonomy *TaxonomyService, ledger *Ledger, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		products: products,
		taxonomy: taxonomy,
		ledger:   ledger,
		logger:   logger,
	}
}

func buildVariant(in VariantInput) (domain.ProductVariant, error) {
	color := domain.NormalizeName(in.Color)
	if color == "" {
		return domain.ProductVariant{}, domain.NewValidationError("color", "is required")
	}
	if in.Price < 0 {
		return domain.ProductVariant{}, domain.NewValidationError("price", "must not be negative")
	}

	var size *string
	if in.Size != nil {
		if trimmed := strings.TrimSpace(*in.Size); trimmed != "" {
			size = &trimmed
		}
	}

	return domain.ProductVariant{
		ID:         domain.GenerateVariantID(size, color),
		Size:       size,
		Color:      color,
		Price:      in.Price,
		Dimensions: in.Dimensions,
		Active:     in.isActive(),
	}, nil
}

func applyInput(p *domain.Product, in ProductInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.NewValidationError("name", "is required")
	}
	if in.BasePrice < 0 {
		return domain.NewValidationError("base_price", "must not be negative")
	}
	if !domain.IsValidCategory(string(in.Category)) {
		return domain.NewValidationError("category", "unknown category %q", in.Category)
	}

	p.Name = name
	p.Description = strings.TrimSpace(in.Description)
	p.BasePrice = in.BasePrice
	p.Category = in.Category
	p.SubCategory = domain.NormalizeName(in.SubCategory)
	p.Material = domain.NormalizeName(in.Material)
	p.Dimensions = in.Dimensions
	p.Images = append([]string(nil), in.Images...)
	p.Featured = in.Featured
	return nil
}

// mergeVariants replaces p's variants with in. Existing variants missing
// from in are kept deactivated so historical orders still resolve them.
func mergeVariants(p *domain.Product, in []VariantInput) error {
	seen := make(map[string]struct{}, len(in))
	variants := make([]domain.ProductVariant, 0, len(in)+len(p.Variants))
	for i, vin := range in {
		v, err := buildVariant(vin)
		if err != nil {
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				ve.Field = fmt.Sprintf("variants[%d].%s", i, ve.Field)
			}
			return err
		}
		if _, dup := seen[v.ID]; dup {
			return domain.NewValidationError(fmt.Sprintf("variants[%d]", i), "duplicate variant %q", v.ID)
		}
		seen[v.ID] = struct{}{}
		variants = append(variants, v)
	}
	for _, old := range p.Variants {
		if _, ok := seen[old.ID]; ok {
			continue
		}
		old.Active = false
		variants = append(variants, old)
	}
	p.Variants = variants
	return nil
}

// checkReferences verifies every taxonomy name p uses resolves to an active
// entry and that p can be sold.
func (s *CatalogService) checkReferences(ctx context.Context, p *domain.Product) error {
	if p.SubCategory != "" {
		if _, err := s.taxonomy.ResolveActive(ctx, domain.TaxonomySubCategory, p.SubCategory); err != nil {
			return err
		}
	}
	if p.Material != "" {
		if _, err := s.taxonomy.ResolveActive(ctx, domain.TaxonomyMaterial, p.Material); err != nil {
			return err
		}
	}
	for _, v := range p.Variants {
		if !v.Active {
			continue
		}
		if _, err := s.taxonomy.ResolveActive(ctx, domain.TaxonomyColor, v.Color); err != nil {
			return err
		}
	}
	if p.Active && !p.HasActiveVariant() {
		return domain.ErrNoActiveVariant
	}
	return nil
}

func (s *CatalogService) ensureStock(ctx context.Context, p *domain.Product) error {
	for _, v := range p.Variants {
		if err := s.ledger.EnsureVariant(ctx, p.Ref(v.ID)); err != nil {
			return err
		}
	}
	return nil
}

// attachStock fills every variant's Stock from the ledger.
func (s *CatalogService) attachStock(ctx context.Context, p *domain.Product) error {
	for i := range p.Variants {
		stocks, err := s.ledger.ListVariantStock(ctx, p.Ref(p.Variants[i].ID))
		if err != nil {
			return err
		}
		p.Variants[i].Stock = stocks
	}
	return nil
}

func (s *CatalogService) load(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("product", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *CatalogService) save(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	if err := s.products.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	if err := s.ensureStock(ctx, p); err != nil {
		return nil, err
	}
	if err := s.attachStock(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CreateProduct validates and stores a new active product and opens a zero
// stock record per warehouse for each variant.
func (s *CatalogService) CreateProduct(ctx context.Context, actor domain.Actor, in ProductInput) (*domain.Product, error) {
	if err := actor.Require(domain.PermManageProducts); err != nil {
		return nil, err
	}

	p := &domain.Product{Active: true}
	if err := applyInput(p, in); err != nil {
		return nil, err
	}
	if err := mergeVariants(p, in.Variants); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, p); err != nil {
		return nil, err
	}

	if err := s.products.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	if err := s.ensureStock(ctx, p); err != nil {
		return nil, err
	}
	if err := s.attachStock(ctx, p); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product created",
		slog.Int64("product_id", p.ID),
		slog.String("name", p.Name),
		slog.Int("variants", len(p.Variants)),
	)
	return p, nil
}

// UpdateProduct replaces the editable fields and variant list of a product.
func (s *CatalogService) UpdateProduct(ctx context.Context, actor domain.Actor, id int64, in ProductInput) (*domain.Product, error) {
	if err := actor.Require(domain.PermManageProducts); err != nil {
		return nil, err
	}

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyInput(p, in); err != nil {
		return nil, err
	}
	if err := mergeVariants(p, in.Variants); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, p); err != nil {
		return nil, err
	}

	p, err = s.save(ctx, p)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "product updated", slog.Int64("product_id", p.ID))
	return p, nil
}

// DeactivateProduct hides a product from listings and carts.
func (s *CatalogService) DeactivateProduct(ctx context.Context, actor domain.Actor, id int64) (*domain.Product, error) {
	if err := actor.Require(domain.PermManageProducts); err != nil {
		return nil, err
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Active = false
	return s.save(ctx, p)
}

// ReactivateProduct makes a product sellable again. It needs an active
// variant and valid taxonomy references.
func (s *CatalogService) ReactivateProduct(ctx context.Context, actor domain.Actor, id int64) (*domain.Product, error) {
	if err := actor.Require(domain.PermManageProducts); err != nil {
		return nil, err
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Active = true
	if err := s.checkReferences(ctx, p); err != nil {
		return nil, err
	}
	return s.save(ctx, p)
}

// UpsertVariant adds a variant or replaces the one with the same generated
// id. Re-adding a deactivated size and color reactivates it.
func (s *CatalogService) UpsertVariant(ctx context.Context, actor domain.Actor, productID int64, in VariantInput) (*domain.Product, error) {
	if err := actor.Require(domain.PermManageProducts); err != nil {
		return nil, err
	}
	p, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}

	v, err := buildVariant(in)
	if err != nil {
		return nil, err
	}
	if existing, ok := p.Variant(v.ID); ok {
		*existing = v
	} else {
		p.Variants = append(p.Variants, v)
	}
	if err := s.checkReferences(ctx, p); err != nil {
		return nil, err
	}
	return s.save(ctx, p)
}

// DeactivateVariant stops a variant from being sold. An active product must
// keep at least one active variant.
func (s *CatalogService) DeactivateVariant(ctx context.Context, actor domain.Actor, productID int64, variantID string) (*domain.Product, error) {
	if err := actor.Require(domain.PermManageProducts); err != nil {
		return nil, err
	}
	p, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}

	v, ok := p.Variant(variantID)
	if !ok {
		return nil, domain.ErrVariantNotFound
	}
	v.Active = false
	if p.Active && !p.HasActiveVariant() {
		return nil, domain.ErrNoActiveVariant
	}
	return s.save(ctx, p)
}

// GetProduct returns a product with ledger stock attached. Inactive
// products are only visible to catalog managers.
func (s *CatalogService) GetProduct(ctx context.Context, actor domain.Actor, id int64) (*domain.Product, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Active && !actor.Can(domain.PermManageProducts) {
		return nil, apperrors.NotFound("product", strconv.FormatInt(id, 10))
	}
	if err := s.attachStock(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListProducts returns one page of products. IncludeInactive is ignored for
// callers who cannot manage products.
func (s *CatalogService) ListProducts(ctx context.Context, actor domain.Actor, filter repository.ProductFilter) ([]domain.Product, int, error) {
	if !actor.Can(domain.PermManageProducts) {
		filter.IncludeInactive = false
	}
	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	for i := range products {
		if err := s.attachStock(ctx, &products[i]); err != nil {
			return nil, 0, err
		}
	}
	return products, total, nil
}

// sellableVariant loads a product and resolves variantID on it for the
// cart and checkout paths.
func (s *CatalogService) sellableVariant(ctx context.Context, productID int64, variantID string) (*domain.Product, *domain.ProductVariant, error) {
	p, err := s.load(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	if !p.Active {
		return nil, nil, domain.ErrInactiveProduct
	}
	v, ok := p.Variant(variantID)
	if !ok {
		return nil, nil, domain.ErrVariantNotFound
	}
	if !v.Active {
		return nil, nil, domain.ErrInactiveVariant
	}
	return p, v, nil
}
