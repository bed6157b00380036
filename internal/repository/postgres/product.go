package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	"github.com/kryzelc/poybash-furniture-sub001/internal/repository"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/database"
	apperrors "github.com/kryzelc/poybash-furniture-sub001/pkg/errors"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/pagination"
)

const productColumns = `id, name, description, base_price, category, sub_category, material,
	dimensions, images, variants, active, featured, created_at, updated_at`

// ProductRepository implements repository.ProductRepository using PostgreSQL.
// Variants are stored as JSONB on the product row; their stock lives in
// warehouse_stock.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

type productJSON struct {
	dimensions []byte
	images     []byte
	variants   []byte
}

func marshalProduct(p *domain.Product) (productJSON, error) {
	var (
		out productJSON
		err error
	)
	if out.dimensions, err = json.Marshal(p.Dimensions); err != nil {
		return out, fmt.Errorf("marshal dimensions: %w", err)
	}
	images := p.Images
	if images == nil {
		images = []string{}
	}
	if out.images, err = json.Marshal(images); err != nil {
		return out, fmt.Errorf("marshal images: %w", err)
	}

	// Stock is owned by the ledger and never persisted on the product row.
	variants := make([]domain.ProductVariant, len(p.Variants))
	for i, v := range p.Variants {
		v.Stock = nil
		variants[i] = v
	}
	if out.variants, err = json.Marshal(variants); err != nil {
		return out, fmt.Errorf("marshal variants: %w", err)
	}
	return out, nil
}

func scanProduct(row pgx.Row, extra ...any) (*domain.Product, error) {
	var (
		p                          domain.Product
		category                   string
		dimensions, images, varsJS []byte
	)
	dest := []any{
		&p.ID, &p.Name, &p.Description, &p.BasePrice, &category, &p.SubCategory, &p.Material,
		&dimensions, &images, &varsJS, &p.Active, &p.Featured, &p.CreatedAt, &p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	p.Category = domain.Category(category)

	if len(dimensions) > 0 {
		if err := json.Unmarshal(dimensions, &p.Dimensions); err != nil {
			return nil, fmt.Errorf("unmarshal dimensions: %w", err)
		}
	}
	p.Images = []string{}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &p.Images); err != nil {
			return nil, fmt.Errorf("unmarshal images: %w", err)
		}
	}
	p.Variants = []domain.ProductVariant{}
	if len(varsJS) > 0 {
		if err := json.Unmarshal(varsJS, &p.Variants); err != nil {
			return nil, fmt.Errorf("unmarshal variants: %w", err)
		}
	}
	return &p, nil
}

// Create inserts p and sets its ID and timestamps.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	js, err := marshalProduct(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO products (name, description, base_price, category, sub_category, material,
			dimensions, images, variants, active, featured, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	err = r.pool.QueryRow(ctx, query,
		p.Name, p.Description, p.BasePrice, string(p.Category), p.SubCategory, p.Material,
		js.dimensions, js.images, js.variants, p.Active, p.Featured,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// Update overwrites every mutable column of p.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	js, err := marshalProduct(p)
	if err != nil {
		return err
	}

	query := `
		UPDATE products
		SET name = $2, description = $3, base_price = $4, category = $5, sub_category = $6, material = $7,
			dimensions = $8, images = $9, variants = $10, active = $11, featured = $12, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err = r.pool.QueryRow(ctx, query,
		p.ID, p.Name, p.Description, p.BasePrice, string(p.Category), p.SubCategory, p.Material,
		js.dimensions, js.images, js.variants, p.Active, p.Featured,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// GetByID retrieves a product with its variants.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// List returns products matching filter with the total count.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if !filter.IncludeInactive {
		conditions = append(conditions, "active = TRUE")
	}
	if filter.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIndex))
		args = append(args, string(*filter.Category))
		argIndex++
	}
	if filter.Featured != nil {
		conditions = append(conditions, fmt.Sprintf("featured = $%d", argIndex))
		args = append(args, *filter.Featured)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM products
		%s
		ORDER BY id ASC
		LIMIT $%d OFFSET $%d`,
		productColumns, whereClause, argIndex, argIndex+1,
	)

	params := pagination.Normalize(filter.Page, filter.PerPage)
	args = append(args, params.PerPage, params.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var totalCount int
	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, totalCount, nil
}
