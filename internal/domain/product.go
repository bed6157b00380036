package domain

import (
	"strings"
	"time"

	"github.com/kryzelc/poybash-furniture-sub001/pkg/slug"
)

// Category is the closed set of top level product categories.
type Category string

const (
	CategoryChairs Category = "chairs"
	CategoryTables Category = "tables"
)

// ValidCategories returns all product categories.
func ValidCategories() []Category {
	return []Category{CategoryChairs, CategoryTables}
}

// IsValidCategory reports whether c is a known category.
func IsValidCategory(c string) bool {
	for _, v := range ValidCategories() {
		if string(v) == c {
			return true
		}
	}
	return false
}

// OneSize is the size label used in variant ids when a variant has no size.
const OneSize = "one-size"

// Dimensions of a product or variant.
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Unit   string  `json:"unit"`
}

// Product is a catalog entry. Products are never deleted; Active=false hides
// them while keeping historical orders resolvable.
type Product struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	BasePrice   int64            `json:"base_price"`
	Category    Category         `json:"category"`
	SubCategory string           `json:"sub_category"`
	Material    string           `json:"material"`
	Dimensions  Dimensions       `json:"dimensions"`
	Images      []string         `json:"images"`
	Active      bool             `json:"active"`
	Featured    bool             `json:"featured"`
	Variants    []ProductVariant `json:"variants"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ProductVariant is a sellable size and color combination with its own
// price and per-warehouse stock.
type ProductVariant struct {
	ID         string           `json:"id"`
	Size       *string          `json:"size"`
	Color      string           `json:"color"`
	Price      int64            `json:"price"`
	Dimensions *Dimensions      `json:"dimensions,omitempty"`
	Stock      []WarehouseStock `json:"stock,omitempty"`
	Active     bool             `json:"active"`
}

// variantIDSeparator never appears in a slug, so the size and color parts
// stay distinguishable.
const variantIDSeparator = "_"

// GenerateVariantID derives the variant identity from size and color. It is
// insensitive to case and whitespace, so re-adding a deactivated combination
// yields the same id.
func GenerateVariantID(size *string, color string) string {
	sizePart := OneSize
	if size != nil && strings.TrimSpace(*size) != "" {
		sizePart = *size
	}
	return slug.Generate(sizePart) + variantIDSeparator + slug.Generate(color)
}

// SizeLabel returns the size or OneSize when unset.
func (v ProductVariant) SizeLabel() string {
	if v.Size == nil || strings.TrimSpace(*v.Size) == "" {
		return OneSize
	}
	return strings.TrimSpace(*v.Size)
}

// Variant returns the variant with the given id.
func (p *Product) Variant(id string) (*ProductVariant, bool) {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// HasActiveVariant reports whether at least one variant can be sold.
func (p *Product) HasActiveVariant() bool {
	for _, v := range p.Variants {
		if v.Active {
			return true
		}
	}
	return false
}

// PriceOf returns the variant price, falling back to the base price.
func (p *Product) PriceOf(v *ProductVariant) int64 {
	if v != nil && v.Price > 0 {
		return v.Price
	}
	return p.BasePrice
}

// Ref returns the ledger reference of variant id on this product.
func (p *Product) Ref(variantID string) VariantRef {
	return VariantRef{ProductID: p.ID, VariantID: variantID}
}
