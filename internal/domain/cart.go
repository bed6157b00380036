package domain

import (
	"fmt"
	"time"

	"github.com/kryzelc/poybash-furniture-sub001/pkg/slug"
)

// MaxCartLines is the maximum number of distinct lines a cart may hold.
const MaxCartLines = 50

// Cart is the advisory, per-shopper basket. It never holds reservations.
type Cart struct {
	Owner     string     `json:"owner"`
	Items     []CartItem `json:"items"`
	Discount  int64      `json:"discount"`
	Version   int        `json:"version"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartItem is one line. UnitPrice is snapshotted when the line is first
// added and is not refreshed by later catalog edits.
type CartItem struct {
	LineKey   string `json:"line_key"`
	ProductID int64  `json:"product_id"`
	VariantID string `json:"variant_id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	ImageURL  string `json:"image_url,omitempty"`
}

// LineKey derives the merge identity of a cart line.
func LineKey(productID int64, variantID, color, size string) string {
	if size == "" {
		size = OneSize
	}
	return fmt.Sprintf("%d:%s:%s:%s", productID, variantID, slug.Generate(color), slug.Generate(size))
}

// LineTotal returns UnitPrice * Quantity.
func (i CartItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Ref returns the ledger reference of the line.
func (i CartItem) Ref() VariantRef {
	return VariantRef{ProductID: i.ProductID, VariantID: i.VariantID}
}

// FindLine returns the index of the line with key, or -1.
func (c *Cart) FindLine(key string) int {
	for i := range c.Items {
		if c.Items[i].LineKey == key {
			return i
		}
	}
	return -1
}

// RemoveLine drops the line with key. It reports whether a line was removed.
func (c *Cart) RemoveLine(key string) bool {
	idx := c.FindLine(key)
	if idx < 0 {
		return false
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	return true
}

// Subtotal sums every line total.
func (c *Cart) Subtotal() int64 {
	var total int64
	for _, it := range c.Items {
		total += it.LineTotal()
	}
	return total
}

// ItemCount sums line quantities.
func (c *Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Total is Subtotal minus Discount, floored at zero.
func (c *Cart) Total() int64 {
	if t := c.Subtotal() - c.Discount; t > 0 {
		return t
	}
	return 0
}
