package domain

import (
	"fmt"
	"time"
)

// Warehouse identifies one of the fixed physical stock locations.
type Warehouse string

const (
	WarehouseLorenzo   Warehouse = "lorenzo"
	WarehouseOroquieta Warehouse = "oroquieta"
)

// Warehouses returns every warehouse in allocation priority order.
func Warehouses() []Warehouse {
	return []Warehouse{WarehouseLorenzo, WarehouseOroquieta}
}

// IsValidWarehouse reports whether w is a known warehouse.
func IsValidWarehouse(w string) bool {
	for _, known := range Warehouses() {
		if string(known) == w {
			return true
		}
	}
	return false
}

// Priority returns the allocation rank of w, lower first. Unknown
// warehouses sort last.
func (w Warehouse) Priority() int {
	for i, known := range Warehouses() {
		if known == w {
			return i
		}
	}
	return len(Warehouses())
}

// VariantRef identifies a sellable variant. Variant ids are only unique
// within their product.
type VariantRef struct {
	ProductID int64  `json:"product_id"`
	VariantID string `json:"variant_id"`
}

func (r VariantRef) String() string {
	return fmt.Sprintf("%d/%s", r.ProductID, r.VariantID)
}

// StockKey addresses one WarehouseStock record.
type StockKey struct {
	ProductID int64     `json:"product_id"`
	VariantID string    `json:"variant_id"`
	Warehouse Warehouse `json:"warehouse"`
}

// Ref returns the variant part of the key.
func (k StockKey) Ref() VariantRef {
	return VariantRef{ProductID: k.ProductID, VariantID: k.VariantID}
}

func (k StockKey) String() string {
	return fmt.Sprintf("%d/%s@%s", k.ProductID, k.VariantID, k.Warehouse)
}

// KeyFor builds the stock key of ref at warehouse w.
func KeyFor(ref VariantRef, w Warehouse) StockKey {
	return StockKey{ProductID: ref.ProductID, VariantID: ref.VariantID, Warehouse: w}
}

// WarehouseStock is the on-hand and reserved count of a variant at one
// warehouse. Invariant: 0 <= Reserved <= Quantity.
type WarehouseStock struct {
	StockKey
	Quantity  int              `json:"quantity"`
	Reserved  int              `json:"reserved"`
	Batches   []InventoryBatch `json:"batches,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Available returns the unreserved quantity, never negative.
func (s WarehouseStock) Available() int {
	if a := s.Quantity - s.Reserved; a > 0 {
		return a
	}
	return 0
}

// Valid reports whether the record satisfies the stock invariant.
func (s WarehouseStock) Valid() bool {
	return s.Quantity >= 0 && s.Reserved >= 0 && s.Reserved <= s.Quantity
}

// InventoryBatch is an append-only provenance entry recording one manual
// stock adjustment. Batches are informational; WarehouseStock stays the
// source of truth for availability.
type InventoryBatch struct {
	ID         string    `json:"id"`
	StockKey   StockKey  `json:"stock_key"`
	ReceivedAt time.Time `json:"received_at"`
	Quantity   int       `json:"quantity"`
	Reserved   int       `json:"reserved"`
	Notes      string    `json:"notes"`
}

// TotalAvailable sums Available over stocks.
func TotalAvailable(stocks []WarehouseStock) int {
	total := 0
	for _, s := range stocks {
		total += s.Available()
	}
	return total
}
