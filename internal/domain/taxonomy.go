package domain

import (
	"strings"
	"time"
)

// TaxonomyKind names one controlled vocabulary.
type TaxonomyKind string

const (
	TaxonomyMainCategory TaxonomyKind = "main-category"
	TaxonomySubCategory  TaxonomyKind = "sub-category"
	TaxonomyMaterial     TaxonomyKind = "material"
	TaxonomyColor        TaxonomyKind = "color"
)

// ValidTaxonomyKinds returns every vocabulary.
func ValidTaxonomyKinds() []TaxonomyKind {
	return []TaxonomyKind{TaxonomyMainCategory, TaxonomySubCategory, TaxonomyMaterial, TaxonomyColor}
}

// IsValidTaxonomyKind reports whether k is a known vocabulary.
func IsValidTaxonomyKind(k string) bool {
	for _, v := range ValidTaxonomyKinds() {
		if string(v) == k {
			return true
		}
	}
	return false
}

// TaxonomyEntry is one value of a vocabulary. Entries are soft deleted.
type TaxonomyEntry struct {
	ID        int64        `json:"id"`
	Kind      TaxonomyKind `json:"kind"`
	Name      string       `json:"name"`
	Active    bool         `json:"active"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NormalizeName trims and collapses internal whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// SameName compares names case-insensitively after normalization.
func SameName(a, b string) bool {
	return strings.EqualFold(NormalizeName(a), NormalizeName(b))
}
