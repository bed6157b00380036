package domain

import (
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/kryzelc/poybash-furniture-sub001/pkg/errors"
)

// Sentinel domain errors. They are *AppError values so errors.Is works and
// the HTTP layer maps them directly.
var (
	// ErrPermissionDenied never says which permission was missing.
	ErrPermissionDenied      = apperrors.Forbidden("permission denied")
	ErrConcurrentStockChange = apperrors.Conflict("CONCURRENT_STOCK_CHANGE", "stock changed while reserving, please retry checkout")
	ErrAlreadyRefunded       = apperrors.Conflict("ALREADY_REFUNDED", "order has already been refunded")
	ErrCartFull              = apperrors.Conflict("CART_FULL", fmt.Sprintf("cart cannot hold more than %d lines", MaxCartLines))
	ErrNoActiveVariant       = apperrors.Unprocessable("NO_ACTIVE_VARIANT", "product must have at least one active variant")
	ErrInactiveProduct       = apperrors.Unprocessable("INACTIVE_PRODUCT", "product is not available")
	ErrInactiveVariant       = apperrors.Unprocessable("INACTIVE_VARIANT", "variant is not available")
	ErrVariantNotFound       = &apperrors.AppError{Code: "VARIANT_NOT_FOUND", Message: "variant does not exist on product", Status: 404, Err: apperrors.ErrNotFound}
)

// ValidationError reports malformed input, rejected before any state change.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) AppError() *apperrors.AppError {
	ae := apperrors.BadRequest("VALIDATION_ERROR", e.Error())
	ae.Details = e
	return ae
}

// InsufficientStockError carries the quantity actually available so the
// caller can offer a reduced amount.
type InsufficientStockError struct {
	ProductID int64     `json:"product_id"`
	VariantID string    `json:"variant_id"`
	Warehouse Warehouse `json:"warehouse,omitempty"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %d/%s: requested %d, available %d",
		e.ProductID, e.VariantID, e.Requested, e.Available)
}

func (e *InsufficientStockError) AppError() *apperrors.AppError {
	ae := apperrors.Conflict("INSUFFICIENT_STOCK", "not enough stock available")
	ae.Details = e
	return ae
}

// AllocationError lists every cart line that could not be covered. No
// stock was reserved when it is returned.
type AllocationError struct {
	Lines []InsufficientStockError `json:"lines"`
}

func (e *AllocationError) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for i := range e.Lines {
		parts = append(parts, e.Lines[i].Error())
	}
	return "allocation failed: " + strings.Join(parts, "; ")
}

func (e *AllocationError) AppError() *apperrors.AppError {
	ae := apperrors.Conflict("INSUFFICIENT_STOCK", "one or more lines cannot be fulfilled")
	ae.Details = e
	return ae
}

// InvalidStateTransitionError carries the current state and the moves the
// caller is allowed, so the UI can re-render a correct option set.
type InvalidStateTransitionError struct {
	Current   OrderStatus   `json:"current"`
	Requested OrderStatus   `json:"requested"`
	Allowed   []OrderStatus `json:"allowed"`
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.Current, e.Requested)
}

func (e *InvalidStateTransitionError) AppError() *apperrors.AppError {
	ae := apperrors.Conflict("INVALID_STATE_TRANSITION", e.Error())
	ae.Details = e
	return ae
}

// DuplicateNameError is returned when an active taxonomy entry of the same
// kind already has the name.
type DuplicateNameError struct {
	Kind TaxonomyKind `json:"kind"`
	Name string       `json:"name"`
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Name)
}

func (e *DuplicateNameError) AppError() *apperrors.AppError {
	ae := apperrors.Conflict("DUPLICATE_NAME", e.Error())
	ae.Details = e
	return ae
}

// UnknownTaxonomyReferenceError is returned when a product references a
// taxonomy name with no active entry.
type UnknownTaxonomyReferenceError struct {
	Kind TaxonomyKind `json:"kind"`
	Name string       `json:"name"`
}

func (e *UnknownTaxonomyReferenceError) Error() string {
	return fmt.Sprintf("unknown or inactive %s %q", e.Kind, e.Name)
}

func (e *UnknownTaxonomyReferenceError) AppError() *apperrors.AppError {
	ae := apperrors.Unprocessable("UNKNOWN_TAXONOMY_REFERENCE", e.Error())
	ae.Details = e
	return ae
}

// InvalidAdjustmentError is returned when a manual stock overwrite would
// break the stock invariant.
type InvalidAdjustmentError struct {
	Quantity int `json:"quantity"`
	Reserved int `json:"reserved"`
}

func (e *InvalidAdjustmentError) Error() string {
	return fmt.Sprintf("invalid adjustment: reserved %d exceeds quantity %d or is negative", e.Reserved, e.Quantity)
}

func (e *InvalidAdjustmentError) AppError() *apperrors.AppError {
	ae := apperrors.BadRequest("INVALID_ADJUSTMENT", e.Error())
	ae.Details = e
	return ae
}

// InvalidAmountError is returned for refund amounts that are not positive
// or exceed the refundable maximum.
type InvalidAmountError struct {
	Amount int64 `json:"amount"`
	Max    int64 `json:"max"`
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid refund amount %d (maximum %d)", e.Amount, e.Max)
}

func (e *InvalidAmountError) AppError() *apperrors.AppError {
	ae := apperrors.BadRequest("INVALID_AMOUNT", e.Error())
	ae.Details = e
	return ae
}

// IsInsufficientStock reports whether err carries an InsufficientStockError.
func IsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var e *InsufficientStockError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
