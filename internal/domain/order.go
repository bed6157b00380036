package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is a state of the order lifecycle.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusReserved        OrderStatus = "reserved"
	OrderStatusProcessing      OrderStatus = "processing"
	OrderStatusReadyForPickup  OrderStatus = "ready-for-pickup"
	OrderStatusCompleted       OrderStatus = "completed"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRefundRequested OrderStatus = "refund-requested"
	OrderStatusRefunded        OrderStatus = "refunded"
)

// ValidOrderStatuses returns every order status.
func ValidOrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusReserved,
		OrderStatusProcessing,
		OrderStatusReadyForPickup,
		OrderStatusCompleted,
		OrderStatusCancelled,
		OrderStatusRefundRequested,
		OrderStatusRefunded,
	}
}

// IsValidOrderStatus reports whether s is a known status.
func IsValidOrderStatus(s string) bool {
	for _, v := range ValidOrderStatuses() {
		if string(v) == s {
			return true
		}
	}
	return false
}

// FulfillmentMethod is how the customer receives the goods.
type FulfillmentMethod string

const (
	FulfillmentPickup   FulfillmentMethod = "pickup"
	FulfillmentDelivery FulfillmentMethod = "delivery"
)

// CanceledBy records which side cancelled an order.
type CanceledBy string

const (
	CanceledByCustomer CanceledBy = "customer"
	CanceledByAdmin    CanceledBy = "admin"
)

// StockState tracks what the ledger holds for one order item so that
// release and commit are applied at most once.
type StockState string

const (
	StockReserved  StockState = "reserved"
	StockReleased  StockState = "released"
	StockCommitted StockState = "committed"
)

// RefundStatus is the per-item refund overlay.
type RefundStatus string

const (
	RefundNone      RefundStatus = ""
	RefundRequested RefundStatus = "requested"
	RefundRefunded  RefundStatus = "refunded"
)

// OrderItem is a line of an order fulfilled from a single warehouse. A cart
// line split across warehouses becomes several items.
type OrderItem struct {
	ProductID    int64        `json:"product_id"`
	VariantID    string       `json:"variant_id"`
	Name         string       `json:"name"`
	Color        string       `json:"color"`
	Size         string       `json:"size"`
	Quantity     int          `json:"quantity"`
	UnitPrice    int64        `json:"unit_price"`
	Warehouse    Warehouse    `json:"warehouse"`
	StockState   StockState   `json:"stock_state"`
	RefundStatus RefundStatus `json:"refund_status,omitempty"`
	RefundReason string       `json:"refund_reason,omitempty"`
}

// LineTotal returns UnitPrice * Quantity.
func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// StockKey returns the ledger record this item draws from.
func (i OrderItem) StockKey() StockKey {
	return StockKey{ProductID: i.ProductID, VariantID: i.VariantID, Warehouse: i.Warehouse}
}

// ProcessedBy identifies the staff member who processed a refund.
type ProcessedBy struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// RefundDetails is the immutable record of a processed refund. Empty
// ItemsRefunded means the whole order was refunded.
type RefundDetails struct {
	RefundAmount  int64       `json:"refund_amount"`
	RefundMethod  string      `json:"refund_method"`
	RefundReason  string      `json:"refund_reason"`
	RefundProof   string      `json:"refund_proof,omitempty"`
	AdminNotes    string      `json:"admin_notes,omitempty"`
	ProcessedBy   ProcessedBy `json:"processed_by"`
	ProcessedAt   time.Time   `json:"processed_at"`
	ItemsRefunded []int       `json:"items_refunded,omitempty"`
}

// IsFull reports whether the refund covers the whole order.
func (r RefundDetails) IsFull() bool {
	return len(r.ItemsRefunded) == 0
}

// StatusChange is one entry of the order audit trail.
type StatusChange struct {
	From   OrderStatus `json:"from"`
	To     OrderStatus `json:"to"`
	By     string      `json:"by"`
	Role   Role        `json:"role"`
	Reason string      `json:"reason,omitempty"`
	At     time.Time   `json:"at"`
}

// Order is created once at checkout and only ever mutated through the
// lifecycle operations. Amounts are in centavos.
type Order struct {
	ID                    string            `json:"id"`
	UserID                *string           `json:"user_id"`
	Items                 []OrderItem       `json:"items"`
	Subtotal              int64             `json:"subtotal"`
	CouponDiscount        int64             `json:"coupon_discount"`
	DeliveryFee           int64             `json:"delivery_fee"`
	Total                 int64             `json:"total"`
	IsReservation         bool              `json:"is_reservation"`
	ReservationPercentage decimal.Decimal   `json:"reservation_percentage"`
	ReservationFee        int64             `json:"reservation_fee"`
	FulfillmentMethod     FulfillmentMethod `json:"fulfillment_method"`
	PaymentMethod         string            `json:"payment_method"`
	PaymentReference      string            `json:"payment_reference,omitempty"`
	PaymentProof          string            `json:"payment_proof,omitempty"`
	Status                OrderStatus       `json:"status"`
	PreviousStatus        OrderStatus       `json:"previous_status,omitempty"`
	CanceledBy            CanceledBy        `json:"canceled_by,omitempty"`
	Refund                *RefundDetails    `json:"refund,omitempty"`
	StatusHistory         []StatusChange    `json:"status_history"`
	Version               int               `json:"version"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// FormatOrderID renders the human readable order id for sequence n.
func FormatOrderID(n int64) string {
	return fmt.Sprintf("ORD-%06d", n)
}

// ComputeTotal returns subtotal - coupon + delivery.
func ComputeTotal(subtotal, coupon, delivery int64) int64 {
	return subtotal - coupon + delivery
}

// ComputeReservationFee returns total * pct rounded half-up to the centavo.
func ComputeReservationFee(total int64, pct decimal.Decimal) int64 {
	return decimal.NewFromInt(total).Mul(pct).Round(0).IntPart()
}

// InitialStatus is reserved for reservation orders paying less than the
// full total up front, pending otherwise.
func InitialStatus(isReservation bool, pct decimal.Decimal) OrderStatus {
	if isReservation && pct.LessThan(decimal.NewFromInt(1)) {
		return OrderStatusReserved
	}
	return OrderStatusPending
}

// IsOwnedBy reports whether the order belongs to userID.
func (o *Order) IsOwnedBy(userID string) bool {
	return o.UserID != nil && *o.UserID == userID
}

// IsRefunded reports whether refund details are attached. Completed orders
// keep their status and are shown as refunded based on this overlay.
func (o *Order) IsRefunded() bool {
	return o.Refund != nil
}

// EntryStatus is the state the order was created in.
func (o *Order) EntryStatus() OrderStatus {
	return InitialStatus(o.IsReservation, o.ReservationPercentage)
}

// RecordTransition moves the order to `to` and appends an audit entry.
func (o *Order) RecordTransition(to OrderStatus, actor Actor, reason string, at time.Time) {
	o.StatusHistory = append(o.StatusHistory, StatusChange{
		From:   o.Status,
		To:     to,
		By:     actor.UserID,
		Role:   actor.Role,
		Reason: reason,
		At:     at,
	})
	o.Status = to
	o.UpdatedAt = at
}
