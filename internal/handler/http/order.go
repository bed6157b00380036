package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	"github.com/kryzelc/poybash-furniture-sub001/internal/repository"
	"github.com/kryzelc/poybash-furniture-sub001/internal/service"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/httputil"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/pagination"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orders  *service.OrderService
	refunds *service.RefundService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(orders *service.OrderService, refunds *service.RefundService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, refunds: refunds, logger: logger}
}

// --- Request DTOs ---

// OrderLineRequest is one line of a manual order.
type OrderLineRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	VariantID string `json:"variant_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// CreateOrderRequest is the JSON body of POST /orders. Without items the
// caller's cart is checked out; with items a manual order is placed.
type CreateOrderRequest struct {
	UserID                *string            `json:"user_id"`
	Items                 []OrderLineRequest `json:"items" validate:"omitempty,dive"`
	CouponDiscount        int64              `json:"coupon_discount"`
	DeliveryFee           int64              `json:"delivery_fee"`
	IsReservation         bool               `json:"is_reservation"`
	ReservationPercentage decimal.Decimal    `json:"reservation_percentage"`
	FulfillmentMethod     string             `json:"fulfillment_method" validate:"required,oneof=pickup delivery"`
	PaymentMethod         string             `json:"payment_method" validate:"required,max=50"`
	PaymentReference      string             `json:"payment_reference" validate:"max=200"`
	PaymentProof          string             `json:"payment_proof" validate:"max=2000"`
}

// StatusRequest is the JSON body for a status transition.
type StatusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

// CancelRequest is the JSON body for cancelling an order.
type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// RefundRequestRequest is the JSON body a customer sends to ask for a refund.
type RefundRequestRequest struct {
	Items  []int  `json:"items" validate:"required,min=1,unique"`
	Reason string `json:"reason" validate:"required,max=1000"`
}

// ProcessRefundRequest is the JSON body for recording a refund.
type ProcessRefundRequest struct {
	Method        string `json:"method" validate:"required,max=50"`
	Amount        int64  `json:"amount"`
	Reason        string `json:"reason" validate:"required,max=1000"`
	Proof         string `json:"proof" validate:"max=2000"`
	AdminNotes    string `json:"admin_notes" validate:"max=2000"`
	ItemsRefunded []int  `json:"items_refunded" validate:"omitempty,unique"`
}

// TransitionsResponse lists the statuses the caller may move an order to.
type TransitionsResponse struct {
	OrderID string               `json:"order_id"`
	Status  domain.OrderStatus   `json:"status"`
	Allowed []domain.OrderStatus `json:"allowed"`
}

// --- Handlers ---

// Create handles POST /api/v1/orders
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	actor := actorFrom(r)

	var (
		order *domain.Order
		err   error
	)
	if len(req.Items) == 0 {
		order, err = h.orders.CheckoutCart(r.Context(), actor, service.CheckoutInput{
			DeliveryFee:           req.DeliveryFee,
			IsReservation:         req.IsReservation,
			ReservationPercentage: req.ReservationPercentage,
			FulfillmentMethod:     domain.FulfillmentMethod(req.FulfillmentMethod),
			PaymentMethod:         req.PaymentMethod,
			PaymentReference:      req.PaymentReference,
			PaymentProof:          req.PaymentProof,
		})
	} else {
		items := make([]service.OrderLineInput, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, service.OrderLineInput{
				ProductID: it.ProductID,
				VariantID: it.VariantID,
				Quantity:  it.Quantity,
			})
		}
		order, err = h.orders.CreateOrder(r.Context(), actor, service.CreateOrderInput{
			UserID:                req.UserID,
			Items:                 items,
			CouponDiscount:        req.CouponDiscount,
			DeliveryFee:           req.DeliveryFee,
			IsReservation:         req.IsReservation,
			ReservationPercentage: req.ReservationPercentage,
			FulfillmentMethod:     domain.FulfillmentMethod(req.FulfillmentMethod),
			PaymentMethod:         req.PaymentMethod,
			PaymentReference:      req.PaymentReference,
			PaymentProof:          req.PaymentProof,
		})
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: order})
}

// List handles GET /api/v1/orders. ?user_id= only narrows the listing for
// callers who may see every order.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	q := r.URL.Query()

	filter := repository.OrderFilter{Page: params.Page, PerPage: params.PerPage}
	if s := q.Get("status"); s != "" {
		status := domain.OrderStatus(s)
		filter.Status = &status
	}
	if uid := q.Get("user_id"); uid != "" {
		filter.UserID = &uid
	}

	orders, total, err := h.orders.ListOrders(r.Context(), actorFrom(r), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: pagination.NewResult(orders, total, params)})
}

// Get handles GET /api/v1/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// Transitions handles GET /api/v1/orders/{id}/transitions
func (h *OrderHandler) Transitions(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	order, err := h.orders.GetOrder(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	allowed := domain.AllowedTransitions(order, actor.Role)
	if allowed == nil {
		allowed = []domain.OrderStatus{}
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: TransitionsResponse{
		OrderID: order.ID,
		Status:  order.Status,
		Allowed: allowed,
	}})
}

// UpdateStatus handles PUT /api/v1/orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !domain.IsValidOrderStatus(req.Status) {
		httputil.WriteError(w, r, domain.NewValidationError("status", "unknown status %q", req.Status), h.logger)
		return
	}

	order, err := h.orders.TransitionStatus(r.Context(), actorFrom(r), chi.URLParam(r, "id"), domain.OrderStatus(req.Status), req.Reason)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// Cancel handles POST /api/v1/orders/{id}/cancel
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := h.orders.CancelOrder(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// RequestRefund handles POST /api/v1/orders/{id}/refund-request
func (h *OrderHandler) RequestRefund(w http.ResponseWriter, r *http.Request) {
	var req RefundRequestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := h.orders.RequestRefund(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.Items, req.Reason)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// ProcessRefund handles POST /api/v1/orders/{id}/refund
func (h *OrderHandler) ProcessRefund(w http.ResponseWriter, r *http.Request) {
	var req ProcessRefundRequest
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := h.refunds.ProcessRefund(r.Context(), actorFrom(r), chi.URLParam(r, "id"), service.RefundInput{
		Method:        req.Method,
		Amount:        req.Amount,
		Reason:        req.Reason,
		Proof:         req.Proof,
		AdminNotes:    req.AdminNotes,
		ItemsRefunded: req.ItemsRefunded,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}
