package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	"github.com/kryzelc/poybash-furniture-sub001/internal/service"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/httputil"
)

// CartHandler handles HTTP requests for the caller's cart. The cart owner
// is always the authenticated user.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{service: svc, logger: logger}
}

// AddLineRequest is the JSON body for adding a variant to the cart.
type AddLineRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	VariantID string `json:"variant_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// UpdateQuantityRequest is the JSON body for changing a line quantity.
// Zero or less removes the line.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// DiscountRequest is the JSON body for applying a coupon discount.
type DiscountRequest struct {
	Amount int64 `json:"amount"`
}

// CartResponse is a cart with its computed totals.
type CartResponse struct {
	Cart    *domain.Cart        `json:"cart"`
	Summary service.CartSummary `json:"summary"`
}

// QuantityUpdateResponse reports whether a quantity change was applied.
type QuantityUpdateResponse struct {
	CartResponse
	Updated   bool `json:"updated"`
	Available int  `json:"available"`
}

func cartResponse(c *domain.Cart) CartResponse {
	return CartResponse{Cart: c, Summary: service.Summarize(c)}
}

// Get handles GET /api/v1/cart
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.GetCart(r.Context(), actorFrom(r).UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cartResponse(cart)})
}

// AddLine handles POST /api/v1/cart/lines
func (h *CartHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	var req AddLineRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cart, err := h.service.AddLine(r.Context(), actorFrom(r).UserID, service.AddLineInput{
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cartResponse(cart)})
}

// UpdateQuantity handles PUT /api/v1/cart/lines/{lineKey}. A quantity above
// what is available leaves the cart unchanged and reports the ceiling.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.service.UpdateQuantity(r.Context(), actorFrom(r).UserID, chi.URLParam(r, "lineKey"), req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: QuantityUpdateResponse{
		CartResponse: cartResponse(res.Cart),
		Updated:      res.Updated,
		Available:    res.Available,
	}})
}

// RemoveLine handles DELETE /api/v1/cart/lines/{lineKey}
func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.RemoveLine(r.Context(), actorFrom(r).UserID, chi.URLParam(r, "lineKey"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cartResponse(cart)})
}

// ApplyDiscount handles PUT /api/v1/cart/discount
func (h *CartHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req DiscountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	actor := actorFrom(r)
	cart, err := h.service.ApplyDiscount(r.Context(), actor, actor.UserID, req.Amount)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cartResponse(cart)})
}

// Clear handles DELETE /api/v1/cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearCart(r.Context(), actorFrom(r).UserID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
