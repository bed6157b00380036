package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	"github.com/kryzelc/poybash-furniture-sub001/internal/service"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/httputil"
)

// InventoryHandler handles HTTP requests for inventory endpoints.
type InventoryHandler struct {
	ledger *service.Ledger
	logger *slog.Logger
}

// NewInventoryHandler creates a new inventory HTTP handler.
func NewInventoryHandler(ledger *service.Ledger, logger *slog.Logger) *InventoryHandler {
	return &InventoryHandler{ledger: ledger, logger: logger}
}

// AdjustStockRequest is the JSON body for overwriting a stock record.
// Range checks happen in the ledger so the caller gets INVALID_ADJUSTMENT.
type AdjustStockRequest struct {
	Quantity *int   `json:"quantity" validate:"required"`
	Reserved int    `json:"reserved"`
	Notes    string `json:"notes" validate:"max=500"`
}

// VariantStockResponse is the per-warehouse view of one variant.
type VariantStockResponse struct {
	ProductID int64                   `json:"product_id"`
	VariantID string                  `json:"variant_id"`
	Available int                     `json:"available"`
	Stock     []domain.WarehouseStock `json:"stock"`
}

func variantRef(w http.ResponseWriter, r *http.Request) (domain.VariantRef, bool) {
	productID, ok := httputil.ParseInt64(w, "product id", chi.URLParam(r, "productId"))
	if !ok {
		return domain.VariantRef{}, false
	}
	return domain.VariantRef{ProductID: productID, VariantID: chi.URLParam(r, "variantId")}, true
}

func stockKey(w http.ResponseWriter, r *http.Request) (domain.StockKey, bool) {
	ref, ok := variantRef(w, r)
	if !ok {
		return domain.StockKey{}, false
	}
	return domain.KeyFor(ref, domain.Warehouse(chi.URLParam(r, "warehouse"))), true
}

// GetVariantStock handles GET /api/v1/inventory/{productId}/variants/{variantId}
func (h *InventoryHandler) GetVariantStock(w http.ResponseWriter, r *http.Request) {
	if err := actorFrom(r).Require(domain.PermViewInventory); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	ref, ok := variantRef(w, r)
	if !ok {
		return
	}

	stocks, err := h.ledger.ListVariantStock(r.Context(), ref)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if stocks == nil {
		stocks = []domain.WarehouseStock{}
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: VariantStockResponse{
		ProductID: ref.ProductID,
		VariantID: ref.VariantID,
		Available: domain.TotalAvailable(stocks),
		Stock:     stocks,
	}})
}

// AdjustStock handles PUT /api/v1/inventory/{productId}/variants/{variantId}/{warehouse}
func (h *InventoryHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	key, ok := stockKey(w, r)
	if !ok {
		return
	}
	var req AdjustStockRequest
	if !decodeBody(w, r, &req) {
		return
	}

	stock, err := h.ledger.AdjustStock(r.Context(), actorFrom(r), key, *req.Quantity, req.Reserved, req.Notes)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: stock})
}

// ListBatches handles GET /api/v1/inventory/{productId}/variants/{variantId}/{warehouse}/batches
func (h *InventoryHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	if err := actorFrom(r).Require(domain.PermViewInventory); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	key, ok := stockKey(w, r)
	if !ok {
		return
	}

	batches, err := h.ledger.ListBatches(r.Context(), key)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if batches == nil {
		batches = []domain.InventoryBatch{}
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: batches})
}
