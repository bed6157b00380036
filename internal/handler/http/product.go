package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	"github.com/kryzelc/poybash-furniture-sub001/internal/repository"
	"github.com/kryzelc/poybash-furniture-sub001/internal/service"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/httputil"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/pagination"
)

// ProductHandler handles HTTP requests for catalog endpoints.
type ProductHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc *service.CatalogService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// DimensionsRequest is the JSON shape of product or variant dimensions.
type DimensionsRequest struct {
	Length float64 `json:"length" validate:"gte=0"`
	Width  float64 `json:"width" validate:"gte=0"`
	Height float64 `json:"height" validate:"gte=0"`
	Unit   string  `json:"unit" validate:"omitempty,oneof=cm in m"`
}

func (d DimensionsRequest) toDomain() domain.Dimensions {
	return domain.Dimensions{Length: d.Length, Width: d.Width, Height: d.Height, Unit: d.Unit}
}

// VariantRequest is the JSON body for one variant.
type VariantRequest struct {
	Size       *string            `json:"size" validate:"omitempty,max=50"`
	Color      string             `json:"color" validate:"required,max=100"`
	Price      int64              `json:"price" validate:"gt=0"`
	Dimensions *DimensionsRequest `json:"dimensions"`
	Active     *bool              `json:"active"`
}

func (v VariantRequest) toInput() service.VariantInput {
	in := service.VariantInput{Size: v.Size, Color: v.Color, Price: v.Price, Active: v.Active}
	if v.Dimensions != nil {
		d := v.Dimensions.toDomain()
		in.Dimensions = &d
	}
	return in
}

// ProductRequest is the JSON body for creating or replacing a product.
type ProductRequest struct {
	Name        string            `json:"name" validate:"required,max=200"`
	Description string            `json:"description" validate:"max=5000"`
	BasePrice   int64             `json:"base_price" validate:"gte=0"`
	Category    string            `json:"category" validate:"required,oneof=chairs tables"`
	SubCategory string            `json:"sub_category" validate:"required"`
	Material    string            `json:"material" validate:"required"`
	Dimensions  DimensionsRequest `json:"dimensions"`
	Images      []string          `json:"images" validate:"omitempty,dive,required"`
	Featured    bool              `json:"featured"`
	Variants    []VariantRequest  `json:"variants" validate:"required,min=1,dive"`
}

func (p ProductRequest) toInput() service.ProductInput {
	variants := make([]service.VariantInput, 0, len(p.Variants))
	for _, v := range p.Variants {
		variants = append(variants, v.toInput())
	}
	return service.ProductInput{
		Name:        p.Name,
		Description: p.Description,
		BasePrice:   p.BasePrice,
		Category:    domain.Category(p.Category),
		SubCategory: p.SubCategory,
		Material:    p.Material,
		Dimensions:  p.Dimensions.toDomain(),
		Images:      p.Images,
		Featured:    p.Featured,
		Variants:    variants,
	}
}

// --- Handlers ---

// List handles GET /api/v1/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	q := r.URL.Query()

	filter := repository.ProductFilter{
		IncludeInactive: q.Get("include_inactive") == "true",
		Page:            params.Page,
		PerPage:         params.PerPage,
	}
	if c := q.Get("category"); c != "" {
		if !domain.IsValidCategory(c) {
			httputil.WriteError(w, r, domain.NewValidationError("category", "unknown category %q", c), h.logger)
			return
		}
		cat := domain.Category(c)
		filter.Category = &cat
	}
	if f := q.Get("featured"); f != "" {
		featured, err := strconv.ParseBool(f)
		if err != nil {
			httputil.WriteError(w, r, domain.NewValidationError("featured", "must be true or false"), h.logger)
			return
		}
		filter.Featured = &featured
	}

	products, total, err := h.service.ListProducts(r.Context(), actorFrom(r), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: pagination.NewResult(products, total, params)})
}

// Get handles GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseInt64(w, "product id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	product, err := h.service.GetProduct(r.Context(), actorFrom(r), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// Create handles POST /api/v1/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decodeBody(w, r, &req) {
		return
	}

	product, err := h.service.CreateProduct(r.Context(), actorFrom(r), req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: product})
}

// Update handles PUT /api/v1/products/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseInt64(w, "product id", chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req ProductRequest
	if !decodeBody(w, r, &req) {
		return
	}

	product, err := h.service.UpdateProduct(r.Context(), actorFrom(r), id, req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// Deactivate handles POST /api/v1/products/{id}/deactivate
func (h *ProductHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseInt64(w, "product id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	product, err := h.service.DeactivateProduct(r.Context(), actorFrom(r), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// Reactivate handles POST /api/v1/products/{id}/reactivate
func (h *ProductHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseInt64(w, "product id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	product, err := h.service.ReactivateProduct(r.Context(), actorFrom(r), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// UpsertVariant handles POST /api/v1/products/{id}/variants. Re-adding a
// deactivated size and color combination reactivates it.
func (h *ProductHandler) UpsertVariant(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseInt64(w, "product id", chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req VariantRequest
	if !decodeBody(w, r, &req) {
		return
	}

	product, err := h.service.UpsertVariant(r.Context(), actorFrom(r), id, req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// DeactivateVariant handles POST /api/v1/products/{id}/variants/{variantId}/deactivate
func (h *ProductHandler) DeactivateVariant(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseInt64(w, "product id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	product, err := h.service.DeactivateVariant(r.Context(), actorFrom(r), id, chi.URLParam(r, "variantId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}
