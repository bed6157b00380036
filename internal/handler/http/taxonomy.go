package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	"github.com/kryzelc/poybash-furniture-sub001/internal/service"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/httputil"
)

// TaxonomyHandler handles HTTP requests for the controlled vocabularies.
type TaxonomyHandler struct {
	service *service.TaxonomyService
	logger  *slog.Logger
}

// NewTaxonomyHandler creates a new taxonomy HTTP handler.
func NewTaxonomyHandler(svc *service.TaxonomyService, logger *slog.Logger) *TaxonomyHandler {
	return &TaxonomyHandler{service: svc, logger: logger}
}

// TaxonomyEntryRequest is the JSON body for creating or renaming an entry.
type TaxonomyEntryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

func kindParam(r *http.Request) domain.TaxonomyKind {
	return domain.TaxonomyKind(chi.URLParam(r, "kind"))
}

// List handles GET /api/v1/taxonomy/{kind}. ?include_inactive=true is
// honored for taxonomy managers only.
func (h *TaxonomyHandler) List(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true" &&
		actorFrom(r).Can(domain.PermManageTaxonomy)

	entries, err := h.service.List(r.Context(), kindParam(r), includeInactive)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if entries == nil {
		entries = []domain.TaxonomyEntry{}
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: entries})
}

// Create handles POST /api/v1/taxonomy/{kind}
func (h *TaxonomyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req TaxonomyEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	entry, err := h.service.Add(r.Context(), actorFrom(r), kindParam(r), req.Name)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: entry})
}

// Update handles PUT /api/v1/taxonomy/{kind}/{id}
func (h *TaxonomyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseInt64(w, "id", chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req TaxonomyEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	entry, err := h.service.Update(r.Context(), actorFrom(r), kindParam(r), id, req.Name)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: entry})
}

// Deactivate handles POST /api/v1/taxonomy/{kind}/{id}/deactivate
func (h *TaxonomyHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// Reactivate handles POST /api/v1/taxonomy/{kind}/{id}/reactivate
func (h *TaxonomyHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *TaxonomyHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := httputil.ParseInt64(w, "id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var (
		entry *domain.TaxonomyEntry
		err   error
	)
	if active {
		entry, err = h.service.Reactivate(r.Context(), actorFrom(r), kindParam(r), id)
	} else {
		entry, err = h.service.Deactivate(r.Context(), actorFrom(r), kindParam(r), id)
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: entry})
}
