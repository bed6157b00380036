package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kryzelc/poybash-furniture-sub001/internal/service"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/health"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/middleware"
)

const serviceName = "furniture-core"

// Services groups the domain services exposed over HTTP.
type Services struct {
	Taxonomy *service.TaxonomyService
	Catalog  *service.CatalogService
	Ledger   *service.Ledger
	Carts    *service.CartService
	Orders   *service.OrderService
	Refunds  *service.RefundService
}

// RouterConfig holds the HTTP boundary settings.
type RouterConfig struct {
	JWTSecret         string
	AllowedOrigins    []string
	PprofAllowedCIDRs []string
	RateLimitRPS      float64
	RateLimitBurst    int
}

// NewRouter creates a chi router with all furniture core routes registered.
func NewRouter(svcs Services, healthHandler *health.Handler, logger *slog.Logger, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	taxonomyHandler := NewTaxonomyHandler(svcs.Taxonomy, logger)
	productHandler := NewProductHandler(svcs.Catalog, logger)
	inventoryHandler := NewInventoryHandler(svcs.Ledger, logger)
	cartHandler := NewCartHandler(svcs.Carts, logger)
	orderHandler := NewOrderHandler(svcs.Orders, svcs.Refunds, logger)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Authenticate(cfg.JWTSecret, logger))
		r.Use(middleware.RequestLogger(logger))

		r.Route("/taxonomy/{kind}", func(r chi.Router) {
			r.Get("/", taxonomyHandler.List)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Post("/", taxonomyHandler.Create)
				r.Put("/{id}", taxonomyHandler.Update)
				r.Post("/{id}/deactivate", taxonomyHandler.Deactivate)
				r.Post("/{id}/reactivate", taxonomyHandler.Reactivate)
			})
		})

		// Anonymous callers only see active products.
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Get("/{id}", productHandler.Get)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Post("/", productHandler.Create)
				r.Put("/{id}", productHandler.Update)
				r.Post("/{id}/deactivate", productHandler.Deactivate)
				r.Post("/{id}/reactivate", productHandler.Reactivate)
				r.Post("/{id}/variants", productHandler.UpsertVariant)
				r.Post("/{id}/variants/{variantId}/deactivate", productHandler.DeactivateVariant)
			})
		})

		r.Route("/inventory/{productId}/variants/{variantId}", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/", inventoryHandler.GetVariantStock)
			r.Put("/{warehouse}", inventoryHandler.AdjustStock)
			r.Get("/{warehouse}/batches", inventoryHandler.ListBatches)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Use(limiter.Middleware(logger))
			r.Get("/", cartHandler.Get)
			r.Delete("/", cartHandler.Clear)
			r.Post("/lines", cartHandler.AddLine)
			r.Put("/lines/{lineKey}", cartHandler.UpdateQuantity)
			r.Delete("/lines/{lineKey}", cartHandler.RemoveLine)
			r.Put("/discount", cartHandler.ApplyDiscount)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.With(limiter.Middleware(logger)).Post("/", orderHandler.Create)
			r.Get("/", orderHandler.List)
			r.Get("/{id}", orderHandler.Get)
			r.Get("/{id}/transitions", orderHandler.Transitions)
			r.Put("/{id}/status", orderHandler.UpdateStatus)
			r.Post("/{id}/cancel", orderHandler.Cancel)
			r.Post("/{id}/refund-request", orderHandler.RequestRefund)
			r.Post("/{id}/refund", orderHandler.ProcessRefund)
		})
	})

	return r
}
