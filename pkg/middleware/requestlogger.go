package middleware

import (
	"log/slog"
	"net/http"

	"github.com/kryzelc/poybash-furniture-sub001/pkg/logger"
)

// RequestLogger stores a logger enriched with correlation, caller and trace
// fields in the request context for logger.FromContext. Mount it after
// RequestLogging, Tracing and Authenticate.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if c, ok := ClaimsFromContext(ctx); ok {
				ctx = logger.WithUserID(ctx, c.UserID)
				ctx = logger.WithRole(ctx, c.Role)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
