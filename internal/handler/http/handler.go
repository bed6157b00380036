package http

import (
	"errors"
	"net/http"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/httputil"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/middleware"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/validator"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

// actorFrom converts the authenticated claims into a domain actor. Anonymous
// callers get the zero Actor, which holds no permissions.
func actorFrom(r *http.Request) domain.Actor {
	c, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return domain.Actor{}
	}
	return domain.Actor{UserID: c.UserID, Name: c.Name, Role: domain.Role(c.Role)}
}

// decodeBody reads and validates a JSON body into dst. On failure it writes
// a 400 response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := validator.DecodeAndValidate(r, dst)
	if err == nil {
		return true
	}

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		httputil.WriteValidationError(w, r, err)
		return false
	}
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
	})
	return false
}

// ContentTypeJSON sets the response content type for every API route.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
