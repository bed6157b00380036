package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func signToken(t *testing.T, claims Claims, method jwt.SigningMethod, key any) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(role string) Claims {
	return Claims{
		UserID: "user-1",
		Name:   "Maria Santos",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestParseToken(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		tok := signToken(t, validClaims("admin"), jwt.SigningMethodHS256, []byte(testSecret))
		c, err := ParseToken(tok, []byte(testSecret))
		require.NoError(t, err)
		assert.Equal(t, "user-1", c.UserID)
		assert.Equal(t, "admin", c.Role)
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok := signToken(t, validClaims("admin"), jwt.SigningMethodHS256, []byte("other"))
		_, err := ParseToken(tok, []byte(testSecret))
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		c := validClaims("staff")
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		_, err := ParseToken(signToken(t, c, jwt.SigningMethodHS256, []byte(testSecret)), []byte(testSecret))
		assert.Error(t, err)
	})

	t.Run("missing role", func(t *testing.T) {
		_, err := ParseToken(signToken(t, validClaims(""), jwt.SigningMethodHS256, []byte(testSecret)), []byte(testSecret))
		assert.Error(t, err)
	})

	t.Run("subject fallback", func(t *testing.T) {
		c := validClaims("customer")
		c.UserID = ""
		c.Subject = "user-sub"
		got, err := ParseToken(signToken(t, c, jwt.SigningMethodHS256, []byte(testSecret)), []byte(testSecret))
		require.NoError(t, err)
		assert.Equal(t, "user-sub", got.UserID)
	})
}

func TestAuthenticate(t *testing.T) {
	var seen *Claims
	handler := Authenticate(testSecret, newTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("anonymous passes through", func(t *testing.T) {
		seen = nil
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Nil(t, seen)
	})

	t.Run("valid bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, validClaims("owner"), jwt.SigningMethodHS256, []byte(testSecret)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "owner", seen.Role)
	})

	t.Run("bad scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
		req.Header.Set("Authorization", "Basic abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireAuth(t *testing.T) {
	h := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c := validClaims("staff")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithClaims(req.Context(), &c)))
	assert.Equal(t, http.StatusOK, rec.Code)
}
