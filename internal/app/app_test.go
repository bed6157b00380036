package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kryzelc/poybash-furniture-sub001/internal/config"
	pkgkafka "github.com/kryzelc/poybash-furniture-sub001/pkg/kafka"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(map[string]string{
		"STORE_DRIVER":        "memory",
		"EVENTS_ENABLED":      "false",
		"FURNITURE_HTTP_PORT": "18080",
	})
	require.NoError(t, err)
	return cfg
}

func TestNewApp_MemoryDriver(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := NewApp(memoryConfig(t), logger)
	require.NoError(t, err)
	assert.Nil(t, a.pool)
	assert.Nil(t, a.redis)
	assert.Nil(t, a.producer)
	assert.Equal(t, ":18080", a.httpServer.Addr)

	rr := httptest.NewRecorder()
	a.httpServer.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	a.httpServer.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	require.NoError(t, a.Shutdown())
}

func TestPingKafkaWithRetry_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(nil), logger)
	defer producer.Close()

	err := pingKafkaWithRetry(ctx, producer, logger)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
