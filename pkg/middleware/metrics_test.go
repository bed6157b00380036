package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectMetric extracts the first metric from c whose labels include labels.
func collectMetric(t *testing.T, c prometheus.Collector, labels map[string]string) *dto.Metric {
	t.Helper()
	ch := make(chan prometheus.Metric, 100)
	c.Collect(ch)
	close(ch)

	for m := range ch {
		d := &dto.Metric{}
		if err := m.Write(d); err != nil {
			continue
		}
		match := true
		for k, v := range labels {
			found := false
			for _, lp := range d.GetLabel() {
				if lp.GetName() == k && lp.GetValue() == v {
					found = true
					break
				}
			}
			if !found {
				match = false
				break
			}
		}
		if match {
			return d
		}
	}
	return nil
}

func metricsRouter(service string, status int) *chi.Mux {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics(service))
	r.Get("/orders/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	})
	return r
}

func TestPrometheusMetrics_CountsByRoutePattern(t *testing.T) {
	r := metricsRouter("metrics-count", http.StatusOK)

	for _, id := range []string{"ORD-1", "ORD-2", "ORD-3"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/"+id, nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	}

	m := collectMetric(t, httpRequestsTotal, map[string]string{
		"service": "metrics-count", "method": "GET", "path": "/orders/{id}", "status": "200",
	})
	require.NotNil(t, m)
	assert.Equal(t, float64(3), m.GetCounter().GetValue())
}

func TestPrometheusMetrics_RecordsStatusAndDuration(t *testing.T) {
	r := metricsRouter("metrics-status", http.StatusConflict)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/ORD-9", nil))
	assert.Equal(t, http.StatusConflict, rr.Code)

	counter := collectMetric(t, httpRequestsTotal, map[string]string{"service": "metrics-status", "status": "409"})
	require.NotNil(t, counter)

	hist := collectMetric(t, httpRequestDuration, map[string]string{"service": "metrics-status", "path": "/orders/{id}"})
	require.NotNil(t, hist)
	assert.Equal(t, uint64(1), hist.GetHistogram().GetSampleCount())

	inFlight := collectMetric(t, httpRequestsInFlight, map[string]string{"service": "metrics-status"})
	require.NotNil(t, inFlight)
	assert.Zero(t, inFlight.GetGauge().GetValue())
}
