package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/msg-store/pkg/metrics"
)

func TestHTTPMetricsMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewHTTPMetricsWithRegistry(reg)

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/msg", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["msg_store_http_requests_total"])
	assert.True(t, names["msg_store_http_request_duration_seconds"])
}

func TestStoreMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewStoreMetricsWithRegistry(reg)

	m.RecordState(100, 5, 2)
	m.RecordInserted(3)
	m.RecordDeleted(1)
	m.RecordPruned(2)

	values := gatherValues(t, reg)
	assert.Equal(t, float64(100), values["msg_store_resident_bytes"])
	assert.Equal(t, float64(5), values["msg_store_resident_messages"])
	assert.Equal(t, float64(2), values["msg_store_groups"])
	assert.Equal(t, float64(3), values["msg_store_inserted_total"])
	assert.Equal(t, float64(1), values["msg_store_deleted_total"])
	assert.Equal(t, float64(2), values["msg_store_pruned_total"])
}

// gatherValues flattens unlabeled gauges and counters into name → value.
func gatherValues(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]float64)
	for _, f := range families {
		for _, m := range f.GetMetric() {
			switch {
			case m.GetGauge() != nil:
				out[f.GetName()] = m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				out[f.GetName()] = m.GetCounter().GetValue()
			}
		}
	}
	return out
}
