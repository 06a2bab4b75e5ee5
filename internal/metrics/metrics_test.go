package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Resolved(t *testing.T) {
	m := New()
	m.Resolved(map[string]int{"won": 2, "pending": 3}, 4, 1, 20*time.Millisecond)
	m.Resolved(map[string]int{"won": 5}, 4, 0, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.resolutions))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.pickOutcomes.WithLabelValues("won")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.pickOutcomes.WithLabelValues("pending")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.participants))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.divergences))
}

func TestMetrics_CountersAndHandler(t *testing.T) {
	m := New()
	m.Refresh("ok")
	m.Refresh("gateway_fault")
	m.Refresh("gateway_fault")
	m.PicksLocked(3)
	m.GatewayRequest("get market", time.Millisecond, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.refreshes.WithLabelValues("gateway_fault")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.picksLocked))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mentionleague_market_refreshes_total")
	assert.Contains(t, rec.Body.String(), "mentionleague_gateway_request_duration_seconds")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Refresh("ok")
		m.PicksLocked(1)
		m.Resolved(nil, 0, 0, 0)
		m.HTTPRequest("/", http.MethodGet, 200)
	})
	assert.Nil(t, m.Registry())
}
