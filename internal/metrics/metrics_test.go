package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/carpool/backend/internal/domain"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.Reservation("ok")
	m.Reservation("ok")
	m.Reservation("full")
	m.Release()
	m.TripTransition(domain.TripCanceled)
	m.GatewayCall("create_pix", "error")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.reservations.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reservations.WithLabelValues("full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.releases))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tripTransitions.WithLabelValues("CANCELED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gatewayRequests.WithLabelValues("create_pix", "error")))
}

func TestMetrics_Handler_ExposesSeries(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodGet, "/trips/{id}", 200, 15*time.Millisecond)
	m.Reservation("duplicate")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `http_requests_total{method="GET",route="/trips/{id}",status="200"} 1`)
	assert.Contains(t, string(body), `seat_reservations_total{outcome="duplicate"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
