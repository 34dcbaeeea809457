// Package metrics holds the Prometheus collectors of the API. A Metrics value
// satisfies service.Recorder.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pkordes/carpool/backend/internal/domain"
)

// Metrics owns a registry and every collector registered on it.
type Metrics struct {
	reg *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	reservations    *prometheus.CounterVec
	releases        prometheus.Counter
	tripTransitions *prometheus.CounterVec
	gatewayRequests *prometheus.CounterVec
}

// New registers the collectors, plus Go runtime and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		reservations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "seat_reservations_total",
			Help: "Seat reservation attempts by outcome.",
		}, []string{"outcome"}),
		releases: f.NewCounter(prometheus.CounterOpts{
			Name: "seat_releases_total",
			Help: "Seats returned to a trip.",
		}),
		tripTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trip_transitions_total",
			Help: "Trip status transitions by target status.",
		}, []string{"to"}),
		gatewayRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Payment gateway calls by operation and outcome.",
		}, []string{"op", "outcome"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObserveHTTP records one served request. route is the matched route
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) Reservation(outcome string) { m.reservations.WithLabelValues(outcome).Inc() }

func (m *Metrics) Release() { m.releases.Inc() }

func (m *Metrics) TripTransition(to domain.TripStatus) {
	m.tripTransitions.WithLabelValues(string(to)).Inc()
}

func (m *Metrics) GatewayCall(op, outcome string) {
	m.gatewayRequests.WithLabelValues(op, outcome).Inc()
}
