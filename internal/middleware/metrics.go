package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// HTTPObserver receives one observation per served request.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, d time.Duration)
}

// NewMetricsHandler returns a middleware reporting every request to obs,
// labelled by the matched chi route pattern.
func NewMetricsHandler(obs HTTPObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			obs.ObserveHTTP(r.Method, routePattern(r), status, time.Since(start))
		})
	}
}
