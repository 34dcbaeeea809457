package middleware

import (
	"net/http"

	"github.com/didip/tollbooth/v7"
)

// NewRateLimiter returns a middleware allowing perMinute requests per client
// IP, with bursts of the same size. Excess requests get 429 with the JSON
// error envelope.
func NewRateLimiter(perMinute int) func(http.Handler) http.Handler {
	lmt := tollbooth.NewLimiter(float64(perMinute)/60.0, nil)
	lmt.SetBurst(perMinute)
	lmt.SetIPLookups([]string{"X-Forwarded-For", "X-Real-IP", "RemoteAddr"})
	lmt.SetMessageContentType("application/json")
	lmt.SetMessage(`{"status":"error","message":"too many requests"}`)
	return func(next http.Handler) http.Handler {
		return tollbooth.LimitHandler(lmt, next)
	}
}
