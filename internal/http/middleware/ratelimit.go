package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit rejects clients that exceed perSecond requests per second, keyed
// by real client IP. A non-positive limit disables limiting.
func RateLimit(perSecond int) func(http.Handler) http.Handler {
	if perSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perSecond, time.Second,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error": "rate limit exceeded"}`, http.StatusTooManyRequests)
		}),
	)
}
