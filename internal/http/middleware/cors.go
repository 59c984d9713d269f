package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS allows the dashboard origins to call the API with credentials. An
// entry of "*" echoes any Origin back, since browsers refuse a literal "*"
// alongside cookies.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Confirm", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           600,
	}

	origins := make([]string, 0, len(allowedOrigins))
	allowAny := false
	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		switch origin {
		case "":
			continue
		case "*":
			allowAny = true
		default:
			origins = append(origins, origin)
		}
	}
	if allowAny {
		opts.AllowOriginFunc = func(*http.Request, string) bool { return true }
	} else {
		opts.AllowedOrigins = origins
	}
	return cors.Handler(opts)
}
