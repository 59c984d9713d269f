package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/curasync/portal/internal/auth"
	"github.com/curasync/portal/internal/dashboard"
	httpmiddleware "github.com/curasync/portal/internal/http/middleware"
	"github.com/curasync/portal/internal/live"
	"github.com/curasync/portal/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Auth               *auth.Handler
	Dashboard          *dashboard.Handler
	Live               *live.Hub
	Session            func(http.Handler) http.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimitPerSecond int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/api", func(api chi.Router) {
		if cfg.Session != nil {
			api.Use(cfg.Session)
		}
		if cfg.Auth != nil {
			cfg.Auth.Register(api)
		}

		// Everything below needs a signed-in user.
		api.Group(func(protected chi.Router) {
			protected.Use(httpmiddleware.RequireUser)
			if cfg.Live != nil {
				protected.Handle("/live", cfg.Live)
			}
			if cfg.Dashboard != nil {
				cfg.Dashboard.Register(protected)
			}
		})
	})

	return r
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
