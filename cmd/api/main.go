package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/curasync/portal/internal/api/router"
	"github.com/curasync/portal/internal/app/bootstrap"
	"github.com/curasync/portal/internal/auth"
	"github.com/curasync/portal/internal/clinicapi"
	appconfig "github.com/curasync/portal/internal/config"
	"github.com/curasync/portal/internal/dashboard"
	httpmiddleware "github.com/curasync/portal/internal/http/middleware"
	"github.com/curasync/portal/internal/live"
	"github.com/curasync/portal/internal/observability/metrics"
	"github.com/curasync/portal/internal/session"
	"github.com/curasync/portal/internal/storage"
	"github.com/curasync/portal/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting curasync portal API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"clinic_api", cfg.ClinicAPIBaseURL,
	)

	ctx := context.Background()
	handler, cleanup, err := buildHandler(ctx, cfg, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Error("failed to initialize server", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Create HTTP server. WriteTimeout is left unset so /api/live sockets
	// are not cut off.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// buildHandler wires every component behind the HTTP router. The returned
// cleanup closes the Redis client and database.
func buildHandler(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, reg *prometheus.Registry) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	secret, err := sessionSecret(cfg, logger)
	if err != nil {
		return nil, cleanup, err
	}

	metricsHandler := setupMetrics(reg)

	apiClient, err := clinicapi.New(clinicapi.Config{
		BaseURL: cfg.ClinicAPIBaseURL,
		Token:   cfg.ClinicAPIToken,
		Timeout: cfg.ClinicAPITimeout,
	}, logger)
	if err != nil {
		return nil, cleanup, err
	}
	facade := storage.New(apiClient, logger, metrics.NewFacadeMetrics(reg))

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		closers = append(closers, func() { _ = redisClient.Close() })
	}
	store := session.NewStore(bootstrap.BuildSessionStorage(redisClient, logger), cfg.SessionTTL, logger)
	tokens, err := session.NewTokens(secret, cfg.SessionTTL)
	if err != nil {
		return nil, cleanup, err
	}

	var db *sql.DB
	if db, err = bootstrap.OpenDatabase(ctx, cfg); err != nil {
		logger.Warn("audit database unavailable", "error", err)
		db = nil
	}
	if db != nil {
		closers = append(closers, func() { _ = db.Close() })
	}
	auditSvc := bootstrap.BuildAuditService(db, logger)

	hub := live.NewHub(cfg.CORSAllowedOrigins, logger)
	dashboardSvc := dashboard.NewService(facade, dashboard.Deps{
		Audit:    auditSvc,
		Notifier: bootstrap.BuildNotifier(cfg, logger),
		Live:     hub,
		Reports:  bootstrap.BuildReportSigner(ctx, cfg, logger),
		Metrics:  metrics.NewDashboardMetrics(reg),
		Logger:   logger,
	})

	handler := router.New(&router.Config{
		Logger: logger,
		Auth: auth.NewHandler(auth.Config{
			Auth:          facade,
			Store:         store,
			Tokens:        tokens,
			Audit:         auditSvc,
			CookieName:    cfg.SessionCookieName,
			SecureCookies: cfg.SecureCookies,
			Logger:        logger,
		}),
		Dashboard: dashboard.NewHandler(dashboardSvc, logger),
		Live:      hub,
		Session: httpmiddleware.Session(httpmiddleware.SessionConfig{
			Tokens:     tokens,
			Store:      store,
			CookieName: cfg.SessionCookieName,
			Logger:     logger,
		}),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
	})
	return handler, cleanup, nil
}

func setupMetrics(reg *prometheus.Registry) http.Handler {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// sessionSecret returns the token signing secret. Outside production a
// missing secret is replaced by a random one, which logs everyone out on
// restart.
func sessionSecret(cfg *appconfig.Config, logger *logging.Logger) (string, error) {
	if cfg.SessionSecret != "" {
		return cfg.SessionSecret, nil
	}
	if cfg.Env == "production" {
		return "", fmt.Errorf("SESSION_SECRET is required in production")
	}
	logger.Warn("SESSION_SECRET not set; using an ephemeral secret")
	return uuid.NewString(), nil
}
