package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/curasync/portal/internal/config"
	"github.com/curasync/portal/pkg/logging"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		Env:                "test",
		ClinicAPIBaseURL:   "http://127.0.0.1:1/api",
		ClinicAPITimeout:   time.Second,
		SessionTTL:         time.Hour,
		SessionCookieName:  "curasync_session",
		RateLimitPerSecond: 100,
		AWSRegion:          "us-east-1",
		AWSAccessKeyID:     "test",
		AWSSecretAccessKey: "test",
		ReportURLExpiry:    time.Minute,
	}
}

func TestSetupMetricsExposesRuntimeCollectors(t *testing.T) {
	handler := setupMetrics(prometheus.NewRegistry())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestSessionSecret(t *testing.T) {
	logger := logging.New("error")
	cfg := testConfig()

	secret, err := sessionSecret(cfg, logger)
	require.NoError(t, err)
	assert.NotEmpty(t, secret)

	cfg.SessionSecret = "configured"
	secret, err = sessionSecret(cfg, logger)
	require.NoError(t, err)
	assert.Equal(t, "configured", secret)

	cfg.SessionSecret = ""
	cfg.Env = "production"
	_, err = sessionSecret(cfg, logger)
	assert.Error(t, err)
}

func TestBuildHandlerServesHealth(t *testing.T) {
	handler, cleanup, err := buildHandler(context.Background(), testConfig(), logging.New("error"), prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(cleanup)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/dashboard/patient", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestBuildHandlerRequiresClinicAPI(t *testing.T) {
	cfg := testConfig()
	cfg.ClinicAPIBaseURL = ""
	_, cleanup, err := buildHandler(context.Background(), cfg, logging.New("error"), prometheus.NewRegistry())
	cleanup()
	assert.Error(t, err)
}
