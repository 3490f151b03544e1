package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
)

func testRouter(authEnabled bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Env:       config.EnvProduction,
		APIPrefix: "/api/v1",
		Auth:      config.AuthConfig{Enabled: authEnabled, Secret: "secret"},
		RateLimit: config.RateLimitConfig{WritesPerMinute: 60, Burst: 1},
	}
	metrics := service.NewMetricsService()
	return newRouter(cfg, zap.NewNop(), routerDeps{
		metrics:   metrics,
		schedules: handler.NewScheduleHandler(nil),
		grids:     handler.NewGridHandler(nil, nil),
		probes:    handler.NewMetricsHandler(metrics, nil),
		tokens:    service.NewTokenService(service.TokenConfig{Secret: "secret"}),
	})
}

func TestRouterServesProbesWithoutAuth(t *testing.T) {
	r := testRouter(true)

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRouterRequiresTokenWhenAuthEnabled(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(true).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/weekdays", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterOpenWhenAuthDisabled(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(false).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/weekdays?lang=id", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Senin")
}

func TestRouterHidesDocsInProduction(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(false).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs/index.html", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
