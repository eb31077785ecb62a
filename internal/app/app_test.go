package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arview/product-crawler/internal/breaker"
	"github.com/arview/product-crawler/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Port: 9090},
		HTTP:     config.HTTPConfig{TimeoutSeconds: 30, MaxRetries: 3, BackoffInitialMs: 1000, BackoffMaxMs: 30000},
		Limiter:  config.LimiterConfig{DefaultRPS: 10, DefaultBurst: 5},
		Breaker:  config.BreakerConfig{FailureThreshold: 5, SuccessThreshold: 3, TimeoutSeconds: 60},
		Cache:    config.CacheConfig{TTLSeconds: 3600, SweepIntervalMs: 300000},
		Redirect: config.RedirectConfig{TimeoutSeconds: 10, MaxRedirects: 5},
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := New(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestNew_WiresPipeline(t *testing.T) {
	a := newTestApp(t)
	assert.NotNil(t, a.Orchestrator)
	assert.NotNil(t, a.Cache)
	assert.NotNil(t, a.Breakers)
}

func TestNew_AIEnabledRequiresKey(t *testing.T) {
	cfg := testConfig()
	cfg.AI.Enabled = true
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestRouter_Endpoints(t *testing.T) {
	a := newTestApp(t)
	// Touch one breaker so the stats endpoint has content.
	a.Breakers.Get("fetch:www.example.com")

	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	for _, path := range []string{"/healthz", "/metrics", "/breakers"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err, path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/breakers")
	require.NoError(t, err)
	defer resp.Body.Close()
	var stats map[string]breaker.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Contains(t, stats, "fetch:www.example.com")
	assert.Equal(t, "closed", stats["fetch:www.example.com"].State)
}

func TestRouter_BreakerReset(t *testing.T) {
	a := newTestApp(t)
	a.Breakers.Get("fetch:www.example.com")

	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/breakers/fetch:www.example.com/reset", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
