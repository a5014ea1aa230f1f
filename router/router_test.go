package router

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/arcwave/relaycore/auth"
	"github.com/arcwave/relaycore/clock"
	"github.com/arcwave/relaycore/config"
	"github.com/arcwave/relaycore/fallback"
	"github.com/arcwave/relaycore/kv"
	"github.com/arcwave/relaycore/localslot"
	"github.com/arcwave/relaycore/modelrouter"
	"github.com/arcwave/relaycore/observability"
	"github.com/arcwave/relaycore/provider"
	"github.com/arcwave/relaycore/ratelimit"
)

func testSetup(t *testing.T, apiKey string) (http.Handler, *provider.Registry) {
	t.Helper()

	cfg := &config.Config{
		Addr:         ":0",
		Env:          "test",
		APIKey:       apiKey,
		BindHost:     "localhost",
		MaxBodyBytes: 1 << 20,
		RateLimitGet: 1000,
	}
	log := zerolog.New(io.Discard).With().Timestamp().Logger()

	dbPath := t.TempDir() + "/test.db"
	store, err := kv.Open(dbPath)
	if err != nil {
		t.Fatalf("open kv store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	reg := provider.NewRegistry()
	authCfg := auth.NewConfig(apiKey, cfg.BindHost, cfg.AllowedOrigins, clock.Real())
	global := ratelimit.NewGlobalLimiter(1000, 1000, 60_000, clock.Real())
	endpoint := ratelimit.NewEndpointLimiter(nil, ratelimit.TierLimits{Public: 1000, User: 1000, Admin: 1000}, 60_000, clock.Real())

	deps := Deps{
		Providers: reg,
		Models:    modelrouter.NewRegistry(),
		Health:    fallback.NewRegistry(clock.Real(), store),
		Slots:     localslot.NewScheduler(nil, true),
		LocalOnly: func() bool { return true },
	}
	metrics := observability.NewMetrics(log)

	r := NewRouter(cfg, log, deps, authCfg, global, endpoint, metrics, nil)
	return r, reg
}

func TestHealthEndpointIsPublic(t *testing.T) {
	r, _ := testSetup(t, "secret-key")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for /api/health, got %d", rw.Result().StatusCode)
	}
}

func TestUnauthenticatedRouteReturns401(t *testing.T) {
	r, _ := testSetup(t, "secret-key")

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthenticated /v1/models, got %d", rw.Result().StatusCode)
	}
}

func TestAuthenticatedRouteSucceeds(t *testing.T) {
	r, _ := testSetup(t, "secret-key")

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for authenticated /v1/models, got %d", rw.Result().StatusCode)
	}
}

func TestNoConfiguredKeyAllowsAnyRequest(t *testing.T) {
	r, _ := testSetup(t, "")

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with no configured key, got %d", rw.Result().StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	r, _ := testSetup(t, "")

	req := httptest.NewRequest(http.MethodOptions, "/v1/chat/completions", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for CORS preflight, got %d", rw.Result().StatusCode)
	}
	if rw.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected wildcard Allow-Origin with no allow-list configured, got %q", rw.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestAdminRouteRequiresAdminRole(t *testing.T) {
	r, _ := testSetup(t, "secret-key")

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/system-state", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin key on admin route, got %d", rw.Result().StatusCode)
	}
}

func TestMetricsEndpointServesPrometheusExposition(t *testing.T) {
	r, _ := testSetup(t, "secret-key")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for /metrics, got %d", rw.Result().StatusCode)
	}
}
