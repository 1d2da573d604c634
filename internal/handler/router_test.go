package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yachaflex/pairing/internal/observability"
	relayService "github.com/yachaflex/pairing/internal/service/relay"
)

func setupRouter() http.Handler {
	reg := prometheus.NewRegistry()
	svc := relayService.NewService(relayService.NewTokens([]byte("secret"), "relay-test"), relayService.Options{
		PublicURL: "http://localhost:8080",
		Recorder:  observability.NewMetrics(reg),
	})
	return NewRouter(svc, reg)
}

func TestHealth(t *testing.T) {
	r := setupRouter()
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestMetricsAfterCreate(t *testing.T) {
	r := setupRouter()

	create := httptest.NewRecorder()
	r.ServeHTTP(create, httptest.NewRequest(http.MethodPost, "/api/pairing", nil))
	if create.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", create.Code)
	}

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := resp.Body.String()
	if !strings.Contains(body, "pairing_sessions_created_total 1") {
		t.Fatalf("expected created counter in metrics, got:\n%s", body)
	}
	if !strings.Contains(body, "pairing_sessions_active 1") {
		t.Fatalf("expected active gauge in metrics, got:\n%s", body)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := setupRouter()
	req := httptest.NewRequest(http.MethodOptions, "/api/pairing", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if got := resp.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Fatalf("expected CORS headers on preflight, got %v", resp.Header())
	}
}
