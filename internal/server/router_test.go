package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewRouterRegistersHealthRoute(t *testing.T) {
	router := newRouter(prometheus.NewRegistry())
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected /healthz to return 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json content type, got %q", ct)
	}
}

func TestNewRouterRejectsWrongMethod(t *testing.T) {
	router := newRouter(prometheus.NewRegistry())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/api/materials", nil))

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for PATCH /api/materials, got %d", rr.Code)
	}
}
