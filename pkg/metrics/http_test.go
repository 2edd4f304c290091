package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

func TestHTTPMetricsUsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	router := chi.NewRouter()
	router.Use(m.Middleware)
	router.Get("/api/admin/requisitions/{requisitionId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/requisitions/123", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	got, err := fetchCounterValue(mfs, "procurement_api_requests_total", "path", "/api/admin/requisitions/{requisitionId}")
	if err != nil {
		t.Fatalf("fetch requests: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected 1 request, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "procurement_api_errors_total", "status", "404"); err != nil || got != 1 {
		t.Fatalf("expected one 404 error, got %f (%v)", got, err)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewProcurementMetrics(reg).RequisitionSubmitted(2, 1)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"procurement_requisitions_submitted_total 1",
		"procurement_orders_created_total 2",
		"procurement_supplier_fallbacks_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var p *ProcurementMetrics
	p.RequisitionSubmitted(1, 0)
	p.OrdersDelivered(3)
	p.OutboxOutcome("requisition_submitted", "published")

	noop := NewHTTPMetrics(nil)
	called := false
	h := noop.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Fatalf("expected passthrough handler to run")
	}
}
